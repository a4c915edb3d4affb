package main

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tranquileza/leadflow/internal/alert"
	"github.com/tranquileza/leadflow/internal/config"
	"github.com/tranquileza/leadflow/internal/contact"
	"github.com/tranquileza/leadflow/internal/db"
	"github.com/tranquileza/leadflow/internal/event"
	"github.com/tranquileza/leadflow/internal/extract"
	"github.com/tranquileza/leadflow/internal/geo"
	"github.com/tranquileza/leadflow/internal/mailsync"
	"github.com/tranquileza/leadflow/internal/pipeline"
	"github.com/tranquileza/leadflow/internal/server"
	"github.com/tranquileza/leadflow/pkg/mailerlite"
)

// pipelineEnv bundles the wired application components.
type pipelineEnv struct {
	pool        *pgxpool.Pool
	events      *event.Store
	gateway     *pipeline.Gateway
	reprocessor *pipeline.Reprocessor
}

func (e *pipelineEnv) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

// initPipeline connects the store and assembles the full delivery pipeline
// from configuration.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required (LEADFLOW_STORE_DATABASE_URL)")
	}

	pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}

	gaz, err := geo.Default()
	if err != nil {
		pool.Close()
		return nil, err
	}

	events := event.NewStore(pool)
	contacts := contact.NewStore(pool)

	mailer := mailerlite.NewClient(cfg.Mailer.APIKey,
		mailerlite.WithBaseURL(cfg.Mailer.BaseURL),
		mailerlite.WithRateLimit(cfg.Mailer.RateLimit))
	syncer := mailsync.New(mailer, mailsync.Config{
		TriggerGroups: cfg.Mailer.TriggerGroups,
		DefaultNotes:  cfg.Mailer.DefaultNotes,
	})

	gateway := pipeline.NewGateway(pipeline.GatewayConfig{
		Events:        events,
		Reconciler:    contact.NewReconciler(contacts),
		Interactions:  contacts,
		Syncer:        syncer,
		Alerts:        alert.New(cfg.Alert.WebhookURL, cfg.Alert.Channel),
		Extractor:     extract.New(geo.NewResolver(gaz)),
		Provider:      cfg.Webhook.Provider,
		TriggerGroups: cfg.Mailer.TriggerGroups,
	})

	return &pipelineEnv{
		pool:        pool,
		events:      events,
		gateway:     gateway,
		reprocessor: pipeline.NewReprocessor(gateway, events, cfg.Reprocess.MaxAttempts, cfg.Reprocess.Concurrency),
	}, nil
}

// serverHandler builds the HTTP router over a wired pipeline.
func serverHandler(env *pipelineEnv) http.Handler {
	srv := server.New(env.gateway, env.reprocessor, env.events, env.pool, serverConfig(cfg))
	return srv.Router()
}

// serverConfig maps application config onto the HTTP layer's settings.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		WebhookSecret:    cfg.Webhook.Secret,
		DebugToken:       cfg.Webhook.DebugToken,
		ReprocessSecret:  cfg.Reprocess.Secret,
		MailerKeyPresent: cfg.Mailer.APIKey != "",
		TriggerGroups:    cfg.Mailer.TriggerGroups,
		DefaultBatch:     cfg.Reprocess.DefaultBatch,
		MaxBatch:         cfg.Reprocess.MaxBatch,
	}
}
