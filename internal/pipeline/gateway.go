// Package pipeline orchestrates one inbound delivery end to end: persist
// the raw event, extract and resolve the lead, reconcile the contact, log
// the interaction, sync to the marketing service, and patch the final
// event status.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tranquileza/leadflow/internal/alert"
	"github.com/tranquileza/leadflow/internal/event"
	"github.com/tranquileza/leadflow/internal/extract"
	"github.com/tranquileza/leadflow/internal/mailsync"
	"github.com/tranquileza/leadflow/internal/model"
)

// lowConfidenceThreshold triggers a non-fatal alert; processing continues.
const lowConfidenceThreshold = 0.4

// EventStore is the raw-event persistence surface the pipeline drives.
type EventStore interface {
	Insert(ctx context.Context, ev *model.RawEvent) (bool, error)
	PatchStatus(ctx context.Context, id string, status model.EventStatus, lastError, resolvedEmail string) error
	IncrementAttempt(ctx context.Context, id string) (int, error)
	MarkPermanentFailed(ctx context.Context, id string) error
	SelectReprocessable(ctx context.Context, maxAttempts, limit int) ([]model.RawEvent, error)
}

// Reconciler converges a delivery onto one contact row.
type Reconciler interface {
	Reconcile(ctx context.Context, incoming *model.Contact) (*model.Contact, error)
	FindExisting(ctx context.Context, incoming *model.Contact) (*model.Contact, error)
}

// InteractionLogger appends to the interaction log.
type InteractionLogger interface {
	InsertInteraction(ctx context.Context, in *model.Interaction) (bool, error)
}

// Syncer pushes a reconciled lead downstream.
type Syncer interface {
	Push(ctx context.Context, lead model.Lead, c *model.Contact) error
}

// Alerter posts best-effort notifications.
type Alerter interface {
	Post(ctx context.Context, severity, text string, fields map[string]string)
}

// Gateway is the top-level orchestrator for inbound deliveries.
type Gateway struct {
	events        EventStore
	reconciler    Reconciler
	interactions  InteractionLogger
	syncer        Syncer
	alerts        Alerter
	extractor     *extract.Extractor
	provider      string
	triggerGroups []string
}

// GatewayConfig wires the gateway's collaborators.
type GatewayConfig struct {
	Events        EventStore
	Reconciler    Reconciler
	Interactions  InteractionLogger
	Syncer        Syncer
	Alerts        Alerter
	Extractor     *extract.Extractor
	Provider      string
	TriggerGroups []string
}

func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		events:        cfg.Events,
		reconciler:    cfg.Reconciler,
		interactions:  cfg.Interactions,
		syncer:        cfg.Syncer,
		alerts:        cfg.Alerts,
		extractor:     cfg.Extractor,
		provider:      cfg.Provider,
		triggerGroups: cfg.TriggerGroups,
	}
}

// DeliveryResult is what the webhook handler reports back upstream.
type DeliveryResult struct {
	EventID   string            `json:"event_id,omitempty"`
	Duplicate bool              `json:"duplicate,omitempty"`
	Status    model.EventStatus `json:"status,omitempty"`
	Lead      model.Lead        `json:"lead"`
	Error     string            `json:"error,omitempty"`
}

// HandleDelivery persists the raw event before any side effect, then runs
// the pipeline and patches the final status. The returned error means the
// event could not be durably stored (the one case the webhook must not
// answer 200); pipeline failures are reported inside the result instead.
func (g *Gateway) HandleDelivery(ctx context.Context, env *extract.Envelope, payload []byte) (*DeliveryResult, error) {
	msg := env.Message()
	ev := &model.RawEvent{
		Provider:  g.provider,
		ContactID: env.ContactID(),
		MessageID: env.MessageID(),
		DedupeKey: event.DedupeKey(g.provider, env.ContactID(), msg),
		Payload:   payload,
	}

	inserted, err := g.events.Insert(ctx, ev)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist event")
	}
	if !inserted {
		zap.L().Info("duplicate delivery dropped",
			zap.String("provider", g.provider),
			zap.String("dedupe_key", ev.DedupeKey))
		return &DeliveryResult{Duplicate: true}, nil
	}

	lead, procErr := g.ProcessEvent(ctx, ev)
	return g.finishEvent(ctx, ev, lead, procErr), nil
}

// ProcessEvent runs extraction, reconciliation, interaction logging, and
// sync for one stored event. It does not patch event status; callers do.
func (g *Gateway) ProcessEvent(ctx context.Context, ev *model.RawEvent) (model.Lead, error) {
	env, err := extract.Decode(ev.Payload)
	if err != nil {
		return model.Lead{}, eris.Wrap(err, "pipeline: decode stored payload")
	}

	lead := g.extractor.Extract(env)
	if lead.Confidence < lowConfidenceThreshold {
		g.alerts.Post(ctx, alert.SeverityWarning, "low extraction confidence", map[string]string{
			"event_id":   ev.ID,
			"confidence": fmt.Sprintf("%.2f", lead.Confidence),
			"contact_id": ev.ContactID,
		})
	}

	incoming := contactFromLead(env, lead)
	var reconciled *model.Contact
	if hasNaturalKey(incoming) {
		reconciled, err = g.reconciler.Reconcile(ctx, incoming)
		if err != nil {
			return lead, eris.Wrap(err, "pipeline: reconcile contact")
		}
	}

	g.logInteraction(ctx, env, ev, lead, reconciled)

	if err := g.syncer.Push(ctx, lead, reconciled); err != nil {
		if errors.Is(err, mailsync.ErrNoEmail) {
			zap.L().Info("sync skipped, no email resolved", zap.String("event_id", ev.ID))
			return lead, nil
		}
		return lead, eris.Wrap(err, "pipeline: sync lead")
	}
	return lead, nil
}

// finishEvent patches the terminal status exactly once and fires the fatal
// alert on failure. The raw event is always preserved for reprocessing.
func (g *Gateway) finishEvent(ctx context.Context, ev *model.RawEvent, lead model.Lead, procErr error) *DeliveryResult {
	result := &DeliveryResult{EventID: ev.ID, Lead: lead}

	if procErr != nil {
		result.Status = model.EventStatusFailed
		result.Error = procErr.Error()
		if err := g.events.PatchStatus(ctx, ev.ID, model.EventStatusFailed, procErr.Error(), lead.Email); err != nil {
			zap.L().Error("patch event status failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
		g.alerts.Post(ctx, alert.SeverityFatal, "event processing failed", map[string]string{
			"event_id": ev.ID,
			"error":    procErr.Error(),
			"email":    lead.Email,
		})
		return result
	}

	result.Status = model.EventStatusProcessed
	if err := g.events.PatchStatus(ctx, ev.ID, model.EventStatusProcessed, "", lead.Email); err != nil {
		zap.L().Error("patch event status failed", zap.String("event_id", ev.ID), zap.Error(err))
	}
	return result
}

// Simulation is the dry-run view of a delivery: the lead that would be
// extracted and the writes that would happen, without performing any.
type Simulation struct {
	Lead              model.Lead `json:"lead"`
	WouldCreate       bool       `json:"would_create"`
	ExistingContactID string     `json:"existing_contact_id,omitempty"`
	WouldSync         bool       `json:"would_sync"`
	TriggerGroups     []string   `json:"trigger_groups"`
}

// Simulate computes the pipeline plan for a payload with no side effects.
func (g *Gateway) Simulate(ctx context.Context, env *extract.Envelope) (*Simulation, error) {
	lead := g.extractor.Extract(env)
	incoming := contactFromLead(env, lead)

	sim := &Simulation{
		Lead:          lead,
		WouldSync:     lead.Email != "",
		TriggerGroups: g.triggerGroups,
	}
	if !hasNaturalKey(incoming) {
		return sim, nil
	}

	existing, err := g.reconciler.FindExisting(ctx, incoming)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: simulate lookup")
	}
	if existing != nil {
		sim.ExistingContactID = existing.ID
	} else {
		sim.WouldCreate = true
	}
	return sim, nil
}

func contactFromLead(env *extract.Envelope, lead model.Lead) *model.Contact {
	source := env.Channel()
	if source == "" {
		source = model.PlatformInstagram
	}
	// A DM that yielded an email is a warm lead; anything else starts new.
	status := "new"
	if lead.Email != "" {
		status = "warm"
	}
	return &model.Contact{
		ManyChatContactID: env.ContactID(),
		IGUserID:          env.IGUserID(),
		IGUsername:        lead.Handle,
		Email:             lead.Email,
		Name:              lead.Name,
		NameSource:        lead.NameSource,
		FirstName:         lead.FirstName,
		LastName:          lead.LastName,
		City:              lead.City,
		Country:           lead.Country,
		Phone:             lead.Phone,
		Source:            source,
		LeadStatus:        status,
	}
}

func hasNaturalKey(c *model.Contact) bool {
	return c.ManyChatContactID != "" || c.IGUserID != "" || c.IGUsername != "" ||
		c.AltUsername != "" || c.Email != ""
}

// logInteraction appends the inbound touch best-effort: a failure here
// never fails the event.
func (g *Gateway) logInteraction(ctx context.Context, env *extract.Envelope, ev *model.RawEvent, lead model.Lead, reconciled *model.Contact) {
	occurredRaw := env.OccurredAt()
	occurredAt, err := time.Parse(time.RFC3339, occurredRaw)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	// Stable across replays: the same delivery always logs the same id.
	suffix := occurredRaw
	if suffix == "" {
		suffix = ev.DedupeKey
	}

	leadJSON, _ := json.Marshal(lead)
	in := &model.Interaction{
		Platform:       model.PlatformInstagram,
		Direction:      model.DirectionInbound,
		Type:           model.InteractionTypeDM,
		ExternalID:     fmt.Sprintf("%s:%s:%s", ev.Provider, ev.ContactID, suffix),
		Content:        lead.Message,
		ExtractedEmail: lead.Email,
		Meta: map[string]any{
			"channel": env.Channel(),
			"lead":    json.RawMessage(leadJSON),
			"payload": json.RawMessage(ev.Payload),
		},
		OccurredAt: occurredAt,
	}
	if lead.Confidence > 0 {
		conf := lead.Confidence
		in.ExtractionConfidence = &conf
	}
	if reconciled != nil {
		in.ContactID = reconciled.ID
	}

	if _, err := g.interactions.InsertInteraction(ctx, in); err != nil {
		zap.L().Warn("interaction log failed",
			zap.String("event_id", ev.ID),
			zap.Error(err))
	}
}
