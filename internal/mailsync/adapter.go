// Package mailsync pushes resolved leads to the marketing service with the
// retry and conflict semantics the pipeline depends on.
package mailsync

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tranquileza/leadflow/internal/model"
	"github.com/tranquileza/leadflow/internal/resilience"
	"github.com/tranquileza/leadflow/pkg/mailerlite"
)

// Config holds the sync-side settings.
type Config struct {
	// TriggerGroups are always assigned on every push. The pipeline only
	// ever adds a subscriber to groups; it never removes one.
	TriggerGroups []string
	// DefaultNotes is used when the delivery carried no message text.
	DefaultNotes string
	// Retry overrides the default push retry policy (3 attempts, 500ms
	// linear backoff) when non-zero.
	Retry resilience.RetryConfig
}

// Adapter syncs a reconciled lead to MailerLite.
type Adapter struct {
	client mailerlite.Client
	cfg    Config
}

func New(client mailerlite.Client, cfg Config) *Adapter {
	return &Adapter{client: client, cfg: cfg}
}

// ErrNoEmail marks a lead that cannot be synced because no email was
// resolved. The gateway treats it as a skip, not a failure.
var ErrNoEmail = eris.New("mailsync: lead has no email")

// Push upserts the subscriber and ensures the trigger groups are assigned.
// Transient failures (429, 5xx, network) are retried with linear backoff;
// a benign conflict counts as success; any other error after the retry
// budget is fatal for the event.
func (a *Adapter) Push(ctx context.Context, lead model.Lead, c *model.Contact) error {
	req := BuildRequest(lead, c, a.cfg.DefaultNotes, a.cfg.TriggerGroups)
	if req.Email == "" {
		return ErrNoEmail
	}

	retryCfg := a.cfg.Retry
	retryCfg.ShouldRetry = shouldRetry
	retryCfg.OnRetry = resilience.RetryLogger("mailerlite", "upsert_subscriber")

	conflicted := false
	err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		_, err := a.client.UpsertSubscriber(ctx, req)
		if err == nil {
			return nil
		}
		if mailerlite.IsBenignConflict(err) {
			conflicted = true
			return nil
		}
		return err
	})
	if err != nil {
		return eris.Wrap(err, "mailsync: upsert subscriber")
	}

	// The upsert path assigns groups itself; after a conflict response the
	// groups may not have been merged, so assign them explicitly.
	if conflicted {
		if err := a.assignGroups(ctx, req.Email); err != nil {
			return err
		}
	}

	zap.L().Info("lead synced",
		zap.String("email", req.Email),
		zap.Int("groups", len(req.Groups)),
		zap.Bool("conflict", conflicted))
	return nil
}

func (a *Adapter) assignGroups(ctx context.Context, email string) error {
	retryCfg := a.cfg.Retry
	retryCfg.ShouldRetry = shouldRetry
	retryCfg.OnRetry = resilience.RetryLogger("mailerlite", "assign_group")

	for _, group := range a.cfg.TriggerGroups {
		err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			err := a.client.AssignGroup(ctx, email, group)
			if err != nil && mailerlite.IsBenignConflict(err) {
				return nil
			}
			return err
		})
		if err != nil {
			return eris.Wrapf(err, "mailsync: assign group %s", group)
		}
	}
	return nil
}

// shouldRetry classifies MailerLite responses: 429 and 5xx are transient,
// everything else is permanent for this attempt. Network-level failures
// fall through to the generic transient check.
func shouldRetry(err error) bool {
	var apiErr *mailerlite.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

// BuildRequest projects the lead and its reconciled contact onto the
// subscriber payload. Empty and placeholder-looking values are omitted;
// the trigger groups are always present.
func BuildRequest(lead model.Lead, c *model.Contact, defaultNotes string, groups []string) mailerlite.UpsertRequest {
	email := lead.Email
	name := lead.Name
	first, last := lead.FirstName, lead.LastName
	city, country, phone, handle := lead.City, lead.Country, lead.Phone, lead.Handle
	if c != nil {
		if c.Email != "" {
			email = c.Email
		}
		if c.Name != "" {
			name = c.Name
			first, last = c.FirstName, c.LastName
		}
		if c.City != "" {
			city = c.City
		}
		if c.Country != "" {
			country = c.Country
		}
		if c.Phone != "" {
			phone = c.Phone
		}
		if c.IGUsername != "" {
			handle = c.IGUsername
		}
	}

	notes := strings.TrimSpace(lead.Message)
	if notes == "" {
		notes = defaultNotes
	}

	fields := map[string]string{}
	setField := func(key, value string) {
		if clean(value) != "" {
			fields[key] = value
		}
	}
	setField("name", name)
	setField("last_name", last)
	setField("country", country)
	setField("city", city)
	setField("phone", phone)
	setField("instagram", handle)
	setField("notes", notes)
	if clean(first) != "" {
		fields["name"] = first
	}

	return mailerlite.UpsertRequest{
		Email:  strings.ToLower(strings.TrimSpace(email)),
		Fields: fields,
		Groups: append([]string(nil), groups...),
		Status: "active",
	}
}

// clean drops empty and template-artifact values ("{{city}}", "%7B...").
func clean(v string) string {
	v = strings.TrimSpace(v)
	lower := strings.ToLower(v)
	for _, artifact := range []string{"{{", "}}", "{", "}", "%7b", "%7d"} {
		if strings.Contains(lower, artifact) {
			return ""
		}
	}
	return v
}
