package contact

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tranquileza/leadflow/internal/db"
	"github.com/tranquileza/leadflow/internal/model"
)

// contactStore is the slice of Store the reconciler needs.
type contactStore interface {
	Insert(ctx context.Context, c *model.Contact) error
	Update(ctx context.Context, c *model.Contact) error
	GetByEmail(ctx context.Context, email string) (*model.Contact, error)
	GetByIGUserID(ctx context.Context, igUserID string) (*model.Contact, error)
	GetByIGUsername(ctx context.Context, username string) (*model.Contact, error)
	GetByAltUsername(ctx context.Context, username string) (*model.Contact, error)
	GetByManyChatID(ctx context.Context, contactID string) (*model.Contact, error)
}

// Reconciler converges deliveries onto one contact row per person. It
// attempts a plain insert first; when a unique constraint rejects it, the
// existing row is found via the incoming record's natural keys and patched.
// This is a compensating-transaction pattern, not a lock: correctness under
// concurrent deliveries comes from the store's unique indexes.
type Reconciler struct {
	store contactStore
}

func NewReconciler(store contactStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile inserts or merges the incoming contact and returns the row it
// landed on. An insert conflict with no matching row on any natural key
// re-raises the original insert error.
func (r *Reconciler) Reconcile(ctx context.Context, incoming *model.Contact) (*model.Contact, error) {
	insertErr := r.store.Insert(ctx, incoming)
	if insertErr == nil {
		return incoming, nil
	}
	if !db.IsUniqueViolation(insertErr) {
		return nil, insertErr
	}

	existing, err := r.lookupExisting(ctx, incoming)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// Conflict without a matching row on any key we hold: another
		// contact owns one of the values. Nothing safe to merge into.
		return nil, insertErr
	}

	merged := Merge(existing, incoming)
	if err := r.store.Update(ctx, merged); err != nil {
		return nil, err
	}
	zap.L().Debug("contact merged",
		zap.String("contact_id", merged.ID),
		zap.String("email", merged.Email))
	return merged, nil
}

// FindExisting returns the row the incoming record would land on, or nil.
// Used by simulation: no writes happen here.
func (r *Reconciler) FindExisting(ctx context.Context, incoming *model.Contact) (*model.Contact, error) {
	return r.lookupExisting(ctx, incoming)
}

// lookupExisting tries the natural keys from most to least specific.
func (r *Reconciler) lookupExisting(ctx context.Context, incoming *model.Contact) (*model.Contact, error) {
	lookups := []struct {
		key string
		get func(context.Context, string) (*model.Contact, error)
	}{
		{incoming.IGUserID, r.store.GetByIGUserID},
		{incoming.IGUsername, r.store.GetByIGUsername},
		{incoming.AltUsername, r.store.GetByAltUsername},
		{incoming.ManyChatContactID, r.store.GetByManyChatID},
		{incoming.Email, r.store.GetByEmail},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		existing, err := l.get(ctx, l.key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, nil
}

// Merge folds the incoming record into the existing row. Identity keys fill
// empty slots only; descriptive fields take the newer non-empty value; a
// manually curated name survives any automated candidate.
func Merge(existing, incoming *model.Contact) *model.Contact {
	merged := *existing

	if merged.ManyChatContactID == "" {
		merged.ManyChatContactID = incoming.ManyChatContactID
	}
	if merged.IGUserID == "" {
		merged.IGUserID = incoming.IGUserID
	}
	if merged.IGUsername == "" {
		merged.IGUsername = incoming.IGUsername
	}
	if merged.AltUsername == "" {
		merged.AltUsername = incoming.AltUsername
	}
	if merged.Email == "" {
		merged.Email = incoming.Email
	}

	if incoming.City != "" {
		merged.City = incoming.City
	}
	if incoming.Country != "" {
		merged.Country = incoming.Country
	}
	if incoming.Phone != "" {
		merged.Phone = incoming.Phone
	}
	if incoming.Source != "" {
		merged.Source = incoming.Source
	}
	if incoming.LeadStatus != "" {
		merged.LeadStatus = incoming.LeadStatus
	}
	merged.Tags = unionTags(existing.Tags, incoming.Tags)

	if incoming.Name != "" && !nameProtected(existing, incoming) {
		merged.Name = incoming.Name
		merged.NameSource = incoming.NameSource
		merged.FirstName = incoming.FirstName
		merged.LastName = incoming.LastName
	}
	return &merged
}

// nameProtected reports whether the stored name must survive this merge: it
// is operator-curated, it is a real name rather than a copy of the handle,
// and the incoming candidate is not itself manual.
func nameProtected(existing, incoming *model.Contact) bool {
	return existing.HasManualName() &&
		!strings.EqualFold(existing.Name, existing.IGUsername) &&
		incoming.NameSource != model.NameSourceManual
}

func unionTags(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
