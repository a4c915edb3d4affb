// Package contact persists the durable identity records and reconciles
// concurrent deliveries for the same person onto a single row.
package contact

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/tranquileza/leadflow/internal/db"
	"github.com/tranquileza/leadflow/internal/model"
)

const contactColumns = `id, COALESCE(manychat_contact_id, ''), COALESCE(ig_user_id, ''),
	COALESCE(instagram_username, ''), COALESCE(alt_username, ''), COALESCE(email, ''),
	name, name_source, first_name, last_name, city, country, phone, source, lead_status,
	tags, created_at, updated_at`

// Store persists contacts and the append-only interaction log.
type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes a new contact row. Natural keys are stored as NULL when
// empty so the partial unique indexes only guard real values. A unique
// violation bubbles up for the reconciler's fallback path.
func (s *Store) Insert(ctx context.Context, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.NameSource == "" {
		c.NameSource = model.NameSourceUnknown
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO contacts (id, manychat_contact_id, ig_user_id, instagram_username,
			alt_username, email, name, name_source, first_name, last_name,
			city, country, phone, source, lead_status, tags)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.ManyChatContactID, c.IGUserID, c.IGUsername, c.AltUsername,
		c.Email, c.Name, c.NameSource, c.FirstName, c.LastName,
		c.City, c.Country, c.Phone, c.Source, c.LeadStatus, c.Tags)
	if err != nil {
		return eris.Wrap(err, "contact: insert")
	}
	return nil
}

// Update rewrites the mutable fields of an existing row.
func (s *Store) Update(ctx context.Context, c *model.Contact) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE contacts
		SET manychat_contact_id = NULLIF($1, ''), ig_user_id = NULLIF($2, ''),
			instagram_username = NULLIF($3, ''), alt_username = NULLIF($4, ''),
			email = NULLIF($5, ''), name = $6, name_source = $7,
			first_name = $8, last_name = $9, city = $10, country = $11,
			phone = $12, source = $13, lead_status = $14, tags = $15,
			updated_at = now()
		WHERE id = $16`,
		c.ManyChatContactID, c.IGUserID, c.IGUsername, c.AltUsername,
		c.Email, c.Name, c.NameSource, c.FirstName, c.LastName,
		c.City, c.Country, c.Phone, c.Source, c.LeadStatus, c.Tags, c.ID)
	if err != nil {
		return eris.Wrapf(err, "contact: update %s", c.ID)
	}
	return nil
}

// GetByEmail looks a contact up by email, case-insensitively. Returns
// (nil, nil) when absent.
func (s *Store) GetByEmail(ctx context.Context, email string) (*model.Contact, error) {
	return s.getBy(ctx, `lower(email) = lower($1)`, email)
}

func (s *Store) GetByIGUserID(ctx context.Context, igUserID string) (*model.Contact, error) {
	return s.getBy(ctx, `ig_user_id = $1`, igUserID)
}

func (s *Store) GetByIGUsername(ctx context.Context, username string) (*model.Contact, error) {
	return s.getBy(ctx, `lower(instagram_username) = lower($1)`, username)
}

func (s *Store) GetByAltUsername(ctx context.Context, username string) (*model.Contact, error) {
	return s.getBy(ctx, `lower(alt_username) = lower($1)`, username)
}

func (s *Store) GetByManyChatID(ctx context.Context, contactID string) (*model.Contact, error) {
	return s.getBy(ctx, `manychat_contact_id = $1`, contactID)
}

func (s *Store) getBy(ctx context.Context, where, arg string) (*model.Contact, error) {
	var c model.Contact
	err := s.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE `+where+`
		LIMIT 1`,
		arg).Scan(
		&c.ID, &c.ManyChatContactID, &c.IGUserID, &c.IGUsername, &c.AltUsername,
		&c.Email, &c.Name, &c.NameSource, &c.FirstName, &c.LastName,
		&c.City, &c.Country, &c.Phone, &c.Source, &c.LeadStatus,
		&c.Tags, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "contact: get")
	}
	return &c, nil
}

// InsertInteraction appends one interaction row. A replayed external id
// collides on (platform, external_id) and is dropped; the return value
// reports whether the row was new.
func (s *Store) InsertInteraction(ctx context.Context, in *model.Interaction) (bool, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	var meta []byte
	if in.Meta != nil {
		var err error
		meta, err = json.Marshal(in.Meta)
		if err != nil {
			return false, eris.Wrap(err, "contact: marshal interaction meta")
		}
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO interactions (id, contact_id, platform, direction, type, external_id,
			thread_id, content, extracted_email, extraction_confidence, meta, occurred_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (platform, external_id) DO NOTHING`,
		in.ID, in.ContactID, in.Platform, in.Direction, in.Type, in.ExternalID,
		in.ThreadID, in.Content, in.ExtractedEmail, in.ExtractionConfidence, meta, in.OccurredAt)
	if err != nil {
		return false, eris.Wrap(err, "contact: insert interaction")
	}
	return tag.RowsAffected() == 1, nil
}
