package db

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// schema is the full persisted layout. Idempotent: every statement is
// IF NOT EXISTS so migrate can run on every deploy.
//
// Uniqueness guards:
//   - raw_events (provider, dedupe_key) and (provider, message_id) collapse
//     redelivered webhooks at the storage layer
//   - contacts email and each platform identifier are individually unique so
//     concurrent inserts for the same person collide instead of duplicating
//   - interactions (platform, external_id) deduplicates the append-only log
const schema = `
CREATE TABLE IF NOT EXISTS raw_events (
	id               uuid PRIMARY KEY,
	provider         text NOT NULL,
	contact_id       text NOT NULL DEFAULT '',
	message_id       text NOT NULL DEFAULT '',
	dedupe_key       text NOT NULL,
	payload          jsonb NOT NULL,
	status           text NOT NULL DEFAULT 'new',
	attempt_count    int  NOT NULL DEFAULT 0,
	permanent_failed boolean NOT NULL DEFAULT false,
	last_error       text NOT NULL DEFAULT '',
	resolved_email   text NOT NULL DEFAULT '',
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS raw_events_provider_dedupe_key
	ON raw_events (provider, dedupe_key);
CREATE UNIQUE INDEX IF NOT EXISTS raw_events_provider_message_id
	ON raw_events (provider, message_id) WHERE message_id <> '';
CREATE INDEX IF NOT EXISTS raw_events_status
	ON raw_events (status, permanent_failed, attempt_count);

CREATE TABLE IF NOT EXISTS contacts (
	id                  uuid PRIMARY KEY,
	manychat_contact_id text,
	ig_user_id          text,
	instagram_username  text,
	alt_username        text,
	email               text,
	name                text NOT NULL DEFAULT '',
	name_source         text NOT NULL DEFAULT 'unknown',
	first_name          text NOT NULL DEFAULT '',
	last_name           text NOT NULL DEFAULT '',
	city                text NOT NULL DEFAULT '',
	country             text NOT NULL DEFAULT '',
	phone               text NOT NULL DEFAULT '',
	source              text NOT NULL DEFAULT '',
	lead_status         text NOT NULL DEFAULT '',
	tags                text[] NOT NULL DEFAULT '{}',
	created_at          timestamptz NOT NULL DEFAULT now(),
	updated_at          timestamptz NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS contacts_email
	ON contacts (lower(email)) WHERE email IS NOT NULL AND email <> '';
CREATE UNIQUE INDEX IF NOT EXISTS contacts_manychat_contact_id
	ON contacts (manychat_contact_id) WHERE manychat_contact_id IS NOT NULL AND manychat_contact_id <> '';
CREATE UNIQUE INDEX IF NOT EXISTS contacts_ig_user_id
	ON contacts (ig_user_id) WHERE ig_user_id IS NOT NULL AND ig_user_id <> '';
CREATE UNIQUE INDEX IF NOT EXISTS contacts_instagram_username
	ON contacts (lower(instagram_username)) WHERE instagram_username IS NOT NULL AND instagram_username <> '';

CREATE TABLE IF NOT EXISTS interactions (
	id                    uuid PRIMARY KEY,
	contact_id            uuid REFERENCES contacts(id),
	platform              text NOT NULL,
	direction             text NOT NULL,
	type                  text NOT NULL,
	external_id           text NOT NULL,
	thread_id             text NOT NULL DEFAULT '',
	content               text NOT NULL DEFAULT '',
	extracted_email       text NOT NULL DEFAULT '',
	extraction_confidence double precision,
	meta                  jsonb,
	occurred_at           timestamptz NOT NULL,
	created_at            timestamptz NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS interactions_platform_external_id
	ON interactions (platform, external_id);
CREATE INDEX IF NOT EXISTS interactions_contact_id
	ON interactions (contact_id);
`

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return eris.Wrap(err, "db: migrate")
	}
	zap.L().Info("schema migrated")
	return nil
}
