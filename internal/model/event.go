// Package model defines the durable records and pipeline value types shared
// across the ingestion pipeline.
package model

import "time"

// EventStatus is the processing state of a raw inbound event.
type EventStatus string

const (
	EventStatusNew       EventStatus = "new"
	EventStatusProcessed EventStatus = "processed"
	EventStatusFailed    EventStatus = "failed"
)

// RawEvent is the immutable record of one inbound webhook delivery. It is
// written before any side effect so a crashed pipeline can always be
// re-driven from the stored payload. Only status/attempt fields are ever
// patched; rows are never deleted.
type RawEvent struct {
	ID              string      `json:"id" db:"id"`
	Provider        string      `json:"provider" db:"provider"`
	ContactID       string      `json:"contact_id,omitempty" db:"contact_id"`
	MessageID       string      `json:"message_id,omitempty" db:"message_id"`
	DedupeKey       string      `json:"dedupe_key" db:"dedupe_key"`
	Payload         []byte      `json:"payload" db:"payload"`
	Status          EventStatus `json:"status" db:"status"`
	AttemptCount    int         `json:"attempt_count" db:"attempt_count"`
	PermanentFailed bool        `json:"permanent_failed" db:"permanent_failed"`
	LastError       string      `json:"last_error,omitempty" db:"last_error"`
	ResolvedEmail   string      `json:"resolved_email,omitempty" db:"resolved_email"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}
