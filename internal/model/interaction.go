package model

import "time"

// Interaction is an append-only log row for one inbound or outbound touch.
// (platform, external_id) is unique so replays deduplicate at the store.
type Interaction struct {
	ID                   string         `json:"id" db:"id"`
	ContactID            string         `json:"contact_id,omitempty" db:"contact_id"`
	Platform             string         `json:"platform" db:"platform"`
	Direction            string         `json:"direction" db:"direction"`
	Type                 string         `json:"type" db:"type"`
	ExternalID           string         `json:"external_id" db:"external_id"`
	ThreadID             string         `json:"thread_id,omitempty" db:"thread_id"`
	Content              string         `json:"content" db:"content"`
	ExtractedEmail       string         `json:"extracted_email,omitempty" db:"extracted_email"`
	ExtractionConfidence *float64       `json:"extraction_confidence,omitempty" db:"extraction_confidence"`
	Meta                 map[string]any `json:"meta,omitempty" db:"meta"`
	OccurredAt           time.Time      `json:"occurred_at" db:"occurred_at"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	PlatformInstagram = "instagram"
	PlatformOther     = "other"

	InteractionTypeDM = "dm"
)
