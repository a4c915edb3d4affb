package model

import "time"

// NameSource records which heuristic produced a contact's stored name. A
// manual source is never demoted by an automated one.
type NameSource string

const (
	NameSourceProfile NameSource = "platform_profile_name"
	NameSourceDM      NameSource = "dm_derived"
	NameSourceHandle  NameSource = "handle_derived"
	NameSourceEmail   NameSource = "email_derived"
	NameSourceManual  NameSource = "manual"
	NameSourceUnknown NameSource = "unknown"
)

// Rank orders name sources by trustworthiness; lower is better. Manual
// outranks everything so reconciliation can protect curated names.
func (s NameSource) Rank() int {
	switch s {
	case NameSourceManual:
		return 0
	case NameSourceProfile:
		return 1
	case NameSourceDM:
		return 2
	case NameSourceHandle:
		return 3
	case NameSourceEmail:
		return 4
	default:
		return 5
	}
}

// Contact is the durable identity record. Any of the natural keys
// (manychat_contact_id, ig_user_id, ig_username, email) may be absent; the
// reconciler converges concurrent deliveries onto one row via the store's
// unique constraints.
type Contact struct {
	ID                string     `json:"id" db:"id"`
	ManyChatContactID string     `json:"manychat_contact_id,omitempty" db:"manychat_contact_id"`
	IGUserID          string     `json:"ig_user_id,omitempty" db:"ig_user_id"`
	IGUsername        string     `json:"instagram_username,omitempty" db:"instagram_username"`
	AltUsername       string     `json:"alt_username,omitempty" db:"alt_username"`
	Email             string     `json:"email,omitempty" db:"email"`
	Name              string     `json:"name,omitempty" db:"name"`
	NameSource        NameSource `json:"name_source" db:"name_source"`
	FirstName         string     `json:"first_name,omitempty" db:"first_name"`
	LastName          string     `json:"last_name,omitempty" db:"last_name"`
	City              string     `json:"city,omitempty" db:"city"`
	Country           string     `json:"country,omitempty" db:"country"`
	Phone             string     `json:"phone,omitempty" db:"phone"`
	Source            string     `json:"source,omitempty" db:"source"`
	LeadStatus        string     `json:"lead_status,omitempty" db:"lead_status"`
	Tags              []string   `json:"tags,omitempty" db:"tags"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// HasManualName reports whether the stored name is operator-curated and must
// survive automated merges.
func (c *Contact) HasManualName() bool {
	return c.Name != "" && c.NameSource == NameSourceManual
}
