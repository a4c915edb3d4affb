package model

// Lead is the resolved, canonical view of one inbound delivery after field
// extraction and name/location resolution. It is pipeline-internal and never
// persisted as-is; the reconciler folds it into a Contact and the sync
// adapter projects it onto the marketing service payload.
type Lead struct {
	Email      string     `json:"email,omitempty"`
	Name       string     `json:"name,omitempty"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	NameSource NameSource `json:"name_source"`
	Phone      string     `json:"phone,omitempty"`
	City       string     `json:"city,omitempty"`
	Country    string     `json:"country,omitempty"`
	Message    string     `json:"message,omitempty"`
	Handle     string     `json:"handle,omitempty"`

	// Confidence is the rolled-up extraction confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Sources lists the origin tags that contributed at least one field,
	// kept for alerting and audit.
	Sources []string `json:"sources,omitempty"`
}
