// Package extract turns heterogeneous inbound webhook payloads into a
// canonical lead record. Fields may arrive flat, nested under a
// contact/subscriber object, inside a custom-fields list, or buried in the
// DM text itself; every location is scanned and every candidate is ranked
// by a fixed source-priority order.
package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Envelope is a decoded inbound payload with shape-tolerant accessors.
// ManyChat has shipped at least three layouts over time: flat keys, a
// nested subscriber{} object, and an automation export with custom_fields
// and full_profile_data. Accessors try the preferred flat keys first and
// fall back to the legacy nests.
type Envelope struct {
	raw map[string]any
}

// Decode parses a raw webhook body into an Envelope. Numbers decode as
// json.Number: platform contact ids exceed float64 precision.
func Decode(payload []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "extract: decode payload")
	}
	return &Envelope{raw: raw}, nil
}

// NewEnvelope wraps an already-decoded payload map.
func NewEnvelope(raw map[string]any) *Envelope {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Envelope{raw: raw}
}

// Raw returns the underlying payload map.
func (e *Envelope) Raw() map[string]any { return e.raw }

// nested returns a sub-object by key, or nil.
func (e *Envelope) nested(key string) map[string]any {
	if m, ok := e.raw[key].(map[string]any); ok {
		return m
	}
	return nil
}

// subscriber returns the legacy contact nest, whichever name it arrived
// under.
func (e *Envelope) subscriber() map[string]any {
	for _, key := range []string{"contact", "subscriber"} {
		if m := e.nested(key); m != nil {
			return m
		}
	}
	return nil
}

func stringAt(m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			// Numeric ids arrive as JSON numbers; render without exponent.
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// ContactID is the chat-platform contact identifier.
func (e *Envelope) ContactID() string {
	if v := stringAt(e.raw, "contact_id", "subscriber_id"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "id", "contact_id")
}

// MessageID is the provider's per-message identifier, when one is sent.
func (e *Envelope) MessageID() string {
	if v := stringAt(e.raw, "message_id", "mid", "event_id"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "message_id", "mid")
}

// IGUsername is the Instagram handle, from any known location.
func (e *Envelope) IGUsername() string {
	if v := stringAt(e.raw, "instagram_username", "ig_username", "username"); v != "" {
		return strings.TrimPrefix(v, "@")
	}
	if v := stringAt(e.subscriber(), "ig_username", "instagram_username", "username"); v != "" {
		return strings.TrimPrefix(v, "@")
	}
	return strings.TrimPrefix(stringAt(e.nested("full_profile_data"), "username"), "@")
}

// IGUserID is the Instagram-side numeric user id, distinct from the
// platform contact id.
func (e *Envelope) IGUserID() string {
	if v := stringAt(e.raw, "ig_user_id", "ig_id"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "ig_user_id", "ig_id")
}

// ProfileName is the platform-supplied display name.
func (e *Envelope) ProfileName() string {
	if v := stringAt(e.raw, "full_name", "name"); v != "" {
		return v
	}
	if v := stringAt(e.subscriber(), "name", "full_name", "first_name"); v != "" {
		return v
	}
	return stringAt(e.nested("full_profile_data"), "name", "full_name")
}

// Message is the free-text DM content.
func (e *Envelope) Message() string {
	if v := stringAt(e.raw, "last_text_input", "last_input_text", "text", "message"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "last_text_input", "last_input_text", "text", "message")
}

// Email is a structured email field, when the platform supplies one.
func (e *Envelope) Email() string {
	if v := stringAt(e.raw, "email"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "email")
}

// Phone is a structured phone field, when the platform supplies one.
func (e *Envelope) Phone() string {
	if v := stringAt(e.raw, "phone", "whatsapp_phone"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "phone", "whatsapp_phone")
}

// Channel is the originating channel name; empty when unspecified.
func (e *Envelope) Channel() string {
	if v := stringAt(e.raw, "channel", "last_reply_type"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "channel")
}

// OccurredAt is the provider timestamp for the interaction, as sent.
func (e *Envelope) OccurredAt() string {
	if v := stringAt(e.raw, "last_interaction_instagram", "last_interaction", "occurred_at"); v != "" {
		return v
	}
	return stringAt(e.subscriber(), "last_interaction")
}

// CustomField looks a labeled value up by any of the given names,
// case-insensitively. Custom fields arrive either as a
// [{"name": ..., "value": ...}] list or as a plain name→value map.
func (e *Envelope) CustomField(fieldNames ...string) string {
	fields := e.customFields()
	if len(fields) == 0 {
		return ""
	}
	for _, want := range fieldNames {
		if v, ok := fields[strings.ToLower(want)]; ok && v != "" {
			return v
		}
	}
	return ""
}

func (e *Envelope) customFields() map[string]string {
	raw, ok := e.raw["custom_fields"]
	if !ok {
		if sub := e.subscriber(); sub != nil {
			raw = sub["custom_fields"]
		}
	}
	if raw == nil {
		return nil
	}

	out := map[string]string{}
	switch cf := raw.(type) {
	case []any:
		for _, item := range cf {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(stringAt(entry, "name", "field_name")))
			value := stringAt(entry, "value", "field_value")
			if name != "" && value != "" {
				out[name] = value
			}
		}
	case map[string]any:
		for name := range cf {
			if value := stringAt(cf, name); value != "" {
				out[strings.ToLower(strings.TrimSpace(name))] = value
			}
		}
	}
	return out
}
