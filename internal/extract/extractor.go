package extract

import (
	"math"
	"strings"

	"github.com/tranquileza/leadflow/internal/geo"
	"github.com/tranquileza/leadflow/internal/model"
	"github.com/tranquileza/leadflow/internal/names"
)

// Extractor builds a canonical Lead from an inbound Envelope. It is a pure
// function of the payload: no I/O, no side effects, safe to re-run on a
// persisted raw event.
type Extractor struct {
	geo *geo.Resolver
}

func New(geoResolver *geo.Resolver) *Extractor {
	return &Extractor{geo: geoResolver}
}

// Extract scans every known payload location for each field, arbitrates
// the candidates by source priority, and rolls up a confidence score.
func (e *Extractor) Extract(env *Envelope) model.Lead {
	set := NewCandidateSet()
	msg := env.Message()
	handle := env.IGUsername()

	set.Propose(FieldMessage, msg, "text", RankTextGeneric)
	set.Propose(FieldMessage, env.CustomField("mensaje", "message", "notas"), "custom_field", RankCustomField)

	set.Propose(FieldEmail, FirstEmail(msg), "text", RankTextGeneric)
	set.Propose(FieldEmail, FirstEmail(env.CustomField("correo", "correo electronico", "email", "mail")), "custom_field", RankCustomField)
	set.Propose(FieldEmail, FirstEmail(env.Email()), "contact_field", RankContactField)

	set.Propose(FieldPhone, FirstPhone(msg), "text", RankTextGeneric)
	set.Propose(FieldPhone, CleanPhone(env.CustomField("telefono", "teléfono", "whatsapp", "celular", "phone")), "custom_field", RankCustomField)
	set.Propose(FieldPhone, CleanPhone(env.Phone()), "contact_field", RankContactField)

	e.proposeLocation(set, env, msg)
	e.proposeName(set, env, msg, handle, strings.ToLower(set.Value(FieldEmail)))

	lead := model.Lead{
		Email:      strings.ToLower(set.Value(FieldEmail)),
		Phone:      set.Value(FieldPhone),
		City:       set.Value(FieldCity),
		Country:    set.Value(FieldCountry),
		Message:    set.Value(FieldMessage),
		Handle:     handle,
		NameSource: model.NameSourceUnknown,
		Sources:    set.Sources(),
	}

	if best, ok := set.Best(FieldName); ok {
		lead.Name = best.Value
		lead.FirstName, lead.LastName = names.Split(best.Value)
		lead.NameSource = nameSourceForRank(best.Rank)
	}

	lead.Confidence = confidence(set, lead.Phone != "")
	return lead
}

func (e *Extractor) proposeLocation(set *CandidateSet, env *Envelope, msg string) {
	if cf := env.CustomField("ciudad", "city"); cf != "" {
		if loc := e.geo.ResolvePhrase(cf); loc != nil {
			set.Propose(FieldCity, loc.City, "custom_field", RankCustomField)
			set.Propose(FieldCountry, loc.Country, "custom_field", RankCustomField)
		}
	}
	if cf := env.CustomField("pais", "país", "country"); cf != "" {
		if loc := e.geo.ResolvePhrase(cf); loc != nil {
			set.Propose(FieldCountry, loc.Country, "custom_field", RankCustomField)
		}
	}
	if loc := e.geo.Resolve(msg); loc != nil {
		set.Propose(FieldCity, loc.City, "text", RankTextHeuristic)
		set.Propose(FieldCountry, loc.Country, "text", RankTextHeuristic)
	}
}

// proposeName lets a labeled custom field compete with the name resolver's
// own priority chain (profile name, DM introduction, handle, email local
// part); the resolver's winner enters the table at the rank matching its
// provenance.
func (e *Extractor) proposeName(set *CandidateSet, env *Envelope, msg, handle, email string) {
	if cf := env.CustomField("nombre", "nombre completo", "name"); cf != "" && !names.IsJunk(cf) {
		set.Propose(FieldName, names.TitleCase(cf), "custom_field", RankCustomField)
	}
	resolved := names.Resolve(env.ProfileName(), msg, handle, email)
	if resolved.Name == "" {
		return
	}
	switch resolved.Source {
	case model.NameSourceDM:
		set.Propose(FieldName, resolved.Name, "text", RankTextHeuristic)
	case model.NameSourceProfile:
		set.Propose(FieldName, resolved.Name, "contact_field", RankContactField)
	case model.NameSourceHandle:
		set.Propose(FieldName, resolved.Name, "handle", RankHandleDerived)
	case model.NameSourceEmail:
		set.Propose(FieldName, resolved.Name, "email_local", RankEmailDerived)
	}
}

func nameSourceForRank(rank Rank) model.NameSource {
	switch rank {
	case RankTextHeuristic:
		return model.NameSourceDM
	case RankHandleDerived:
		return model.NameSourceHandle
	case RankEmailDerived:
		return model.NameSourceEmail
	default:
		return model.NameSourceProfile
	}
}

// greetingWords are openers that carry no lead signal on their own. A
// message made only of these does not count as an extracted field, so a
// bare "hola" scores 0.0.
var greetingWords = map[string]bool{
	"hola": true, "hello": true, "hi": true, "hey": true, "buenas": true,
	"buenos": true, "dias": true, "tardes": true, "noches": true,
	"gracias": true, "saludos": true, "ok": true, "si": true,
}

func substantiveMessage(msg string) bool {
	tokens := strings.Fields(geo.Fold(msg))
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !greetingWords[strings.Trim(tok, ".,!?")] {
			return true
		}
	}
	return false
}

// confidence is filled-field coverage over {email, name, country, city,
// message}, plus a small bonus for a phone, clamped to 1 and rounded to
// two decimals. Greeting-only messages do not count.
func confidence(set *CandidateSet, hasPhone bool) float64 {
	filled := 0
	for _, field := range []Field{FieldEmail, FieldName, FieldCountry, FieldCity} {
		if set.Value(field) != "" {
			filled++
		}
	}
	if substantiveMessage(set.Value(FieldMessage)) {
		filled++
	}
	score := float64(filled) / 5
	if hasPhone {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return math.Round(score*100) / 100
}
