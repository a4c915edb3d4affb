package geo

import (
	"regexp"
	"strings"
)

// Location is a resolved city/country pair. Either side may be empty; a nil
// result means the text carried no usable location.
type Location struct {
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

// locativePrefixes introduce a place phrase in Spanish DMs. Longer prefixes
// first so "pais y ciudad:" wins over "ciudad:".
var locativePrefixes = []string{
	"pais y ciudad:",
	"pais y ciudad",
	"ciudad y pais:",
	"ciudad y pais",
	"de la ciudad de",
	"vivo en",
	"radico en",
	"resido en",
	"estoy en",
	"soy de",
	"escribo desde",
	"desde",
	"ciudad:",
	"pais:",
}

// noiseClauses start trailing content that is not part of the place phrase.
var noiseClauses = []string{
	"mi correo",
	"mi email",
	"mi mail",
	"correo:",
	"email:",
	"mi numero",
	"mi telefono",
	"mi nombre",
	"me llamo",
	"quiero",
	"quisiera",
	"y mi",
}

// connectorWords are trimmed from phrase edges. Kept minimal: over-trimming
// destroys names like "La Paz", so matching is tried before trimming.
var connectorWords = map[string]bool{
	"en": true, "de": true, "del": true, "y": true, "mi": true,
	"es": true, "la": true, "el": true, "los": true, "las": true,
}

// descriptiveStopwords never form a place on their own ("hermosa ciudad"
// is not a city). A candidate made only of these and connectors is dropped.
var descriptiveStopwords = map[string]bool{
	"ciudad": true, "pueblo": true, "pais": true, "hermosa": true,
	"hermoso": true, "bella": true, "bello": true, "bonita": true,
	"bonito": true, "linda": true, "lindo": true, "capital": true,
	"provincia": true, "departamento": true, "estado": true,
	"municipio": true, "zona": true, "region": true, "aqui": true,
}

var phraseDelimiters = regexp.MustCompile(`[.;!?\n\r]+`)

// segmentSplitter separates "Costa Rica, San Carlos" or "Bogotá y Colombia"
// style multi-place phrases.
var segmentSplitter = regexp.MustCompile(`\s*,\s*|\s+y\s+`)

// Resolver matches extracted place phrases against a gazetteer.
type Resolver struct {
	gaz *Gazetteer
}

// NewResolver creates a location resolver over the given gazetteer.
func NewResolver(gaz *Gazetteer) *Resolver {
	return &Resolver{gaz: gaz}
}

// Resolve scans free text for location mentions and returns the best
// city/country pair, or nil when nothing matches. It never errors: a
// malformed or empty input is simply a miss.
func (r *Resolver) Resolve(text string) *Location {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	phrases := extractPhrases(text)
	if len(phrases) == 0 {
		// Short texts (a bare location answer, or a custom-field value)
		// are tried whole.
		if folded := Fold(text); folded != "" && len(strings.Fields(folded)) <= 6 {
			phrases = []string{strings.TrimSpace(text)}
		}
	}

	for _, phrase := range phrases {
		if loc := r.resolvePhrase(phrase); loc != nil {
			return loc
		}
	}
	return nil
}

// ResolvePhrase matches one already-extracted place phrase (for labeled
// custom fields that bypass free-text scanning).
func (r *Resolver) ResolvePhrase(phrase string) *Location {
	if strings.TrimSpace(phrase) == "" {
		return nil
	}
	return r.resolvePhrase(phrase)
}

func (r *Resolver) resolvePhrase(phrase string) *Location {
	cleaned := cleanPhrase(phrase)
	if cleaned == "" {
		return nil
	}

	// Segment-by-segment first: comma- or "y"-separated phrases usually
	// name city and country separately.
	segments := splitSegments(cleaned)
	if len(segments) > 1 {
		if loc := r.resolveSegments(segments); loc != nil {
			return loc
		}
	}

	// Whole phrase as a city.
	if m := r.matchCityTrimmed(cleaned); m != nil {
		return &Location{City: m.City, Country: m.Country, Score: m.Score, Source: "gazetteer"}
	}

	// Whole phrase as a country.
	if m := r.matchCountryTrimmed(cleaned); m != nil {
		return &Location{Country: m.Country, Score: m.Score, Source: "gazetteer"}
	}

	// Suffix split: try the trailing token(s) as country, the prefix as city.
	return r.resolveSuffixSplit(cleaned)
}

func (r *Resolver) resolveSegments(segments []string) *Location {
	var city *CityMatch
	var country *CountryMatch

	for _, seg := range segments {
		if city == nil {
			if m := r.matchCityTrimmed(seg); m != nil {
				city = m
				continue
			}
		}
		if country == nil {
			if m := r.matchCountryTrimmed(seg); m != nil {
				country = m
			}
		}
		if city != nil && country != nil {
			break
		}
	}

	switch {
	case city != nil && country != nil:
		return &Location{City: city.City, Country: country.Country, Score: city.Score, Source: "gazetteer"}
	case city != nil:
		return &Location{City: city.City, Country: city.Country, Score: city.Score, Source: "gazetteer"}
	case country != nil:
		return &Location{Country: country.Country, Score: country.Score, Source: "gazetteer"}
	default:
		return nil
	}
}

func (r *Resolver) resolveSuffixSplit(phrase string) *Location {
	tokens := strings.Fields(phrase)
	if len(tokens) < 2 {
		return nil
	}

	// Try the last one then two tokens as a country name.
	for take := 1; take <= 2 && take < len(tokens); take++ {
		suffix := strings.Join(tokens[len(tokens)-take:], " ")
		country := r.matchCountryTrimmed(suffix)
		if country == nil {
			continue
		}
		prefix := strings.Join(tokens[:len(tokens)-take], " ")
		if city := r.matchCityTrimmed(prefix); city != nil {
			return &Location{City: city.City, Country: country.Country, Score: city.Score, Source: "gazetteer"}
		}
		return &Location{Country: country.Country, Score: country.Score, Source: "gazetteer"}
	}
	return nil
}

// matchCityTrimmed tries the raw phrase first, then with edge connectors
// trimmed. Trimming last keeps "La Paz" intact.
func (r *Resolver) matchCityTrimmed(phrase string) *CityMatch {
	if isStopwordOnly(phrase) {
		return nil
	}
	if m := r.gaz.MatchCity(phrase); m != nil {
		return m
	}
	trimmed := trimConnectors(phrase)
	if trimmed == "" || trimmed == phrase || isStopwordOnly(trimmed) {
		return nil
	}
	return r.gaz.MatchCity(trimmed)
}

func (r *Resolver) matchCountryTrimmed(phrase string) *CountryMatch {
	if isStopwordOnly(phrase) {
		return nil
	}
	if m := r.gaz.MatchCountry(phrase); m != nil {
		return m
	}
	trimmed := trimConnectors(phrase)
	if trimmed == "" || trimmed == phrase || isStopwordOnly(trimmed) {
		return nil
	}
	return r.gaz.MatchCountry(trimmed)
}

// extractPhrases finds place phrases behind locative prefixes and labeled
// lines, clause by clause.
func extractPhrases(text string) []string {
	var phrases []string
	for _, clause := range phraseDelimiters.Split(text, -1) {
		folded := Fold(clause)
		if folded == "" {
			continue
		}
		for _, prefix := range locativePrefixes {
			idx := strings.Index(folded, prefix)
			if idx == -1 {
				continue
			}
			rest := strings.TrimSpace(folded[idx+len(prefix):])
			if rest != "" {
				phrases = append(phrases, rest)
			}
			break
		}
	}
	return phrases
}

// cleanPhrase folds the phrase, cuts trailing noise clauses, and drops
// trailing connector words. Leading connectors are kept: they may be part
// of the place name ("La Paz").
func cleanPhrase(phrase string) string {
	folded := Fold(phrase)
	for _, noise := range noiseClauses {
		if idx := strings.Index(folded, noise); idx != -1 {
			folded = strings.TrimSpace(folded[:idx])
		}
	}
	folded = strings.Trim(folded, " ,:;-")

	tokens := strings.Fields(folded)
	for len(tokens) > 0 && connectorWords[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func splitSegments(phrase string) []string {
	parts := segmentSplitter.Split(phrase, -1)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func trimConnectors(phrase string) string {
	tokens := strings.Fields(phrase)
	for len(tokens) > 0 && connectorWords[tokens[0]] {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && connectorWords[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// isStopwordOnly reports whether every token is a connector or descriptive
// stopword; such remnants must never become a place.
func isStopwordOnly(phrase string) bool {
	tokens := strings.Fields(Fold(phrase))
	if len(tokens) == 0 {
		return true
	}
	for _, tok := range tokens {
		if !connectorWords[tok] && !descriptiveStopwords[tok] {
			return false
		}
	}
	return true
}
