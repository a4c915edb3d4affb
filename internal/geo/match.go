package geo

import (
	"github.com/agext/levenshtein"
)

// maxDistanceRatio is the fuzzy-match acceptance bound: edit distance over
// max(3, query length) must not exceed it.
const maxDistanceRatio = 0.3

// CityMatch is an accepted fuzzy match against the city table.
type CityMatch struct {
	City    string
	Country string
	Score   float64
}

// CountryMatch is an accepted fuzzy match against the country table.
type CountryMatch struct {
	Country string
	Score   float64
}

// distance is plain Levenshtein edit distance between folded strings.
func distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// scoreFor converts an accepted distance into a score. Exact matches score
// 0.9; the score decays with distance toward the 0.65 floor.
func scoreFor(d int, queryLen int) float64 {
	denom := queryLen
	if denom < 3 {
		denom = 3
	}
	ratio := float64(d) / float64(denom)
	score := 0.9 - 0.75*ratio
	if score < 0.65 {
		score = 0.65
	}
	return score
}

// accepted reports whether distance d is close enough for a query of the
// given folded length.
func accepted(d int, queryLen int) bool {
	denom := queryLen
	if denom < 3 {
		denom = 3
	}
	return float64(d)/float64(denom) <= maxDistanceRatio
}

// MatchCity fuzzily matches a phrase against canonical city names and their
// aliases. Returns nil when nothing is close enough.
func (g *Gazetteer) MatchCity(query string) *CityMatch {
	q := Fold(query)
	if q == "" {
		return nil
	}
	qLen := len([]rune(q))

	var best *CityMatch
	bestDist := -1
	for i := range g.Cities {
		entry := &g.Cities[i]
		d := bestEntryDistance(q, Fold(entry.Name), entry.Aliases)
		if !accepted(d, qLen) {
			continue
		}
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = &CityMatch{
				City:    entry.Name,
				Country: entry.Country,
				Score:   scoreFor(d, qLen),
			}
		}
	}
	return best
}

// MatchCountry fuzzily matches a phrase against canonical country names and
// their aliases. Returns nil when nothing is close enough.
func (g *Gazetteer) MatchCountry(query string) *CountryMatch {
	q := Fold(query)
	if q == "" {
		return nil
	}
	qLen := len([]rune(q))

	var best *CountryMatch
	bestDist := -1
	for i := range g.Countries {
		entry := &g.Countries[i]
		d := bestEntryDistance(q, Fold(entry.Name), entry.Aliases)
		if !accepted(d, qLen) {
			continue
		}
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = &CountryMatch{
				Country: entry.Name,
				Score:   scoreFor(d, qLen),
			}
		}
	}
	return best
}

func bestEntryDistance(query, canonical string, aliases []string) int {
	best := distance(query, canonical)
	for _, alias := range aliases {
		if d := distance(query, Fold(alias)); d < best {
			best = d
		}
	}
	return best
}
