package extract

// Rank orders candidate sources; lower wins. The order is fixed: a
// heuristic hit in the DM text beats a generic text match, which beats a
// labeled custom field, a structured contact field, and finally values
// derived from the handle or the email local part.
type Rank int

const (
	RankTextHeuristic Rank = iota
	RankTextGeneric
	RankCustomField
	RankContactField
	RankHandleDerived
	RankEmailDerived
)

// Field names the extractable lead fields.
type Field string

const (
	FieldEmail   Field = "email"
	FieldName    Field = "name"
	FieldPhone   Field = "phone"
	FieldCity    Field = "city"
	FieldCountry Field = "country"
	FieldMessage Field = "message"
)

// Candidate is one proposed value for a field with its provenance.
type Candidate struct {
	Value  string
	Source string
	Rank   Rank
}

// CandidateSet is the per-event arbitration table: every source proposes
// into it, and Best applies the precedence rules independently of how the
// candidates were found.
type CandidateSet struct {
	fields map[Field][]Candidate
}

func NewCandidateSet() *CandidateSet {
	return &CandidateSet{fields: map[Field][]Candidate{}}
}

// Propose records a candidate. Empty values are ignored.
func (s *CandidateSet) Propose(field Field, value, source string, rank Rank) {
	if value == "" {
		return
	}
	s.fields[field] = append(s.fields[field], Candidate{Value: value, Source: source, Rank: rank})
}

// Best returns the winning candidate for a field. Lowest rank wins; among
// equal ranks the earliest proposal wins, except for the message field
// where a strictly longer value displaces an equal-ranked one.
func (s *CandidateSet) Best(field Field) (Candidate, bool) {
	candidates := s.fields[field]
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case c.Rank < best.Rank:
			best = c
		case c.Rank == best.Rank && field == FieldMessage && len(c.Value) > len(best.Value):
			best = c
		}
	}
	return best, true
}

// Value returns the winning value for a field, or "".
func (s *CandidateSet) Value(field Field) string {
	best, ok := s.Best(field)
	if !ok {
		return ""
	}
	return best.Value
}

// Sources lists the origin tag of each winning field, as "field:source",
// in a stable order.
func (s *CandidateSet) Sources() []string {
	var out []string
	for _, field := range []Field{FieldEmail, FieldName, FieldPhone, FieldCity, FieldCountry, FieldMessage} {
		if best, ok := s.Best(field); ok {
			out = append(out, string(field)+":"+best.Source)
		}
	}
	return out
}
