package names

import (
	"regexp"
	"strings"

	"github.com/tranquileza/leadflow/internal/model"
)

// dmNamePatterns match self-introductions in Spanish-language DMs. Each
// captures the name phrase that follows the introduction.
var dmNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bme llamo\s+([\p{L}][\p{L}' ]{1,60})`),
	regexp.MustCompile(`(?i)\bmi nombre es\s+([\p{L}][\p{L}' ]{1,60})`),
	regexp.MustCompile(`(?i)\bte escribe\s+([\p{L}][\p{L}' ]{1,60})`),
	regexp.MustCompile(`(?i)\bte habla\s+([\p{L}][\p{L}' ]{1,60})`),
	regexp.MustCompile(`(?i)\batentamente[,:]?\s+([\p{L}][\p{L}' ]{1,60})`),
	// "soy X" last: it is the loosest pattern and also matches
	// "soy de Bogotá", which the location words below filter out.
	regexp.MustCompile(`(?i)\bsoy\s+([\p{L}][\p{L}' ]{1,60})`),
}

// introStopwords end the captured name phrase; "soy de Colombia" must not
// yield the name "De Colombia".
var introStopwords = map[string]bool{
	"de": true, "del": true, "desde": true, "en": true, "y": true,
	"pero": true, "que": true, "la": true, "el": true, "una": true,
	"un": true, "mi": true, "muy": true,
}

// Resolved is a name candidate with its provenance.
type Resolved struct {
	Name   string
	First  string
	Last   string
	Source model.NameSource
}

// Resolve picks the best available name, in strict priority order:
// platform profile name, DM self-introduction, humanized handle, email
// local part. Every candidate passes junk rejection; no candidate yields
// NameSourceUnknown with an empty name.
func Resolve(profileName, dmText, handle, email string) Resolved {
	if name := fromProfile(profileName); name != "" {
		return resolved(name, model.NameSourceProfile)
	}
	if name := FromDM(dmText); name != "" {
		return resolved(name, model.NameSourceDM)
	}
	if name := HumanizeHandle(handle); name != "" {
		return resolved(name, model.NameSourceHandle)
	}
	if name := HumanizeEmailLocal(email); name != "" {
		return resolved(name, model.NameSourceEmail)
	}
	return Resolved{Source: model.NameSourceUnknown}
}

func resolved(name string, source model.NameSource) Resolved {
	first, last := Split(name)
	return Resolved{Name: name, First: first, Last: last, Source: source}
}

func fromProfile(profileName string) string {
	if IsJunk(profileName) {
		return ""
	}
	return TitleCase(profileName)
}

// FromDM extracts a self-introduced name from free text, or "" when none of
// the introduction patterns produce a plausible name.
func FromDM(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	for _, pat := range dmNamePatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := trimIntroPhrase(m[1])
		if candidate == "" || IsJunk(candidate) {
			continue
		}
		return TitleCase(candidate)
	}
	return ""
}

// trimIntroPhrase cuts the captured phrase at the first stopword and caps
// it at three tokens; self-introductions rarely run longer.
func trimIntroPhrase(phrase string) string {
	tokens := strings.Fields(phrase)
	kept := make([]string, 0, 3)
	for _, tok := range tokens {
		if introStopwords[foldForCompare(tok)] {
			break
		}
		kept = append(kept, tok)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}
