// Package names turns noisy display names, handles, and email local parts
// into presentable person names, with aggressive rejection of placeholder
// junk that chat platforms leak into profile fields.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// placeholderPhrases are template leftovers and form labels seen in the
// wild. Matching is diacritic-insensitive and case-insensitive.
var placeholderPhrases = []string{
	"full name",
	"first name",
	"last name",
	"your name",
	"name",
	"nombre",
	"tu nombre",
	"nombre completo",
	"apellido",
	"sin nombre",
	"unknown",
	"n/a",
	"na",
	"none",
	"null",
	"test",
	"asdf",
	"user",
	"usuario",
	"instagram user",
}

// braceArtifacts betray an unrendered template variable ({{first_name}}
// or its percent-encoded form).
var braceArtifacts = []string{"{{", "}}", "{", "}", "%7B", "%7b", "%7D", "%7d"}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldForCompare lowercases and strips diacritics so "Ñandú" and "nandu"
// compare equal. Used only for junk detection, never for output.
func foldForCompare(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// IsJunk reports whether a name candidate is a placeholder or garbage and
// must be rejected regardless of its source.
func IsJunk(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	if strings.ContainsRune(trimmed, '@') {
		return true
	}
	for _, artifact := range braceArtifacts {
		if strings.Contains(trimmed, artifact) {
			return true
		}
	}

	folded := foldForCompare(trimmed)
	for _, phrase := range placeholderPhrases {
		if folded == phrase {
			return true
		}
	}

	letters, digits := 0, 0
	for _, r := range trimmed {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	if letters < 2 {
		return true
	}
	// More digits than half the letters reads as a handle or an id, not a
	// person name.
	return digits*2 > letters
}

// lowercaseConnectors stay lowercase inside a title-cased name.
var lowercaseConnectors = map[string]bool{
	"de": true, "del": true, "la": true, "las": true, "los": true,
	"el": true, "y": true, "e": true, "da": true, "das": true,
	"dos": true, "di": true, "van": true, "von": true, "san": true,
}

// TitleCase capitalizes each word, keeping connector words lowercase and
// diacritics intact. The first word is always capitalized.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		if i > 0 && lowercaseConnectors[w] {
			continue
		}
		words[i] = upperFirst(w)
	}
	return strings.Join(words, " ")
}

func upperFirst(w string) string {
	r := []rune(w)
	if len(r) == 0 {
		return w
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// handleSeparators split an Instagram handle into words.
const handleSeparators = "._-+"

// HumanizeHandle converts a platform handle like "maria.fernanda_99" into
// "Maria Fernanda". Pure-digit tokens are dropped. Returns "" when nothing
// presentable remains.
func HumanizeHandle(handle string) string {
	cleaned := strings.TrimSpace(strings.TrimPrefix(handle, "@"))
	if cleaned == "" {
		return ""
	}
	tokens := splitTokens(cleaned, handleSeparators)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimFunc(tok, unicode.IsDigit)
		if tok == "" {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return ""
	}
	candidate := TitleCase(strings.Join(kept, " "))
	if IsJunk(candidate) {
		return ""
	}
	return candidate
}

// HumanizeEmailLocal derives a name guess from the local part of an email
// address. A single short token (under 3 letters) is discarded: "jd@x.com"
// carries no usable name.
func HumanizeEmailLocal(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return ""
	}
	local := email[:at]
	tokens := splitTokens(local, "._+-")
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimFunc(tok, unicode.IsDigit)
		if tok == "" {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return ""
	}
	if len(kept) == 1 {
		letters := 0
		for _, r := range kept[0] {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters < 3 {
			return ""
		}
	}
	candidate := TitleCase(strings.Join(kept, " "))
	if IsJunk(candidate) {
		return ""
	}
	return candidate
}

func splitTokens(s, separators string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
}
