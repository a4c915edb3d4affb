package extract

import (
	"regexp"
	"strings"
)

// emailPattern is deliberately permissive; validation happens downstream
// and a false positive costs less than a missed lead.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// disguisePatterns undo the ways people spell out addresses to dodge
// platform filters: "nombre arroba gmail punto com", "name (at) domain
// [dot] com", and friends.
var disguisePatterns = []struct {
	re  *regexp.Regexp
	rep string
}{
	{regexp.MustCompile(`\s*\(at\)\s*`), "@"},
	{regexp.MustCompile(`\s*\[at\]\s*`), "@"},
	{regexp.MustCompile(`\bat\b`), "@"},
	{regexp.MustCompile(`\barroba\b`), "@"},
	{regexp.MustCompile(`\s*\(dot\)\s*`), "."},
	{regexp.MustCompile(`\s*\[dot\]\s*`), "."},
	{regexp.MustCompile(`\bdot\b`), "."},
	{regexp.MustCompile(`\bpunto\b`), "."},
}

var (
	spacedAt  = regexp.MustCompile(`\s*@\s*`)
	spacedDot = regexp.MustCompile(`\s*\.\s*`)
)

// ExtractEmails returns the likely email addresses in a message, in
// first-seen order, including disguised forms. Trailing punctuation is
// stripped and duplicates are collapsed case-insensitively.
func ExtractEmails(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	normalized := strings.ToLower(text)
	for _, p := range disguisePatterns {
		normalized = p.re.ReplaceAllString(normalized, p.rep)
	}
	normalized = spacedAt.ReplaceAllString(normalized, "@")
	normalized = spacedDot.ReplaceAllString(normalized, ".")

	var out []string
	seen := map[string]bool{}
	for _, match := range append(emailPattern.FindAllString(text, -1), emailPattern.FindAllString(normalized, -1)...) {
		email := strings.Trim(match, ".,;:!")
		at := strings.LastIndex(email, "@")
		if at <= 0 || !strings.Contains(email[at:], ".") {
			continue
		}
		key := strings.ToLower(email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, email)
	}
	return out
}

// FirstEmail returns the first extracted email, or "".
func FirstEmail(text string) string {
	emails := ExtractEmails(text)
	if len(emails) == 0 {
		return ""
	}
	return emails[0]
}
