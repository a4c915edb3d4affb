package extract

import (
	"regexp"
	"strings"
)

// phonePattern matches international-looking number runs. A candidate must
// still carry at least minPhoneDigits digits; short runs like years or
// prices are rejected.
var phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)

const minPhoneDigits = 7

// FirstPhone returns the first plausible phone number in the text with
// internal whitespace collapsed, or "".
func FirstPhone(text string) string {
	for _, match := range phonePattern.FindAllString(text, -1) {
		if digitCount(match) >= minPhoneDigits {
			return strings.Join(strings.Fields(match), " ")
		}
	}
	return ""
}

// CleanPhone validates a structured phone value with the same digit rule.
func CleanPhone(value string) string {
	value = strings.TrimSpace(value)
	if digitCount(value) < minPhoneDigits {
		return ""
	}
	return strings.Join(strings.Fields(value), " ")
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
