package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsJunk(t *testing.T) {
	tests := []struct {
		name  string
		input string
		junk  bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"contains at sign", "maria@gmail.com", true},
		{"template braces", "{{first_name}}", true},
		{"single open brace", "{name", true},
		{"percent encoded brace", "%7Bfirst_name%7D", true},
		{"percent encoded lowercase", "%7bname%7d", true},
		{"placeholder full name", "Full Name", true},
		{"placeholder spanish", "Tu Nombre", true},
		{"placeholder accented", "Nombre", true},
		{"placeholder na", "N/A", true},
		{"one letter", "a", true},
		{"digits dominate", "x9123456", true},
		{"real name", "María Fernanda", false},
		{"real name with connector", "Juan de la Cruz", false},
		{"short but valid", "Ana", false},
		{"name with one digit", "Carlos 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.junk, IsJunk(tt.input), "input %q", tt.input)
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MARIA FERNANDA", "Maria Fernanda"},
		{"juan de la cruz", "Juan de la Cruz"},
		{"jose maría", "Jose María"},
		{"DE LA TORRE", "De la Torre"}, // leading connector still capitalized
		{"ñata gonzález", "Ñata González"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleCase(tt.input))
		})
	}
}

func TestHumanizeHandle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"maria.fernanda_99", "Maria Fernanda"},
		{"@carlos-lopez", "Carlos Lopez"},
		{"ana+maria", "Ana Maria"},
		{"12345", ""},
		{"", ""},
		{"x9", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanizeHandle(tt.input))
		})
	}
}

func TestHumanizeEmailLocal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"maria.gonzalez@gmail.com", "Maria Gonzalez"},
		{"juan_perez+promo@hotmail.com", "Juan Perez Promo"},
		{"jd@gmail.com", ""},   // single token, under 3 letters
		{"ana@gmail.com", "Ana"},
		{"@gmail.com", ""},
		{"no-at-sign", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanizeEmailLocal(tt.input))
		})
	}
}
