package names

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tranquileza/leadflow/internal/model"
)

func TestFromDM(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"me llamo", "Hola, me llamo Carolina Ruiz y quiero información", "Carolina Ruiz"},
		{"mi nombre es", "mi nombre es josé manuel", "José Manuel"},
		{"te escribe", "Buenas tardes, te escribe Andrea", "Andrea"},
		{"soy plus name", "soy Valentina, de Medellín", "Valentina"},
		{"soy de place is not a name", "soy de Colombia", ""},
		{"no introduction", "quiero el curso por favor", ""},
		{"placeholder inside intro", "me llamo {{first_name}}", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromDM(tt.text))
		})
	}
}

func TestResolve_PriorityOrder(t *testing.T) {
	t.Run("profile wins when clean", func(t *testing.T) {
		r := Resolve("MARIA LOPEZ", "me llamo Carolina", "caro.ruiz", "caro@x.com")
		assert.Equal(t, "Maria Lopez", r.Name)
		assert.Equal(t, model.NameSourceProfile, r.Source)
		assert.Equal(t, "Maria", r.First)
		assert.Equal(t, "Lopez", r.Last)
	})

	t.Run("junk profile falls through to DM", func(t *testing.T) {
		r := Resolve("{{first_name}}", "me llamo Carolina Ruiz", "caro.ruiz", "caro@x.com")
		assert.Equal(t, "Carolina Ruiz", r.Name)
		assert.Equal(t, model.NameSourceDM, r.Source)
	})

	t.Run("handle when no profile or DM name", func(t *testing.T) {
		r := Resolve("", "hola buenas", "caro.ruiz_21", "")
		assert.Equal(t, "Caro Ruiz", r.Name)
		assert.Equal(t, model.NameSourceHandle, r.Source)
	})

	t.Run("email local part as last resort", func(t *testing.T) {
		r := Resolve("", "", "", "laura.martinez@gmail.com")
		assert.Equal(t, "Laura Martinez", r.Name)
		assert.Equal(t, model.NameSourceEmail, r.Source)
	})

	t.Run("nothing usable", func(t *testing.T) {
		r := Resolve("Full Name", "hola", "99", "jd@x.com")
		assert.Empty(t, r.Name)
		assert.Equal(t, model.NameSourceUnknown, r.Source)
	})
}
