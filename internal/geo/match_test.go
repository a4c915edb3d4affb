package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGazetteer(t *testing.T) *Gazetteer {
	t.Helper()
	g, err := Default()
	require.NoError(t, err)
	return g
}

func TestFold(t *testing.T) {
	assert.Equal(t, "bogota", Fold("Bogotá"))
	assert.Equal(t, "medellin", Fold("  MEDELLÍN  "))
	assert.Equal(t, "la paz", Fold("La   Paz"))
	assert.Equal(t, "", Fold("   "))
}

func TestMatchCity(t *testing.T) {
	g := testGazetteer(t)

	tests := []struct {
		query   string
		city    string
		country string
	}{
		{"Medellín", "Medellín", "Colombia"},
		{"medellin", "Medellín", "Colombia"},
		{"medelin", "Medellín", "Colombia"}, // one deletion
		{"bogota", "Bogotá", "Colombia"},
		{"cdmx", "Ciudad de México", "México"},
		{"la paz", "La Paz", "Bolivia"},
		{"buenos aires", "Buenos Aires", "Argentina"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m := g.MatchCity(tt.query)
			require.NotNil(t, m)
			assert.Equal(t, tt.city, m.City)
			assert.Equal(t, tt.country, m.Country)
			assert.GreaterOrEqual(t, m.Score, 0.65)
			assert.LessOrEqual(t, m.Score, 0.9)
		})
	}
}

func TestMatchCity_RejectsFarStrings(t *testing.T) {
	g := testGazetteer(t)
	assert.Nil(t, g.MatchCity("quiero informacion del curso"))
	assert.Nil(t, g.MatchCity("xyzzy"))
	assert.Nil(t, g.MatchCity(""))
}

func TestMatchCountry(t *testing.T) {
	g := testGazetteer(t)

	tests := []struct {
		query   string
		country string
	}{
		{"bolivia", "Bolivia"},
		{"Bolívia", "Bolivia"},
		{"mejico", "México"},
		{"costa rica", "Costa Rica"},
		{"peru", "Perú"},
		{"colonbia", "Colombia"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m := g.MatchCountry(tt.query)
			require.NotNil(t, m)
			assert.Equal(t, tt.country, m.Country)
		})
	}
}

func TestMatchCity_ExactScoresHigherThanFuzzy(t *testing.T) {
	g := testGazetteer(t)
	exact := g.MatchCity("medellin")
	fuzzy := g.MatchCity("medelin")
	require.NotNil(t, exact)
	require.NotNil(t, fuzzy)
	assert.Greater(t, exact.Score, fuzzy.Score)
}

func TestCountryForCity(t *testing.T) {
	g := testGazetteer(t)
	assert.Equal(t, "Bolivia", g.CountryForCity("La Paz"))
	assert.Equal(t, "Colombia", g.CountryForCity("Medellín"))
	assert.Equal(t, "", g.CountryForCity("Atlantis"))
}
