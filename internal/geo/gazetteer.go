// Package geo resolves free-text location mentions against a canonical
// city/country gazetteer using fuzzy matching.
package geo

import (
	_ "embed"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var gazetteerYAML []byte

// CityEntry is one canonical city with its country and accepted spellings.
type CityEntry struct {
	Name    string   `yaml:"name"`
	Country string   `yaml:"country"`
	Aliases []string `yaml:"aliases"`
}

// CountryEntry is one canonical country with accepted spellings.
type CountryEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Gazetteer holds the loaded place tables plus a city→country inference map.
type Gazetteer struct {
	Cities    []CityEntry
	Countries []CountryEntry

	cityCountry map[string]string
}

type gazetteerFile struct {
	Countries []CountryEntry `yaml:"countries"`
	Cities    []CityEntry    `yaml:"cities"`
}

var (
	loadOnce sync.Once
	loaded   *Gazetteer
	loadErr  error
)

// Default returns the embedded gazetteer, parsed once.
func Default() (*Gazetteer, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(gazetteerYAML)
	})
	return loaded, loadErr
}

// Parse decodes a YAML gazetteer document.
func Parse(raw []byte) (*Gazetteer, error) {
	var file gazetteerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, eris.Wrap(err, "geo: parse gazetteer")
	}
	if len(file.Cities) == 0 || len(file.Countries) == 0 {
		return nil, eris.New("geo: gazetteer missing cities or countries")
	}

	g := &Gazetteer{
		Cities:      file.Cities,
		Countries:   file.Countries,
		cityCountry: make(map[string]string, len(file.Cities)),
	}
	for _, c := range file.Cities {
		g.cityCountry[Fold(c.Name)] = c.Country
	}
	return g, nil
}

// CountryForCity returns the canonical country for a canonical city name,
// or "" when unknown.
func (g *Gazetteer) CountryForCity(city string) string {
	return g.cityCountry[Fold(city)]
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases, strips diacritics, and collapses whitespace so gazetteer
// comparisons are spelling-tolerant.
func Fold(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
