package weather

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulesBook resolves the SafetyRules for a leg. A route override wins over an
// airport override, which wins over the default.
type RulesBook struct {
	Default  SafetyRules            `yaml:"default"`
	Airports map[string]SafetyRules `yaml:"airports"`
	// Routes are keyed "FROM-TO", e.g. "PAMR-PALH".
	Routes map[string]SafetyRules `yaml:"routes"`
}

func NewRulesBook(def SafetyRules) *RulesBook {
	return &RulesBook{Default: def}
}

// LoadRulesBook reads overrides from a YAML file on top of def. An empty path
// returns a book holding only def.
func LoadRulesBook(path string, def SafetyRules) (*RulesBook, error) {
	book := NewRulesBook(def)
	if path == "" {
		return book, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read safety rules: %w", err)
	}
	if err := yaml.Unmarshal(data, book); err != nil {
		return nil, fmt.Errorf("failed to parse safety rules: %w", err)
	}
	book.normalize()
	return book, nil
}

func (b *RulesBook) normalize() {
	airports := make(map[string]SafetyRules, len(b.Airports))
	for code, r := range b.Airports {
		airports[strings.ToUpper(code)] = r
	}
	b.Airports = airports

	routes := make(map[string]SafetyRules, len(b.Routes))
	for key, r := range b.Routes {
		routes[strings.ToUpper(key)] = r
	}
	b.Routes = routes
}

func (b *RulesBook) ForLeg(from, to, airport string) SafetyRules {
	if r, ok := b.Routes[routeKey(from, to)]; ok {
		return r
	}
	if r, ok := b.Airports[strings.ToUpper(airport)]; ok {
		return r
	}
	return b.Default
}

func (b *RulesBook) ForAirport(airport string) SafetyRules {
	if r, ok := b.Airports[strings.ToUpper(airport)]; ok {
		return r
	}
	return b.Default
}

func routeKey(from, to string) string {
	return strings.ToUpper(from) + "-" + strings.ToUpper(to)
}
