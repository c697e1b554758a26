package fixtures

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a category, case type and case created together.
type Scenario struct {
	Name     string          `yaml:"-"`
	Category CategoryOptions `yaml:"category"`
	CaseType CaseTypeOptions `yaml:"caseType"`
	Case     CaseOptions     `yaml:"case"`
}

//go:embed scenarios.yaml
var embeddedScenarios []byte

var scenarios = mustLoadScenarios(embeddedScenarios)

func mustLoadScenarios(data []byte) map[string]Scenario {
	s, err := loadScenarios(data)
	if err != nil {
		panic(fmt.Sprintf("failed to load embedded scenarios: %v", err))
	}
	return s
}

func loadScenarios(data []byte) (map[string]Scenario, error) {
	var raw map[string]Scenario
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse scenarios yaml: %w", err)
	}
	for name, s := range raw {
		if s.Category.Name == "" || s.CaseType.Name == "" || s.Case.Name == "" {
			return nil, fmt.Errorf("scenario %s: every entity needs a name", name)
		}
		s.Name = name
		raw[name] = s
	}
	return raw, nil
}

// Lookup returns the named scenario, e.g. SIMPLE_CASE.
func Lookup(name string) (Scenario, error) {
	s, ok := scenarios[strings.ToUpper(name)]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (have %s)", name, strings.Join(ScenarioNames(), ", "))
	}
	return s, nil
}

// ScenarioNames lists the embedded scenarios in name order.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
