package kpi

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ecu-analyzer/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed suites.yaml
var builtinSuites []byte

// ErrUnknownSuite is returned when a suite name is not loaded.
var ErrUnknownSuite = errors.New("unknown kpi suite")

// Suite is a named list of KPI definitions.
type Suite struct {
	Name  string                 `yaml:"name" json:"name"`
	Title string                 `yaml:"title" json:"title"`
	KPIs  []models.KPIDefinition `yaml:"kpis" json:"kpis"`
}

type suitesFile struct {
	Suites []Suite `yaml:"suites"`
}

// Suites indexes suites by name.
type Suites struct {
	byName map[string]*Suite
}

// DefaultSuites returns the built-in qnx, caros and android suites.
func DefaultSuites() *Suites {
	s, err := decodeSuites(builtinSuites)
	if err != nil {
		panic(fmt.Sprintf("kpi: invalid built-in suites: %v", err))
	}
	return s
}

// LoadSuites decodes a suites document from r.
func LoadSuites(r io.Reader) (*Suites, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading kpi suites: %w", err)
	}
	return decodeSuites(data)
}

// LoadSuitesFile loads suites from path, layered over the built-in ones.
// Suites in the file replace built-in suites with the same name.
func LoadSuitesFile(path string) (*Suites, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening kpi suites: %w", err)
	}
	defer f.Close()

	custom, err := LoadSuites(f)
	if err != nil {
		return nil, err
	}
	merged := DefaultSuites()
	for name, s := range custom.byName {
		merged.byName[name] = s
	}
	return merged, nil
}

func decodeSuites(data []byte) (*Suites, error) {
	var doc suitesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding kpi suites: %w", err)
	}

	out := &Suites{byName: make(map[string]*Suite, len(doc.Suites))}
	for i := range doc.Suites {
		s := &doc.Suites[i]
		if s.Name == "" {
			return nil, fmt.Errorf("kpi suite %d has no name", i)
		}
		for j, def := range s.KPIs {
			if def.Pattern == "" {
				return nil, fmt.Errorf("kpi suite %s: definition %d has no pattern", s.Name, j)
			}
		}
		out.byName[s.Name] = s
	}
	return out, nil
}

// Get returns the named suite.
func (s *Suites) Get(name string) (*Suite, error) {
	suite, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSuite, name)
	}
	return suite, nil
}

// Names lists the loaded suites alphabetically.
func (s *Suites) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the suites ordered by name.
func (s *Suites) All() []*Suite {
	out := make([]*Suite, 0, len(s.byName))
	for _, name := range s.Names() {
		out = append(out, s.byName[name])
	}
	return out
}
