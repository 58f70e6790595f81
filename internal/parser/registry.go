package parser

import (
	"fmt"
	"strings"

	"github.com/ecu-analyzer/backend/internal/signal"
)

// Registry holds the classifiers in the order they are tried. The first
// classifier that claims a line wins.
type Registry struct {
	classifiers []Classifier
}

// NewRegistry returns the standard classifier chain.
func NewRegistry(mode signal.Mode) *Registry {
	return &Registry{
		classifiers: []Classifier{
			NewBootTimestampClassifier(),
			NewBootClassifier(),
			NewStructuredClassifier(),
			NewMCUClassifier(mode.MaxValue()),
		},
	}
}

// Register appends a classifier after the standard chain.
func (r *Registry) Register(c Classifier) {
	r.classifiers = append(r.classifiers, c)
}

// Classify runs the chain against one cleaned line.
func (r *Registry) Classify(line string) (Match, bool) {
	for _, c := range r.classifiers {
		if m, ok := c.Classify(line); ok {
			return m, true
		}
	}
	return Match{}, false
}

// Names returns the classifier names in evaluation order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.classifiers))
	for i, c := range r.classifiers {
		names[i] = c.Name()
	}
	return names
}

// GetClassifierByName returns a classifier by its name.
func (r *Registry) GetClassifierByName(name string) (Classifier, error) {
	name = strings.ToLower(name)
	for _, c := range r.classifiers {
		if strings.ToLower(c.Name()) == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("classifier not found: %s", name)
}
