// Package classifier maps free-text utterances onto the closed intent and
// return-reason taxonomies using ordered pattern rules.
package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/returnflow/internal/domain"
)

//go:embed rules.yaml
var defaultRules []byte

// Set holds the taxonomies used by the conversation.
type Set struct {
	Intents *Taxonomy[domain.Intent]
	Reasons *Taxonomy[domain.ReturnReason]
}

type taxonomyFile struct {
	Fallback string     `yaml:"fallback"`
	Rules    []RuleSpec `yaml:"rules"`
}

type rulesFile struct {
	Intent taxonomyFile `yaml:"intent"`
	Reason taxonomyFile `yaml:"reason"`
}

// Load parses a YAML rules document.
func Load(data []byte) (*Set, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	intents, err := NewTaxonomy("intent", domain.Intent(file.Intent.Fallback), file.Intent.Rules, domain.Intent.Valid)
	if err != nil {
		return nil, err
	}
	reasons, err := NewTaxonomy("reason", domain.ReturnReason(file.Reason.Fallback), file.Reason.Rules, domain.ReturnReason.Valid)
	if err != nil {
		return nil, err
	}
	return &Set{Intents: intents, Reasons: reasons}, nil
}

// LoadFile reads rules from path, or the embedded rules when path is empty.
func LoadFile(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Load(data)
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
)

// Default returns the embedded rule set. It is parsed once.
func Default() *Set {
	defaultOnce.Do(func() {
		set, err := Load(defaultRules)
		if err != nil {
			panic(fmt.Sprintf("embedded classifier rules: %v", err))
		}
		defaultSet = set
	})
	return defaultSet
}
