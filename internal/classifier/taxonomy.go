package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule binds a category to the patterns that select it.
type Rule[C ~string] struct {
	Category C
	Patterns []*regexp.Regexp
}

// Match is the outcome of classifying one utterance.
type Match[C ~string] struct {
	Category C
	// Matched is false when no rule fired and Category is the fallback.
	Matched bool
	// Pattern is the source of the rule pattern that fired.
	Pattern string
}

// Taxonomy is an ordered, immutable list of rules. The first category with
// a matching pattern wins.
type Taxonomy[C ~string] struct {
	name     string
	fallback C
	rules    []Rule[C]
}

// RuleSpec is the uncompiled form of a rule.
type RuleSpec struct {
	Category string   `yaml:"category"`
	Patterns []string `yaml:"patterns"`
}

// NewTaxonomy compiles rule specs. valid rejects categories that are not
// part of the closed set C.
func NewTaxonomy[C ~string](name string, fallback C, specs []RuleSpec, valid func(C) bool) (*Taxonomy[C], error) {
	if !valid(fallback) {
		return nil, fmt.Errorf("%s: unknown fallback category %q", name, fallback)
	}
	seen := make(map[C]struct{}, len(specs))
	rules := make([]Rule[C], 0, len(specs))
	for _, spec := range specs {
		category := C(spec.Category)
		if !valid(category) {
			return nil, fmt.Errorf("%s: unknown category %q", name, spec.Category)
		}
		if _, dup := seen[category]; dup {
			return nil, fmt.Errorf("%s: category %q declared twice", name, spec.Category)
		}
		seen[category] = struct{}{}
		if len(spec.Patterns) == 0 {
			return nil, fmt.Errorf("%s: category %q has no patterns", name, spec.Category)
		}
		rule := Rule[C]{Category: category, Patterns: make([]*regexp.Regexp, 0, len(spec.Patterns))}
		for _, pattern := range spec.Patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("%s: category %q: %w", name, spec.Category, err)
			}
			rule.Patterns = append(rule.Patterns, re)
		}
		rules = append(rules, rule)
	}
	return &Taxonomy[C]{name: name, fallback: fallback, rules: rules}, nil
}

// Name identifies the taxonomy in logs.
func (t *Taxonomy[C]) Name() string { return t.name }

// Fallback is returned when no rule matches.
func (t *Taxonomy[C]) Fallback() C { return t.fallback }

// Categories lists the rule categories in priority order.
func (t *Taxonomy[C]) Categories() []C {
	out := make([]C, 0, len(t.rules))
	for _, rule := range t.rules {
		out = append(out, rule.Category)
	}
	return out
}

// Classify returns the category of text.
func (t *Taxonomy[C]) Classify(text string) C {
	return t.ClassifyDetailed(text).Category
}

// ClassifyDetailed returns the category of text along with the rule
// pattern that selected it.
func (t *Taxonomy[C]) ClassifyDetailed(text string) Match[C] {
	normalized := Normalize(text)
	for _, rule := range t.rules {
		for _, re := range rule.Patterns {
			if re.MatchString(normalized) {
				return Match[C]{Category: rule.Category, Matched: true, Pattern: strings.TrimPrefix(re.String(), "(?i)")}
			}
		}
	}
	return Match[C]{Category: t.fallback}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// Normalize lower-cases text, folds typographic apostrophes and collapses
// whitespace.
func Normalize(text string) string {
	text = apostrophes.Replace(strings.ToLower(text))
	return strings.Join(strings.Fields(text), " ")
}
