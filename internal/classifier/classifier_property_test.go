//go:build property

package classifier_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/spec-kit/returnflow/internal/classifier"
	"github.com/spec-kit/returnflow/internal/domain"
)

func TestClassificationIsTotalAndDeterministic(t *testing.T) {
	set := classifier.Default()
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 500
	properties := gopter.NewProperties(params)

	properties.Property("intent is always a known category and stable", prop.ForAll(
		func(text string) bool {
			first := set.Intents.Classify(text)
			return first.Valid() && first == set.Intents.Classify(text)
		},
		gen.AnyString(),
	))

	properties.Property("reason is always a known category and stable", prop.ForAll(
		func(text string) bool {
			first := set.Reasons.Classify(text)
			return first.Valid() && first == set.Reasons.Classify(text)
		},
		gen.AnyString(),
	))

	properties.Property("classification ignores case", prop.ForAll(
		func(text string) bool {
			return set.Intents.Classify(strings.ToUpper(text)) == set.Intents.Classify(strings.ToLower(text))
		},
		gen.AlphaString(),
	))

	properties.Property("a damage keyword always classifies as damaged", prop.ForAll(
		func(prefix, suffix string) bool {
			return set.Reasons.Classify(prefix+" broken "+suffix) == domain.ReasonDamaged
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
