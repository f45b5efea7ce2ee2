//go:build property

package risk_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/risk"
)

func TestScoreBounds(t *testing.T) {
	scorer := risk.NewScorer(risk.DefaultThreshold)
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	reasons := make([]interface{}, 0, len(domain.ReturnReasons))
	for _, r := range domain.ReturnReasons {
		reasons = append(reasons, r)
	}
	genReason := gen.OneConstOf(reasons...)

	properties.Property("score stays within [0, 1]", prop.ForAll(
		func(reason domain.ReturnReason, returns, age int) bool {
			score := scorer.Score(reason, &domain.User{ReturnCount: returns, AccountAgeDays: age})
			return score >= 0 && score <= 1
		},
		genReason,
		gen.IntRange(0, 500),
		gen.IntRange(0, 5000),
	))

	properties.Property("score never drops below the base risk", prop.ForAll(
		func(reason domain.ReturnReason, returns, age int) bool {
			score := scorer.Score(reason, &domain.User{ReturnCount: returns, AccountAgeDays: age})
			return score >= risk.BaseRisk(reason)
		},
		genReason,
		gen.IntRange(0, 500),
		gen.IntRange(0, 5000),
	))

	properties.Property("more returns never lowers risk for an old account", prop.ForAll(
		func(reason domain.ReturnReason, returns int) bool {
			older := &domain.User{ReturnCount: returns, AccountAgeDays: 1000}
			heavier := &domain.User{ReturnCount: returns + 1, AccountAgeDays: 1000}
			return scorer.Score(reason, heavier) >= scorer.Score(reason, older)
		},
		genReason,
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t)
}
