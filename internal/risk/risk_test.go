package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/returnflow/internal/domain"
)

func TestBaseRiskTable(t *testing.T) {
	assert.Equal(t, 0.1, BaseRisk(domain.ReasonDamaged))
	assert.Equal(t, 0.1, BaseRisk(domain.ReasonWrongItem))
	assert.Equal(t, 0.2, BaseRisk(domain.ReasonSizeIssue))
	assert.Equal(t, 0.3, BaseRisk(domain.ReasonBuyerRemorse))
	assert.Equal(t, 0.4, BaseRisk(domain.ReasonOther))
	assert.Equal(t, 0.4, BaseRisk(domain.ReturnReason("lost_interest")))
	for _, r := range domain.ReturnReasons {
		assert.LessOrEqual(t, BaseRisk(r), BaseRisk(domain.ReasonOther), r)
	}
}

func TestMultiplier(t *testing.T) {
	cases := []struct {
		name string
		user *domain.User
		want float64
	}{
		{"no user", nil, 1.0},
		{"established", &domain.User{ReturnCount: 2, AccountAgeDays: 365}, 1.0},
		{"new account heavy returner", &domain.User{ReturnCount: 6, AccountAgeDays: 30}, 1.5},
		{"new account few returns", &domain.User{ReturnCount: 5, AccountAgeDays: 30}, 1.0},
		{"over twenty", &domain.User{ReturnCount: 21, AccountAgeDays: 400}, 1.3},
		{"over ten", &domain.User{ReturnCount: 11, AccountAgeDays: 400}, 1.1},
		{"exactly ten", &domain.User{ReturnCount: 10, AccountAgeDays: 400}, 1.0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Multiplier(tc.user), tc.name)
	}
}

func TestScore(t *testing.T) {
	s := NewScorer(0)
	assert.Equal(t, DefaultThreshold, s.Threshold())

	john := &domain.User{ID: "USER001", ReturnCount: 2, AccountAgeDays: 365}
	assert.Equal(t, 0.1, s.Score(domain.ReasonDamaged, john))

	abuser := &domain.User{ReturnCount: 40, AccountAgeDays: 10}
	assert.InDelta(t, 0.6, s.Score(domain.ReasonOther, abuser), 1e-9)
	assert.False(t, s.HighRisk(0.6))
	assert.True(t, s.HighRisk(0.7))
}

func TestScoreIsNotRounded(t *testing.T) {
	s := NewScorer(0)
	user := &domain.User{ReturnCount: 11, AccountAgeDays: 400}

	assert.Equal(t, 0.15*1.1, s.Score(domain.ReasonDefective, user))
	assert.NotEqual(t, domain.RoundCents(0.15*1.1), s.Score(domain.ReasonDefective, user))
}

func TestScoreIsClamped(t *testing.T) {
	// A custom base above 1/1.5 must still not exceed 1.
	baseRisk[domain.ReasonOther] = 0.9
	t.Cleanup(func() { baseRisk[domain.ReasonOther] = 0.4 })

	s := NewScorer(0.5)
	assert.Equal(t, 1.0, s.Score(domain.ReasonOther, &domain.User{ReturnCount: 9, AccountAgeDays: 1}))
}
