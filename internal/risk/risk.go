// Package risk scores how likely a return request is to be abusive.
package risk

import (
	"github.com/spec-kit/returnflow/internal/domain"
)

// DefaultThreshold is the score at or above which a return is high risk.
const DefaultThreshold = 0.7

var baseRisk = map[domain.ReturnReason]float64{
	domain.ReasonDamaged:        0.1,
	domain.ReasonWrongItem:      0.1,
	domain.ReasonDefective:      0.15,
	domain.ReasonSizeIssue:      0.2,
	domain.ReasonNotAsDescribed: 0.2,
	domain.ReasonBuyerRemorse:   0.3,
	domain.ReasonOther:          0.4,
}

// BaseRisk is the per-reason starting score. Unknown reasons score like
// ReasonOther.
func BaseRisk(reason domain.ReturnReason) float64 {
	if v, ok := baseRisk[reason]; ok {
		return v
	}
	return baseRisk[domain.ReasonOther]
}

// Multiplier scales the base risk by the user's return history. New
// accounts with many returns are the most suspicious.
func Multiplier(user *domain.User) float64 {
	if user == nil {
		return 1.0
	}
	switch {
	case user.AccountAgeDays < 90 && user.ReturnCount > 5:
		return 1.5
	case user.ReturnCount > 20:
		return 1.3
	case user.ReturnCount > 10:
		return 1.1
	default:
		return 1.0
	}
}

// Scorer computes fraud risk scores in [0, 1].
type Scorer struct {
	threshold float64
}

// NewScorer returns a scorer flagging scores at or above threshold. A
// threshold outside (0, 1] falls back to DefaultThreshold.
func NewScorer(threshold float64) *Scorer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Scorer{threshold: threshold}
}

// Threshold returns the high-risk cut-off.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score is min(1, base(reason) * multiplier(user)).
func (s *Scorer) Score(reason domain.ReturnReason, user *domain.User) float64 {
	score := BaseRisk(reason) * Multiplier(user)
	if score > 1 {
		score = 1
	}
	return score
}

// HighRisk reports whether score should be flagged for review.
func (s *Scorer) HighRisk(score float64) bool {
	return score >= s.threshold
}
