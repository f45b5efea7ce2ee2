package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/returnflow/pkg/util/errorutil"
)

// limiterIdleTTL is how long an unused per-session limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TurnLimiter throttles turns per session with a token bucket.
type TurnLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastPrune time.Time
	now       func() time.Time
}

// NewTurnLimiter builds a limiter allowing perSecond turns with the given
// burst. A non-positive rate disables limiting.
func NewTurnLimiter(perSecond float64, burst int) *TurnLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TurnLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow reports whether another turn for key may proceed now.
func (l *TurnLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *TurnLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < time.Minute {
		return
	}
	l.lastPrune = now
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.entries, key)
		}
	}
}

// Handle rejects turns above the session's rate.
func (l *TurnLimiter) Handle(c *fiber.Ctx) error {
	if !l.Allow(c.Params("id")) {
		return apperrors.NewTooManyRequests("too many turns for this session, slow down")
	}
	return c.Next()
}
