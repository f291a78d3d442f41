package debounce

import (
	"math/rand"
	"sync"
	"time"
)

// Decision is the outcome of evaluating a candidate timestamp against the
// currently recorded one.
type Decision int

const (
	// Skip means the index already holds a fresh enough timestamp.
	Skip Decision = iota
	// Write means the index row should be updated to the candidate timestamp.
	Write
)

func (d Decision) String() string {
	if d == Write {
		return "write"
	}
	return "skip"
}

const (
	// Floor is the hard debounce floor: gaps shorter than this are never written.
	Floor = time.Minute

	// DefaultWindow is the hard debounce window. Gaps at or beyond the window
	// are always written; gaps between the floor and the window are sampled.
	DefaultWindow = time.Hour

	// DefaultSampleProbability is the chance a mid-window gap is written anyway.
	// Keeps highly active users refreshed occasionally without amplifying writes.
	DefaultSampleProbability = 0.05
)

// Policy decides whether an activity timestamp is worth persisting given the
// previously recorded one. It is pure apart from the injected random source,
// so tests can drive it deterministically with a seeded generator.
type Policy struct {
	window          time.Duration
	probability     float64
	samplingEnabled bool

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewPolicy builds a policy with the given hard window and sampling settings.
// A nil rng falls back to a time-seeded generator; tests should pass their own.
func NewPolicy(window time.Duration, probability float64, samplingEnabled bool, rng *rand.Rand) *Policy {
	if window <= 0 {
		window = DefaultWindow
	}
	if probability <= 0 || probability > 1 {
		probability = DefaultSampleProbability
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Policy{
		window:          window,
		probability:     probability,
		samplingEnabled: samplingEnabled,
		rng:             rng,
	}
}

// Decide evaluates a candidate timestamp against the previously recorded one.
// hasPrev is false when no row exists yet for the (subject, site) pair.
//
// Rules, in order:
//  1. No prior record: Write.
//  2. Candidate not newer than the recorded timestamp: Skip. A newer recorded
//     timestamp is never regressed.
//  3. Gap below the one-minute floor: Skip.
//  4. Gap between floor and window: sampled Write with the configured
//     probability, or unconditional Write when sampling is disabled.
//  5. Gap at or beyond the window: Write.
func (p *Policy) Decide(prev time.Time, hasPrev bool, candidate time.Time) Decision {
	if !hasPrev {
		return Write
	}
	if !candidate.After(prev) {
		return Skip
	}

	gap := candidate.Sub(prev)
	if gap < Floor {
		return Skip
	}
	if gap >= p.window {
		return Write
	}

	if !p.samplingEnabled {
		return Write
	}

	p.mu.Lock()
	draw := p.rng.Float64()
	p.mu.Unlock()

	if draw < p.probability {
		return Write
	}
	return Skip
}
