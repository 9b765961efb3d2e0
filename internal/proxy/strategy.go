package proxy

import (
	"math/rand/v2"

	"github.com/rotisserie/eris"
)

// Strategy selects which endpoint serves the next request attempt.
type Strategy string

const (
	// Sequential rotates through the pool in file order, wrapping around.
	Sequential Strategy = "sequential"
	// Random picks uniformly over the full list on every call. Duplicate
	// entries raise that endpoint's selection probability proportionally.
	Random Strategy = "random"
	// Performance picks the endpoint with the highest success ratio,
	// earliest index winning ties.
	Performance Strategy = "performance"
)

// ParseStrategy validates a strategy name from config or flags.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Sequential, Random, Performance:
		return Strategy(s), nil
	}
	return "", eris.Errorf("proxy: unknown rotation strategy %q", s)
}

// selectLocked picks the next endpoint under strategy. Caller holds p.mu.
func (p *Pool) selectLocked(strategy Strategy) Endpoint {
	switch strategy {
	case Random:
		return p.endpoints[rand.IntN(len(p.endpoints))]
	case Performance:
		return p.bestPerformingLocked()
	default:
		e := p.endpoints[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.endpoints)
		return e
	}
}

// bestPerformingLocked scans the pool in list order and keeps the first
// endpoint whose score strictly beats the current best. With all-zero
// stats every score is 0 and the first endpoint wins.
func (p *Pool) bestPerformingLocked() Endpoint {
	best := p.endpoints[0]
	bestScore := -1.0
	for _, e := range p.endpoints {
		var score float64
		if st, ok := p.stats[e]; ok {
			score = st.Score()
		}
		if score > bestScore {
			best = e
			bestScore = score
		}
	}
	return best
}
