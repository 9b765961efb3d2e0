package proxy

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNoEndpoints is returned when a selection or request is made against
// a pool with zero endpoints.
var ErrNoEndpoints = errors.New("proxy: no endpoints available")

// endpointFileTemplate is written when the endpoint file is missing, so the
// operator has a documented place to drop proxies for the next run.
const endpointFileTemplate = `# Add your proxies here, one per line in the format:
# http://ip:port
# https://username:password@ip:port
`

// Pool owns an ordered list of endpoints, the rotation cursor for the
// sequential strategy, and the per-endpoint stats map. All three are
// mutable shared state; every access goes through p.mu so the pool is safe
// for concurrent callers.
type Pool struct {
	mu        sync.Mutex
	endpoints []Endpoint
	cursor    int
	stats     map[Endpoint]*Stats
}

// NewPool builds a pool over the given endpoints, preserving order and
// duplicates, with an all-zero stats record per distinct endpoint.
func NewPool(endpoints []Endpoint) *Pool {
	p := &Pool{
		endpoints: append([]Endpoint(nil), endpoints...),
		stats:     make(map[Endpoint]*Stats, len(endpoints)),
	}
	for _, e := range endpoints {
		if _, ok := p.stats[e]; !ok {
			p.stats[e] = &Stats{}
		}
	}
	return p
}

// LoadFile reads one endpoint per non-empty line, whitespace-trimmed.
// Lines starting with '#' are skipped as comments; the auto-generated
// template below is all comments, so a template file loads as an empty
// pool instead of poisoning rotation with literal '#' strings.
//
// A missing file is recoverable, not fatal: the template is written in its
// place and an empty pool is returned.
func LoadFile(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "proxy: open endpoint file %s", path)
		}
		zap.L().Warn("endpoint file not found, writing template",
			zap.String("path", path),
		)
		if werr := os.WriteFile(path, []byte(endpointFileTemplate), 0o644); werr != nil {
			return nil, eris.Wrapf(werr, "proxy: write endpoint template %s", path)
		}
		return NewPool(nil), nil
	}
	defer f.Close() //nolint:errcheck

	var endpoints []Endpoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		endpoints = append(endpoints, Endpoint(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "proxy: read endpoint file %s", path)
	}

	zap.L().Info("loaded proxy endpoints",
		zap.String("path", path),
		zap.Int("count", len(endpoints)),
	)
	return NewPool(endpoints), nil
}

// Len reports the number of rotation slots, duplicates included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Select returns the next endpoint under the given strategy. It does not
// touch LastUsedAt; marking an endpoint as used is part of issuing the
// request, not of selection (see MarkUsed).
func (p *Pool) Select(strategy Strategy) (Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.endpoints) == 0 {
		return "", ErrNoEndpoints
	}
	return p.selectLocked(strategy), nil
}

// MarkUsed stamps LastUsedAt for the endpoint, creating a record if one
// does not exist. This happens for every attempt, including ones that
// later fail.
func (p *Pool) MarkUsed(e Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statsLocked(e).LastUsedAt = time.Now()
}

// RecordOutcome applies one attempt result to the endpoint's stats,
// creating the record lazily for endpoints the pool has not seen. Latency
// is only consulted on success; zero means unknown and leaves the running
// average untouched. Counts are never reset or decayed.
func (p *Pool) RecordOutcome(e Endpoint, success bool, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statsLocked(e).record(success, latency)
}

// StatsFor returns a copy of the endpoint's stats record.
func (p *Pool) StatsFor(e Endpoint) (Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.stats[e]
	if !ok {
		return Stats{}, false
	}
	return *st, true
}

// Snapshot returns per-endpoint stats copies in first-appearance pool
// order, one row per distinct endpoint.
func (p *Pool) Snapshot() []EndpointStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]EndpointStats, 0, len(p.stats))
	seen := make(map[Endpoint]struct{}, len(p.stats))
	for _, e := range p.endpoints {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, EndpointStats{Endpoint: e, Stats: *p.statsLocked(e)})
	}
	// Endpoints recorded without ever being in the list (manual
	// RecordOutcome calls) come last.
	for e, st := range p.stats {
		if _, dup := seen[e]; !dup {
			out = append(out, EndpointStats{Endpoint: e, Stats: *st})
		}
	}
	return out
}

func (p *Pool) statsLocked(e Endpoint) *Stats {
	st, ok := p.stats[e]
	if !ok {
		st = &Stats{LastUsedAt: time.Now()}
		p.stats[e] = st
	}
	return st
}
