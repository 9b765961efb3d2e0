package proxy

import "time"

// Stats is the mutable per-endpoint record. All fields are guarded by the
// owning pool's mutex; callers only ever see copies.
type Stats struct {
	Successes       int       `json:"successes"`
	Failures        int       `json:"failures"`
	LastUsedAt      time.Time `json:"last_used_at"`
	AvgResponseSecs float64   `json:"avg_response_secs"`
}

// Score is the success ratio used by the performance strategy. An endpoint
// that has never been attempted scores 0.
func (s Stats) Score() float64 {
	total := s.Successes + s.Failures
	if total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(total)
}

// record applies one attempt outcome. On success the running average is
// recomputed over the post-increment total of successes AND failures, not
// successes alone. That matches the formula the scoring was tuned against,
// so it stays as-is; see DESIGN.md before changing it.
func (s *Stats) record(success bool, latency time.Duration) {
	if !success {
		s.Failures++
		return
	}
	s.Successes++
	if latency > 0 {
		total := float64(s.Successes + s.Failures)
		s.AvgResponseSecs = (s.AvgResponseSecs*(total-1) + latency.Seconds()) / total
	}
}

// EndpointStats pairs an endpoint with a copy of its stats, for reporting.
type EndpointStats struct {
	Endpoint Endpoint `json:"endpoint"`
	Stats
}
