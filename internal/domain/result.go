package domain

// ProbeResult is the outcome of one reachability check.
// LatencyMs is nil whenever Alive is false or the latency could not be measured.
type ProbeResult struct {
	Host      string   `json:"host"`
	Alive     bool     `json:"alive"`
	LatencyMs *float64 `json:"ms"`
}

// Dead builds a not-alive result for host
func Dead(host string) ProbeResult {
	return ProbeResult{Host: host}
}

// Alive builds an alive result with an optional latency
func Alive(host string, latencyMs *float64) ProbeResult {
	return ProbeResult{Host: host, Alive: true, LatencyMs: latencyMs}
}

// Ms is a helper for building optional latencies
func Ms(v float64) *float64 {
	return &v
}

// Rate derives requests-per-second from a result.
// 0 when dead or unmeasured, 1000 when latency is 1ms or less.
func (r ProbeResult) Rate() float64 {
	if !r.Alive || r.LatencyMs == nil {
		return 0
	}
	ms := *r.LatencyMs
	if ms <= 1 {
		return 1000
	}
	return 1000 / ms
}
