package domain

import (
	"time"
)

// ProbeMethod identifies which method of the probe chain produced a latency
// measurement. TCP-derived latencies approximate RTT via handshake time and
// are not directly comparable to ICMP RTT, so the method travels with the
// sample.
type ProbeMethod string

const (
	MethodIcmp     ProbeMethod = "icmp"
	MethodTcpDns   ProbeMethod = "tcp:53"
	MethodTcpHttps ProbeMethod = "tcp:443"
	MethodTcpHttp  ProbeMethod = "tcp:80"
)

// Sample is a single latency measurement against a target. A nil Latency
// means the probe timed out or failed on every method; Method is nil in that
// case. Samples are immutable once created.
type Sample struct {
	Timestamp time.Time      `json:"timestamp"`
	Target    string         `json:"target"`
	Latency   *time.Duration `json:"latency,omitempty"`
	Method    *ProbeMethod   `json:"method,omitempty"`
}

// NewSample builds a successful measurement.
func NewSample(target string, at time.Time, method ProbeMethod, latency time.Duration) Sample {
	return Sample{
		Timestamp: at,
		Target:    target,
		Latency:   &latency,
		Method:    &method,
	}
}

// NewFailedSample builds a timed-out/unreachable measurement.
func NewFailedSample(target string, at time.Time) Sample {
	return Sample{
		Timestamp: at,
		Target:    target,
	}
}

// Failed reports whether the probe behind this sample produced no latency.
func (s Sample) Failed() bool {
	return s.Latency == nil
}

// LatencyMillis returns the latency in milliseconds, or 0 for failed samples.
func (s Sample) LatencyMillis() float64 {
	if s.Latency == nil {
		return 0
	}
	return float64(*s.Latency) / float64(time.Millisecond)
}

// Statistics summarizes a history window. Min/Max/Avg are nil when the window
// holds no successful samples. FailedCount+SuccessCount == TotalCount.
type Statistics struct {
	Target        string         `json:"target"`
	Min           *time.Duration `json:"min,omitempty"`
	Max           *time.Duration `json:"max,omitempty"`
	Avg           *time.Duration `json:"avg,omitempty"`
	PacketLossPct float64        `json:"packet_loss_pct"`
	TotalCount    int            `json:"total_count"`
	SuccessCount  int            `json:"success_count"`
	FailedCount   int            `json:"failed_count"`
}
