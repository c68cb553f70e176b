package stats

import (
	"time"

	"netwatch/internal/domain"
	"netwatch/internal/history"
)

// Compute summarizes a history window: min/max/mean latency over successful
// samples and packet loss over all samples. Pure and side-effect free.
func Compute(target string, samples []domain.Sample) domain.Statistics {
	stats := domain.Statistics{
		Target:     target,
		TotalCount: len(samples),
	}

	var sum time.Duration
	for _, sample := range samples {
		if sample.Failed() {
			stats.FailedCount++
			continue
		}
		latency := *sample.Latency
		stats.SuccessCount++
		sum += latency
		if stats.Min == nil || latency < *stats.Min {
			stats.Min = dur(latency)
		}
		if stats.Max == nil || latency > *stats.Max {
			stats.Max = dur(latency)
		}
	}

	if stats.SuccessCount > 0 {
		stats.Avg = dur(sum / time.Duration(stats.SuccessCount))
	}
	if stats.TotalCount > 0 {
		stats.PacketLossPct = 100 * float64(stats.FailedCount) / float64(stats.TotalCount)
	}
	return stats
}

func dur(d time.Duration) *time.Duration { return &d }

// Service computes statistics on demand against the history store. It holds
// no state of its own and is safe to poll.
type Service struct {
	store *history.Store
}

func NewService(store *history.Store) *Service {
	return &Service{store: store}
}

// Statistics summarizes target's samples over the lookback duration.
func (s *Service) Statistics(target string, lookback time.Duration) domain.Statistics {
	return Compute(target, s.store.Window(target, lookback))
}
