package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
	"netwatch/internal/history"
)

// notifyGap is the minimum spacing between threshold notifications for one
// target, on top of the edge-trigger.
const notifyGap = time.Minute

// Scheduler drives periodic probing. Each target runs its own loop: probe,
// append to history, publish, then wait one interval. The interval is re-read
// from settings at every cycle, so foreground/background changes take effect
// on the next tick. A slow probe delays the next tick instead of overlapping
// it, keeping at most one probe in flight per target.
type Scheduler struct {
	prober   domain.Prober
	store    *history.Store
	sink     domain.EventSink
	notifier domain.Notifier
	metrics  domain.MetricsCollector
	settings *config.Settings
	clock    clock.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	loops   map[string]context.CancelFunc
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func NewScheduler(
	prober domain.Prober,
	store *history.Store,
	sink domain.EventSink,
	notifier domain.Notifier,
	metrics domain.MetricsCollector,
	settings *config.Settings,
	clk clock.Clock,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		prober:   prober,
		store:    store,
		sink:     sink,
		notifier: notifier,
		metrics:  metrics,
		settings: settings,
		clock:    clk,
		logger:   logger.With(zap.String("component", "scheduler")),
		loops:    make(map[string]context.CancelFunc),
	}
}

// Start begins probing every target already known to the history store.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	for _, target := range s.store.Targets() {
		s.mu.Lock()
		s.spawnLocked(target)
		s.mu.Unlock()
	}

	s.logger.Info("scheduler started", zap.Strings("targets", s.store.Targets()))
	return nil
}

// Stop cancels all loops and waits for in-flight probes to finish or hit
// their own timeouts.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	s.loops = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("scheduler stopped")
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("scheduler shutdown timed out")
	}
}

// AddTarget registers a target and, if the scheduler is running, starts its
// probe loop without disturbing the others.
func (s *Scheduler) AddTarget(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("target is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.HasTarget(target) {
		return fmt.Errorf("target %s is already monitored", target)
	}
	s.store.EnsureTarget(target)
	if s.started {
		s.spawnLocked(target)
	}
	return nil
}

// RemoveTarget stops a target's loop and purges its history.
func (s *Scheduler) RemoveTarget(target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.HasTarget(target) {
		return fmt.Errorf("target %s is not monitored", target)
	}
	if cancel, ok := s.loops[target]; ok {
		cancel()
		delete(s.loops, target)
	}
	s.store.RemoveTarget(target)
	return nil
}

// Targets lists monitored targets in insertion order.
func (s *Scheduler) Targets() []string {
	return s.store.Targets()
}

func (s *Scheduler) spawnLocked(target string) {
	loopCtx, cancel := context.WithCancel(s.ctx)
	s.loops[target] = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(loopCtx, target)
	}()
}

func (s *Scheduler) runLoop(ctx context.Context, target string) {
	logger := s.logger.With(zap.String("target", target))
	logger.Debug("probe loop started")
	defer logger.Debug("probe loop stopped")

	alerts := newAlertState(s.clock)

	for {
		sample := s.prober.Probe(ctx, target)
		if ctx.Err() != nil {
			return
		}

		s.store.Append(sample)
		s.sink.PublishPing(sample)
		s.metrics.RecordProbe(sample)

		if alerts.Observe(sample, s.settings.AlertThreshold()) {
			s.metrics.RecordThresholdAlert(target)
			if err := s.notifier.Notify("High latency detected", alertBody(sample)); err != nil {
				logger.Error("notification delivery failed", zap.Error(err))
			}
		}

		timer := s.clock.Timer(s.settings.ProbeInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func alertBody(sample domain.Sample) string {
	if sample.Failed() {
		return fmt.Sprintf("%s is unreachable", sample.Target)
	}
	return fmt.Sprintf("High latency detected: %.0fms", sample.LatencyMillis())
}

// alertState implements edge-triggered threshold alerting: one notification
// per crossing, re-armed by the first sample back at or under the threshold,
// and never more than one notification per notifyGap.
type alertState struct {
	clock        clock.Clock
	armed        bool
	lastNotified time.Time
}

func newAlertState(clk clock.Clock) *alertState {
	return &alertState{clock: clk, armed: true}
}

// Observe reports whether this sample should raise a notification.
func (a *alertState) Observe(sample domain.Sample, threshold time.Duration) bool {
	breached := sample.Failed() || *sample.Latency > threshold
	if !breached {
		a.armed = true
		return false
	}
	if !a.armed {
		return false
	}

	now := a.clock.Now()
	if !a.lastNotified.IsZero() && now.Sub(a.lastNotified) < notifyGap {
		return false
	}

	a.armed = false
	a.lastNotified = now
	return true
}
