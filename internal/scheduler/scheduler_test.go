package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
	"netwatch/internal/history"
	"netwatch/internal/stats"
)

// scriptedProber returns configured latencies in order, then repeats the last
// entry. A nil entry is a failed probe.
type scriptedProber struct {
	mu     sync.Mutex
	script []*time.Duration
	calls  int
}

func (p *scriptedProber) Probe(ctx context.Context, target string) domain.Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	p.calls++
	if p.script[i] == nil {
		return domain.NewFailedSample(target, time.Now())
	}
	return domain.NewSample(target, time.Now(), domain.MethodIcmp, *p.script[i])
}

type nopSink struct{}

func (nopSink) PublishPing(domain.Sample)                        {}
func (nopSink) PublishSiteStatuses(map[string]domain.SiteStatus) {}
func (nopSink) PublishNetworkChange(domain.IdentityChange)       {}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return nil
}

func (n *countingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type nopMetrics struct{}

func (nopMetrics) RecordProbe(domain.Sample)              {}
func (nopMetrics) RecordSiteCheck(string, bool)           {}
func (nopMetrics) RecordIdentityChange(domain.ChangeType) {}
func (nopMetrics) RecordThresholdAlert(string)            {}
func (nopMetrics) RecordSnapshotPersist(bool)             {}

func dur(d time.Duration) *time.Duration { return &d }

func newTestScheduler(t *testing.T, prober domain.Prober, clk clock.Clock) (*Scheduler, *history.Store, *config.Settings, *countingNotifier) {
	t.Helper()
	settings := config.NewSettings(config.Default())
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"), nil, nil, clk, zap.NewNop())
	notifier := &countingNotifier{}
	s := NewScheduler(prober, store, nopSink{}, notifier, nopMetrics{}, settings, clk, zap.NewNop())
	return s, store, settings, notifier
}

// step advances the mock clock in small increments until cond holds.
func step(t *testing.T, clk *clock.Mock, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		clk.Add(100 * time.Millisecond)
		return cond()
	}, 5*time.Second, time.Millisecond)
}

func TestSchedulerEndToEnd(t *testing.T) {
	clk := clock.NewMock()
	prober := &scriptedProber{script: []*time.Duration{
		dur(40 * time.Millisecond),
		nil,
		dur(60 * time.Millisecond),
	}}
	s, store, _, _ := newTestScheduler(t, prober, clk)

	require.NoError(t, s.AddTarget("1.1.1.1"))
	require.NoError(t, s.Start())
	defer s.Stop()

	step(t, clk, func() bool {
		return len(store.Window("1.1.1.1", time.Hour)) >= 3
	})

	window := store.Window("1.1.1.1", time.Hour)
	for i := 1; i < len(window); i++ {
		assert.False(t, window[i].Timestamp.Before(window[i-1].Timestamp))
	}

	require.NoError(t, s.RemoveTarget("1.1.1.1"))
	assert.Empty(t, store.Window("1.1.1.1", time.Hour))
}

func TestSchedulerStatisticsScenario(t *testing.T) {
	clk := clock.NewMock()
	prober := &scriptedProber{script: []*time.Duration{
		dur(40 * time.Millisecond),
		nil,
		dur(60 * time.Millisecond),
	}}
	s, store, _, _ := newTestScheduler(t, prober, clk)

	require.NoError(t, s.AddTarget("1.1.1.1"))
	require.NoError(t, s.Start())

	step(t, clk, func() bool {
		return len(store.Window("1.1.1.1", time.Hour)) >= 3
	})
	require.NoError(t, s.Stop())

	window := store.Window("1.1.1.1", time.Hour)[:3]
	result := stats.Compute("1.1.1.1", window)

	require.NotNil(t, result.Min)
	require.NotNil(t, result.Max)
	require.NotNil(t, result.Avg)
	assert.Equal(t, 40*time.Millisecond, *result.Min)
	assert.Equal(t, 60*time.Millisecond, *result.Max)
	assert.Equal(t, 50*time.Millisecond, *result.Avg)
	assert.InDelta(t, 33.3, result.PacketLossPct, 0.1)
	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 1, result.FailedCount)
}

func TestAddTargetValidation(t *testing.T) {
	clk := clock.NewMock()
	s, _, _, _ := newTestScheduler(t, &scriptedProber{script: []*time.Duration{dur(time.Millisecond)}}, clk)

	require.NoError(t, s.AddTarget("8.8.8.8"))
	assert.Error(t, s.AddTarget("8.8.8.8"), "duplicate target")
	assert.Error(t, s.AddTarget("  "), "blank target")
	assert.Error(t, s.RemoveTarget("1.2.3.4"), "unknown target")
	assert.Equal(t, []string{"8.8.8.8"}, s.Targets())
}

func TestAlertStateEdgeTriggered(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	alerts := newAlertState(clk)
	threshold := 200 * time.Millisecond

	high := domain.NewSample("t", clk.Now(), domain.MethodIcmp, 500*time.Millisecond)
	low := domain.NewSample("t", clk.Now(), domain.MethodIcmp, 50*time.Millisecond)
	failed := domain.NewFailedSample("t", clk.Now())

	// First crossing notifies once; staying high does not repeat.
	assert.True(t, alerts.Observe(high, threshold))
	assert.False(t, alerts.Observe(high, threshold))
	assert.False(t, alerts.Observe(failed, threshold))

	// A good sample re-arms, but the notify gap still applies.
	assert.False(t, alerts.Observe(low, threshold))
	assert.False(t, alerts.Observe(high, threshold))

	// After the gap, a fresh crossing notifies again.
	clk.Add(2 * time.Minute)
	assert.False(t, alerts.Observe(low, threshold))
	assert.True(t, alerts.Observe(high, threshold))
}

func TestAlertStateTimeoutCountsAsBreach(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	alerts := newAlertState(clk)

	failed := domain.NewFailedSample("t", clk.Now())
	assert.True(t, alerts.Observe(failed, 200*time.Millisecond))
	assert.False(t, alerts.Observe(failed, 200*time.Millisecond))
}

func TestSchedulerNotifiesOnThresholdCrossing(t *testing.T) {
	clk := clock.NewMock()
	prober := &scriptedProber{script: []*time.Duration{
		dur(500 * time.Millisecond),
		dur(500 * time.Millisecond),
		dur(50 * time.Millisecond),
	}}
	s, store, _, notifier := newTestScheduler(t, prober, clk)

	require.NoError(t, s.AddTarget("1.1.1.1"))
	require.NoError(t, s.Start())
	defer s.Stop()

	step(t, clk, func() bool {
		return len(store.Window("1.1.1.1", time.Hour)) >= 3
	})
	assert.Equal(t, 1, notifier.Count())
}

func TestWindowVisibilityDrivesInterval(t *testing.T) {
	settings := config.NewSettings(config.Default())

	visible := settings.ProbeInterval()
	settings.SetWindowVisible(false)
	hidden := settings.ProbeInterval()

	assert.Less(t, visible, hidden)
}
