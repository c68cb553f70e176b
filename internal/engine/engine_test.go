package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
	"netwatch/internal/history"
	"netwatch/internal/identity"
	"netwatch/internal/scheduler"
	"netwatch/internal/sites"
	"netwatch/internal/stats"
)

type nopSink struct{}

func (nopSink) PublishPing(domain.Sample)                        {}
func (nopSink) PublishSiteStatuses(map[string]domain.SiteStatus) {}
func (nopSink) PublishNetworkChange(domain.IdentityChange)       {}

type nopNotifier struct{}

func (nopNotifier) Notify(title, body string) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordProbe(domain.Sample)              {}
func (nopMetrics) RecordSiteCheck(string, bool)           {}
func (nopMetrics) RecordIdentityChange(domain.ChangeType) {}
func (nopMetrics) RecordThresholdAlert(string)            {}
func (nopMetrics) RecordSnapshotPersist(bool)             {}

type staticProber struct{}

func (staticProber) Probe(ctx context.Context, target string) domain.Sample {
	return domain.NewSample(target, time.Now(), domain.MethodIcmp, 10*time.Millisecond)
}

type staticResolver struct{}

func (staticResolver) Resolve(ctx context.Context) (domain.Identity, error) {
	return domain.Identity{Address: "1.2.3.4", Country: "Portugal", CountryCode: "PT"}, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	clk := clock.NewMock()
	logger := zap.NewNop()
	settings := config.NewSettings(config.Default())
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"), settings, nopMetrics{}, clk, logger)
	sched := scheduler.NewScheduler(staticProber{}, store, nopSink{}, nopNotifier{}, nopMetrics{}, settings, clk, logger)
	siteProber := sites.NewProber(time.Minute, time.Second, nopSink{}, nopMetrics{}, clk, logger)
	monitor := identity.NewMonitor(staticResolver{}, settings, nopSink{}, nopNotifier{}, nopMetrics{}, clk, logger)
	return NewEngine(sched, store, stats.NewService(store), siteProber, monitor, settings, logger)
}

func TestTargetLifecycle(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.AddTarget("1.1.1.1"))
	require.NoError(t, e.AddTarget("8.8.8.8"))
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, e.GetTargets())

	assert.Error(t, e.AddTarget("1.1.1.1"), "duplicate")
	assert.Error(t, e.SetPrimaryTarget("9.9.9.9"), "unknown target")

	require.NoError(t, e.SetPrimaryTarget("8.8.8.8"))
	assert.Equal(t, "8.8.8.8", e.GetPrimaryTarget())

	// Removing the primary target falls back to the first remaining one.
	require.NoError(t, e.RemoveTarget("8.8.8.8"))
	assert.Equal(t, "1.1.1.1", e.GetPrimaryTarget())
}

func TestHistoryAndStatisticsRequireKnownTarget(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.GetPingHistory("unknown", time.Hour)
	assert.Error(t, err)
	_, err = e.GetStatistics("unknown", time.Hour)
	assert.Error(t, err)

	require.NoError(t, e.AddTarget("1.1.1.1"))
	window, err := e.GetPingHistory("1.1.1.1", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, window)

	result, err := e.GetStatistics("1.1.1.1", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, result.TotalCount)
	assert.Zero(t, result.PacketLossPct)
}

func TestSiteMonitorMutations(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.AddSiteMonitor(domain.SiteMonitor{URL: "https://example.com", Enabled: true}))
	assert.Len(t, e.GetSiteMonitors(), 1)
	assert.Error(t, e.AddSiteMonitor(domain.SiteMonitor{URL: "https://example.com", Enabled: true}))

	require.NoError(t, e.RemoveSiteMonitor("https://example.com"))
	assert.Empty(t, e.GetSiteMonitors())
}

func TestVPNSettingsValidation(t *testing.T) {
	e := newTestEngine(t)

	vpn := e.GetVPNSettings()
	vpn.Enabled = true
	vpn.ExpectedCountry = "PT"
	require.NoError(t, e.SetVPNSettings(vpn))
	assert.Equal(t, "PT", e.GetVPNSettings().ExpectedCountry)

	vpn.CheckInterval = time.Second
	assert.Error(t, e.SetVPNSettings(vpn), "interval below minimum")
	assert.Equal(t, 30*time.Second, e.GetVPNSettings().CheckInterval, "state unchanged on rejection")
}

func TestAlertThresholdValidation(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetAlertThreshold(300*time.Millisecond))
	assert.Equal(t, 300*time.Millisecond, e.GetAlertThreshold())

	assert.Error(t, e.SetAlertThreshold(0))
	assert.Equal(t, 300*time.Millisecond, e.GetAlertThreshold())
}

func TestAcknowledgeWithoutPendingAlert(t *testing.T) {
	e := newTestEngine(t)

	assert.False(t, e.HasPendingIPChange())
	e.AcknowledgeIPChange()
	assert.False(t, e.HasPendingIPChange())
	assert.Nil(t, e.GetIdentity())
}
