package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
)

func TestHTTPResolverResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":"1.2.3.4","country":"Portugal","countryCode":"PT","isp":"MEO"}`))
	}))
	defer server.Close()

	resolver := NewHTTPResolver(server.URL, 2*time.Second)
	identity, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", identity.Address)
	assert.Equal(t, "PT", identity.CountryCode)
}

func TestHTTPResolverServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	resolver := NewHTTPResolver(server.URL, 2*time.Second)
	_, err := resolver.Resolve(context.Background())
	assert.Error(t, err)
}

type stubResolver struct {
	mu         sync.Mutex
	identities []domain.Identity
	errs       []error
	calls      int
}

func (r *stubResolver) Resolve(ctx context.Context) (domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	if i >= len(r.identities) {
		i = len(r.identities) - 1
	}
	r.calls++
	if r.errs != nil && r.errs[i] != nil {
		return domain.Identity{}, r.errs[i]
	}
	return r.identities[i], nil
}

type recordingSink struct {
	mu      sync.Mutex
	changes []domain.IdentityChange
}

func (s *recordingSink) PublishPing(domain.Sample)                        {}
func (s *recordingSink) PublishSiteStatuses(map[string]domain.SiteStatus) {}
func (s *recordingSink) PublishNetworkChange(change domain.IdentityChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, change)
}

func (s *recordingSink) Changes() []domain.IdentityChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.IdentityChange(nil), s.changes...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (n *recordingNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies = append(n.bodies, body)
	return nil
}

func (n *recordingNotifier) Bodies() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.bodies...)
}

type nopMetrics struct{}

func (nopMetrics) RecordProbe(domain.Sample)              {}
func (nopMetrics) RecordSiteCheck(string, bool)           {}
func (nopMetrics) RecordIdentityChange(domain.ChangeType) {}
func (nopMetrics) RecordThresholdAlert(string)            {}
func (nopMetrics) RecordSnapshotPersist(bool)             {}

func testVPNSettings(t *testing.T, expectedCountry string) *config.Settings {
	t.Helper()
	cfg := config.Default()
	cfg.VPN.Enabled = true
	cfg.VPN.ExpectedCountry = expectedCountry
	return config.NewSettings(cfg)
}

func TestMonitorEmitsUnexpectedCountryChange(t *testing.T) {
	resolver := &stubResolver{
		identities: []domain.Identity{
			{Address: "1.2.3.4", Country: "Portugal", CountryCode: "PT", ISP: "MEO"},
			{Address: "5.6.7.8", Country: "United States", CountryCode: "US", ISP: "Comcast"},
		},
	}
	recSink := &recordingSink{}
	notifier := &recordingNotifier{}
	settings := testVPNSettings(t, "")

	monitor := NewMonitor(resolver, settings, recSink, notifier, nopMetrics{}, clock.New(), zap.NewNop())

	vpn := settings.VPN()
	monitor.check(context.Background(), vpn)
	monitor.check(context.Background(), vpn)

	changes := recSink.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, domain.ChangeInitial, changes[0].Type)
	assert.Equal(t, domain.ChangeCountry, changes[1].Type)
	assert.False(t, changes[1].IsExpected)
	assert.True(t, monitor.PendingAlert())
	assert.NotEmpty(t, notifier.Bodies())

	monitor.Acknowledge()
	assert.False(t, monitor.PendingAlert())
	require.NotNil(t, monitor.Current())
	assert.Equal(t, "5.6.7.8", monitor.Current().Address)
}

func TestMonitorSkipsCycleOnResolutionFailure(t *testing.T) {
	resolver := &stubResolver{
		identities: []domain.Identity{
			{Address: "1.2.3.4", Country: "Portugal", CountryCode: "PT"},
			{},
		},
		errs: []error{nil, context.DeadlineExceeded},
	}
	recSink := &recordingSink{}
	settings := testVPNSettings(t, "")

	monitor := NewMonitor(resolver, settings, recSink, &recordingNotifier{}, nopMetrics{}, clock.New(), zap.NewNop())

	vpn := settings.VPN()
	monitor.check(context.Background(), vpn)
	monitor.check(context.Background(), vpn)

	require.Len(t, recSink.Changes(), 1)
	require.NotNil(t, monitor.Current())
	assert.Equal(t, "1.2.3.4", monitor.Current().Address)
}
