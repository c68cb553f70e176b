package identity

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
)

// resolveTimeout bounds one identity lookup per cycle.
const resolveTimeout = 10 * time.Second

// Monitor watches the host's public network identity for transitions, e.g. a
// VPN silently disconnecting. It starts Unknown; the first successful
// resolution emits Initial and establishes the baseline. Each later cycle
// compares against the previous identity and reports at most one change, in
// priority order Country > Ip > Isp.
type Monitor struct {
	resolver domain.Resolver
	settings *config.Settings
	sink     domain.EventSink
	notifier domain.Notifier
	metrics  domain.MetricsCollector
	clock    clock.Clock
	logger   *zap.Logger

	mu           sync.RWMutex
	current      *domain.Identity
	pendingAlert bool

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewMonitor(
	resolver domain.Resolver,
	settings *config.Settings,
	sink domain.EventSink,
	notifier domain.Notifier,
	metrics domain.MetricsCollector,
	clk clock.Clock,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		resolver: resolver,
		settings: settings,
		sink:     sink,
		notifier: notifier,
		metrics:  metrics,
		clock:    clk,
		logger:   logger.With(zap.String("component", "identity")),
	}
}

// Start launches the monitor loop.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("identity monitor already started")
	}
	m.started = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		vpn := m.settings.VPN()
		if vpn.Enabled {
			m.check(ctx, vpn)
		}

		timer := m.clock.Timer(vpn.CheckInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Monitor) check(ctx context.Context, vpn config.VPNSettings) {
	resolveCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	identity, err := m.resolver.Resolve(resolveCtx)
	cancel()
	if err != nil {
		// Skip this cycle; the previous identity stays untouched.
		m.logger.Warn("identity resolution failed", zap.Error(err))
		return
	}

	m.mu.Lock()
	previous := m.current
	m.current = &identity
	m.mu.Unlock()

	change, changed := Classify(previous, identity, vpn.ExpectedCountry, m.clock.Now())
	if !changed {
		return
	}

	m.logger.Info("network identity changed",
		zap.String("type", string(change.Type)),
		zap.String("address", identity.Address),
		zap.String("country", identity.Country),
		zap.Bool("expected", change.IsExpected))

	m.metrics.RecordIdentityChange(change.Type)
	m.sink.PublishNetworkChange(change)

	if change.Type == domain.ChangeInitial {
		return
	}
	if m.shouldAlert(change, vpn) {
		m.mu.Lock()
		m.pendingAlert = true
		m.mu.Unlock()
		if err := m.notifier.Notify("Network change detected", alertBody(change)); err != nil {
			m.logger.Error("notification delivery failed", zap.Error(err))
		}
	}
}

func (m *Monitor) shouldAlert(change domain.IdentityChange, vpn config.VPNSettings) bool {
	switch change.Type {
	case domain.ChangeCountry:
		// An unexpected country change is the primary "VPN dropped" signal.
		return !change.IsExpected || vpn.AlertOnCountryChange
	case domain.ChangeIP:
		return vpn.AlertOnIPChange
	case domain.ChangeISP:
		return vpn.AlertOnISPChange
	default:
		return false
	}
}

func alertBody(change domain.IdentityChange) string {
	switch change.Type {
	case domain.ChangeCountry:
		return fmt.Sprintf("Egress country changed to %s (%s)",
			change.Current.Country, change.Current.Address)
	case domain.ChangeIP:
		return fmt.Sprintf("Public IP changed to %s", change.Current.Address)
	case domain.ChangeISP:
		return fmt.Sprintf("ISP changed to %s", change.Current.ISP)
	default:
		return fmt.Sprintf("Network identity: %s", change.Current.Address)
	}
}

// Current returns the last established identity, or nil while Unknown.
func (m *Monitor) Current() *domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	identity := *m.current
	return &identity
}

// PendingAlert reports whether an unacknowledged change alert is pending.
func (m *Monitor) PendingAlert() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pendingAlert
}

// Acknowledge clears the pending-alert flag. The stored identity is kept.
func (m *Monitor) Acknowledge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingAlert = false
}

// Classify compares two identities and derives the transition event. The
// second return value is false when nothing relevant changed. Exactly one
// event type is reported per comparison, highest priority first.
func Classify(previous *domain.Identity, current domain.Identity, expectedCountry string, at time.Time) (domain.IdentityChange, bool) {
	change := domain.IdentityChange{
		Previous:   previous,
		Current:    current,
		Timestamp:  at,
		IsExpected: true,
	}

	if previous == nil {
		change.Type = domain.ChangeInitial
		return change, true
	}

	switch {
	case !sameCountry(*previous, current):
		change.Type = domain.ChangeCountry
		change.IsExpected = expectedCountry != "" && matchesCountry(current, expectedCountry)
	case previous.Address != current.Address:
		change.Type = domain.ChangeIP
	case previous.ISP != current.ISP:
		change.Type = domain.ChangeISP
	default:
		return domain.IdentityChange{}, false
	}

	return change, true
}

func sameCountry(a, b domain.Identity) bool {
	if a.CountryCode != "" && b.CountryCode != "" {
		return strings.EqualFold(a.CountryCode, b.CountryCode)
	}
	return strings.EqualFold(a.Country, b.Country)
}

// matchesCountry accepts the pin as either a country code or a country name.
func matchesCountry(identity domain.Identity, pin string) bool {
	return strings.EqualFold(identity.CountryCode, pin) ||
		strings.EqualFold(identity.Country, pin)
}
