package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"netwatch/internal/config"
	"netwatch/internal/domain"
	"netwatch/internal/history"
	"netwatch/internal/identity"
	"netwatch/internal/scheduler"
	"netwatch/internal/sites"
	"netwatch/internal/stats"
)

// Engine is the pull surface and mutation boundary exposed to the
// presentation layer. It owns no monitoring state itself; it validates
// mutations and delegates to the components that do.
type Engine struct {
	scheduler *scheduler.Scheduler
	store     *history.Store
	stats     *stats.Service
	sites     *sites.Prober
	identity  *identity.Monitor
	settings  *config.Settings
	logger    *zap.Logger
}

func NewEngine(
	sched *scheduler.Scheduler,
	store *history.Store,
	statsService *stats.Service,
	siteProber *sites.Prober,
	identityMonitor *identity.Monitor,
	settings *config.Settings,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		scheduler: sched,
		store:     store,
		stats:     statsService,
		sites:     siteProber,
		identity:  identityMonitor,
		settings:  settings,
		logger:    logger.With(zap.String("component", "engine")),
	}
}

// GetPingHistory returns target's samples over the lookback duration, oldest
// first.
func (e *Engine) GetPingHistory(target string, lookback time.Duration) ([]domain.Sample, error) {
	if !e.store.HasTarget(target) {
		return nil, fmt.Errorf("target %s is not monitored", target)
	}
	return e.store.Window(target, lookback), nil
}

// GetStatistics summarizes target's samples over the lookback duration.
func (e *Engine) GetStatistics(target string, lookback time.Duration) (domain.Statistics, error) {
	if !e.store.HasTarget(target) {
		return domain.Statistics{}, fmt.Errorf("target %s is not monitored", target)
	}
	return e.stats.Statistics(target, lookback), nil
}

// GetTargets lists monitored targets in insertion order.
func (e *Engine) GetTargets() []string {
	return e.scheduler.Targets()
}

func (e *Engine) AddTarget(target string) error {
	if err := e.scheduler.AddTarget(target); err != nil {
		return err
	}
	e.logger.Info("target added", zap.String("target", target))
	return nil
}

func (e *Engine) RemoveTarget(target string) error {
	if err := e.scheduler.RemoveTarget(target); err != nil {
		return err
	}
	if e.settings.PrimaryTarget() == target {
		remaining := e.scheduler.Targets()
		next := ""
		if len(remaining) > 0 {
			next = remaining[0]
		}
		e.settings.SetPrimaryTarget(next)
	}
	e.logger.Info("target removed", zap.String("target", target))
	return nil
}

// SetPrimaryTarget marks the target shown by default in the presentation
// layer. The target must already be monitored.
func (e *Engine) SetPrimaryTarget(target string) error {
	if !e.store.HasTarget(target) {
		return fmt.Errorf("target %s is not monitored", target)
	}
	e.settings.SetPrimaryTarget(target)
	return nil
}

func (e *Engine) GetPrimaryTarget() string {
	return e.settings.PrimaryTarget()
}

func (e *Engine) GetSiteMonitors() []domain.SiteMonitor {
	return e.sites.Monitors()
}

func (e *Engine) GetSiteStatuses() map[string]domain.SiteStatus {
	return e.sites.Statuses()
}

func (e *Engine) AddSiteMonitor(monitor domain.SiteMonitor) error {
	return e.sites.Add(monitor)
}

func (e *Engine) RemoveSiteMonitor(url string) error {
	return e.sites.Remove(url)
}

func (e *Engine) GetVPNSettings() config.VPNSettings {
	return e.settings.VPN()
}

func (e *Engine) SetVPNSettings(vpn config.VPNSettings) error {
	return e.settings.SetVPN(vpn)
}

// GetIdentity returns the last established network identity, nil while none
// has been resolved yet.
func (e *Engine) GetIdentity() *domain.Identity {
	return e.identity.Current()
}

// AcknowledgeIPChange clears the pending network-change alert.
func (e *Engine) AcknowledgeIPChange() {
	e.identity.Acknowledge()
}

// HasPendingIPChange reports whether an unacknowledged change alert exists.
func (e *Engine) HasPendingIPChange() bool {
	return e.identity.PendingAlert()
}

// SetWindowVisible feeds the adaptive probe interval: a visible window probes
// at the short interval, a hidden one at the long interval.
func (e *Engine) SetWindowVisible(visible bool) {
	e.settings.SetWindowVisible(visible)
}

func (e *Engine) GetAlertThreshold() time.Duration {
	return e.settings.AlertThreshold()
}

func (e *Engine) SetAlertThreshold(threshold time.Duration) error {
	return e.settings.SetAlertThreshold(threshold)
}
