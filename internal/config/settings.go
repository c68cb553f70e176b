package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// VPNSettings is the VPN-protection policy read by the identity monitor at
// the start of each cycle.
type VPNSettings struct {
	Enabled              bool          `json:"enabled"`
	CheckInterval        time.Duration `json:"check_interval"`
	AlertOnIPChange      bool          `json:"alert_on_ip_change"`
	AlertOnCountryChange bool          `json:"alert_on_country_change"`
	AlertOnISPChange     bool          `json:"alert_on_isp_change"`
	ExpectedCountry      string        `json:"expected_country,omitempty"`
}

// Settings holds the process-wide mutable monitoring configuration. Mutators
// validate their input and leave state unchanged on rejection; periodic loops
// re-read values at the start of each cycle, so changes take effect on the
// next tick.
type Settings struct {
	mu              sync.RWMutex
	visibleInterval time.Duration
	hiddenInterval  time.Duration
	alertThreshold  time.Duration
	windowVisible   bool
	primaryTarget   string
	vpn             VPNSettings
}

// NewSettings seeds the runtime settings from the file configuration.
func NewSettings(cfg *Config) *Settings {
	s := &Settings{
		visibleInterval: time.Duration(cfg.Probe.VisibleIntervalSeconds) * time.Second,
		hiddenInterval:  time.Duration(cfg.Probe.HiddenIntervalSeconds) * time.Second,
		alertThreshold:  time.Duration(cfg.Alert.ThresholdMS) * time.Millisecond,
		windowVisible:   true,
		vpn: VPNSettings{
			Enabled:              cfg.VPN.Enabled,
			CheckInterval:        time.Duration(cfg.VPN.CheckIntervalSeconds) * time.Second,
			AlertOnIPChange:      cfg.VPN.AlertOnIPChange,
			AlertOnCountryChange: cfg.VPN.AlertOnCountryChange,
			AlertOnISPChange:     cfg.VPN.AlertOnISPChange,
			ExpectedCountry:      cfg.VPN.ExpectedCountry,
		},
	}
	if len(cfg.Targets) > 0 {
		s.primaryTarget = cfg.Targets[0]
	}
	return s
}

// ProbeInterval returns the active probe interval: the shorter one while the
// presentation surface is visible, the longer one while backgrounded.
func (s *Settings) ProbeInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.windowVisible {
		return s.visibleInterval
	}
	return s.hiddenInterval
}

func (s *Settings) SetWindowVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windowVisible = visible
}

func (s *Settings) WindowVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windowVisible
}

func (s *Settings) AlertThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alertThreshold
}

func (s *Settings) SetAlertThreshold(threshold time.Duration) error {
	if threshold <= 0 {
		return fmt.Errorf("alert threshold must be positive, got %v", threshold)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertThreshold = threshold
	return nil
}

func (s *Settings) PrimaryTarget() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primaryTarget
}

func (s *Settings) SetPrimaryTarget(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primaryTarget = target
}

func (s *Settings) VPN() VPNSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vpn
}

func (s *Settings) SetVPN(vpn VPNSettings) error {
	if vpn.CheckInterval < 5*time.Second {
		return fmt.Errorf("vpn check interval must be at least 5s, got %v", vpn.CheckInterval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vpn = vpn
	return nil
}

// settingsSnapshot is the persisted form of the mutable settings, stored in
// the same JSON document as the ping history.
type settingsSnapshot struct {
	VisibleInterval time.Duration `json:"visible_interval"`
	HiddenInterval  time.Duration `json:"hidden_interval"`
	AlertThreshold  time.Duration `json:"alert_threshold"`
	PrimaryTarget   string        `json:"primary_target,omitempty"`
	VPN             VPNSettings   `json:"vpn"`
}

// Snapshot serializes the current settings for the durable store.
func (s *Settings) Snapshot() (json.RawMessage, error) {
	s.mu.RLock()
	snap := settingsSnapshot{
		VisibleInterval: s.visibleInterval,
		HiddenInterval:  s.hiddenInterval,
		AlertThreshold:  s.alertThreshold,
		PrimaryTarget:   s.primaryTarget,
		VPN:             s.vpn,
	}
	s.mu.RUnlock()
	return json.Marshal(snap)
}

// Restore applies a previously persisted settings snapshot. Window visibility
// is not part of the snapshot and always starts visible.
func (s *Settings) Restore(raw json.RawMessage) error {
	var snap settingsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("error parsing settings snapshot: %w", err)
	}
	if snap.VisibleInterval <= 0 || snap.HiddenInterval <= 0 || snap.AlertThreshold <= 0 {
		return fmt.Errorf("settings snapshot has non-positive durations")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibleInterval = snap.VisibleInterval
	s.hiddenInterval = snap.HiddenInterval
	s.alertThreshold = snap.AlertThreshold
	if snap.PrimaryTarget != "" {
		s.primaryTarget = snap.PrimaryTarget
	}
	if snap.VPN.CheckInterval >= 5*time.Second {
		s.vpn = snap.VPN
	}
	return nil
}
