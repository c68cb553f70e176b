package domain

import "time"

// MaxSiteMonitors bounds the configured site-monitor set.
const MaxSiteMonitors = 10

// SiteMonitor is a user-configured external URL checked for uptime.
type SiteMonitor struct {
	URL         string `json:"url"`
	DisplayName string `json:"display_name,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// SiteStatus is the latest check outcome for one monitor, overwritten on
// every cycle. LastDown is sticky: it survives recoveries so "last seen down"
// can be reported while the site stays configured.
type SiteStatus struct {
	URL       string         `json:"url"`
	IsUp      bool           `json:"is_up"`
	Latency   *time.Duration `json:"latency,omitempty"`
	LastCheck time.Time      `json:"last_check"`
	LastDown  *time.Time     `json:"last_down,omitempty"`
}
