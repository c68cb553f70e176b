package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"netwatch/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config is the on-disk engine configuration, read once at startup. Runtime
// mutations go through Settings, not through this struct.
type Config struct {
	ListenAddr  string       `json:"listen_addr" validate:"required,hostname_port"`
	StoragePath string       `json:"storage_path" validate:"required"`
	Targets     []string     `json:"targets" validate:"required,min=1,dive,required"`
	Sites       []SiteConfig `json:"sites" validate:"max=10,dive"`
	SiteChecks  SitesConfig  `json:"site_checks"`
	Probe       ProbeConfig  `json:"probe"`
	Alert       AlertConfig  `json:"alert"`
	VPN         VPNConfig    `json:"vpn"`
}

type ProbeConfig struct {
	VisibleIntervalSeconds int `json:"visible_interval_seconds" validate:"min=1"`
	HiddenIntervalSeconds  int `json:"hidden_interval_seconds" validate:"min=1"`
	TimeoutSeconds         int `json:"timeout_seconds" validate:"min=1"`
}

type AlertConfig struct {
	ThresholdMS int `json:"threshold_ms" validate:"min=1"`
}

type VPNConfig struct {
	Enabled              bool   `json:"enabled"`
	CheckIntervalSeconds int    `json:"check_interval_seconds" validate:"min=5"`
	AlertOnIPChange      bool   `json:"alert_on_ip_change"`
	AlertOnCountryChange bool   `json:"alert_on_country_change"`
	AlertOnISPChange     bool   `json:"alert_on_isp_change"`
	ExpectedCountry      string `json:"expected_country,omitempty"`
	ResolverURL          string `json:"resolver_url" validate:"required,url"`
}

type SiteConfig struct {
	URL         string `json:"url" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
	Enabled     bool   `json:"enabled"`
}

type SitesConfig struct {
	CheckIntervalSeconds int `json:"check_interval_seconds" validate:"min=10"`
	TimeoutSeconds       int `json:"timeout_seconds" validate:"min=1"`
}

// Default returns the configuration used when no config file is present,
// matching the stock single-target setup.
func Default() *Config {
	return &Config{
		ListenAddr:  "127.0.0.1:8844",
		StoragePath: "netwatch-history.json",
		Targets:     []string{"8.8.8.8"},
		Probe: ProbeConfig{
			VisibleIntervalSeconds: 2,
			HiddenIntervalSeconds:  10,
			TimeoutSeconds:         2,
		},
		SiteChecks: SitesConfig{
			CheckIntervalSeconds: 60,
			TimeoutSeconds:       5,
		},
		Alert: AlertConfig{ThresholdMS: 200},
		VPN: VPNConfig{
			Enabled:              false,
			CheckIntervalSeconds: 30,
			AlertOnIPChange:      true,
			AlertOnCountryChange: true,
			AlertOnISPChange:     false,
			ResolverURL:          "http://ip-api.com/json",
		},
	}
}

// NewConfig loads configuration from the file named by CONFIG_PATH (default
// config.json). An absent default file is not an error: the engine runs with
// defaults. An unreadable or invalid file is.
func NewConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if configPath == "" {
		configPath = "config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return nil, formatValidationErrors(validationErrors)
		}
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if n := len(enabledSites(cfg.Sites)); n > domain.MaxSiteMonitors {
		return nil, fmt.Errorf("at most %d enabled site monitors are supported, got %d",
			domain.MaxSiteMonitors, n)
	}

	return cfg, nil
}

func enabledSites(sites []SiteConfig) []SiteConfig {
	out := make([]SiteConfig, 0, len(sites))
	for _, s := range sites {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// formatValidationErrors formats validation errors into a user-friendly error message
func formatValidationErrors(errors validator.ValidationErrors) error {
	var errMsgs []string
	for _, err := range errors {
		errMsgs = append(errMsgs, fmt.Sprintf(
			"field '%s' failed validation: %s",
			err.Field(),
			err.Tag(),
		))
	}
	return fmt.Errorf("validation errors: %v", errMsgs)
}
