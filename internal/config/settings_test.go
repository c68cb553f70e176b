package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeIntervalFollowsVisibility(t *testing.T) {
	settings := NewSettings(Default())

	assert.Equal(t, 2*time.Second, settings.ProbeInterval())
	settings.SetWindowVisible(false)
	assert.Equal(t, 10*time.Second, settings.ProbeInterval())
	settings.SetWindowVisible(true)
	assert.Equal(t, 2*time.Second, settings.ProbeInterval())
}

func TestSettingsMutatorsValidate(t *testing.T) {
	settings := NewSettings(Default())

	assert.Error(t, settings.SetAlertThreshold(0))
	assert.Error(t, settings.SetAlertThreshold(-time.Second))
	assert.Equal(t, 200*time.Millisecond, settings.AlertThreshold())

	require.NoError(t, settings.SetAlertThreshold(500*time.Millisecond))
	assert.Equal(t, 500*time.Millisecond, settings.AlertThreshold())

	vpn := settings.VPN()
	vpn.CheckInterval = time.Second
	assert.Error(t, settings.SetVPN(vpn))

	vpn.CheckInterval = time.Minute
	vpn.Enabled = true
	require.NoError(t, settings.SetVPN(vpn))
	assert.True(t, settings.VPN().Enabled)
}

func TestSettingsSnapshotRoundTrip(t *testing.T) {
	settings := NewSettings(Default())
	require.NoError(t, settings.SetAlertThreshold(321*time.Millisecond))
	settings.SetPrimaryTarget("1.1.1.1")
	vpn := settings.VPN()
	vpn.Enabled = true
	vpn.ExpectedCountry = "PT"
	require.NoError(t, settings.SetVPN(vpn))

	raw, err := settings.Snapshot()
	require.NoError(t, err)

	restored := NewSettings(Default())
	require.NoError(t, restored.Restore(raw))

	assert.Equal(t, 321*time.Millisecond, restored.AlertThreshold())
	assert.Equal(t, "1.1.1.1", restored.PrimaryTarget())
	assert.Equal(t, "PT", restored.VPN().ExpectedCountry)
	assert.True(t, restored.VPN().Enabled)
}

func TestSettingsRestoreRejectsGarbage(t *testing.T) {
	settings := NewSettings(Default())
	assert.Error(t, settings.Restore([]byte("{not json")))
	assert.Error(t, settings.Restore([]byte(`{"visible_interval": -5}`)))
	// State untouched after rejected restores.
	assert.Equal(t, 2*time.Second, settings.ProbeInterval())
}
