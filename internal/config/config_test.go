package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "paramgw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "mode: real\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "parodus2rbus.client", cfg.Component)
	assert.Equal(t, "config", cfg.ServiceName)
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
	assert.Equal(t, 300, cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, 100, cfg.Txn.MaxTransactionSize)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := writeTempConfig(t, "mode: bogus\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode must be")
}

func TestLoadAggregatesMultipleErrors(t *testing.T) {
	path := writeTempConfig(t, "mode: bogus\nlog_level: 9\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode must be")
	assert.Contains(t, err.Error(), "log_level must be")
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "real", cfg.Mode)
	assert.Equal(t, "events", cfg.Event.EventsEndpoint)
}

func TestFillOldValueDefaultsTrueWhenOmitted(t *testing.T) {
	path := writeTempConfig(t, "mode: real\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Event.FillOldValue())
}

func TestFillOldValueHonorsExplicitFalse(t *testing.T) {
	path := writeTempConfig(t, "mode: real\nevent_pipeline:\n  fill_old_value_from_cache: false\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Event.FillOldValue())
}
