package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_FeatureDisabled(t *testing.T) {
	cfg := DefaultConfig()
	store := NewStore(cfg)

	assert.False(t, store.IsCloudMediaInPhotoPickerEnabled())
	assert.Empty(t, store.DefaultCloudProviderPackage())
	assert.Empty(t, store.CloudProviderAllowlist())
}

func TestLoadOrDefault_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.False(t, cfg.CloudPicker.Enabled)
}

func TestLoad_ParsesCloudPickerSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	const contents = `
[cloud_picker]
enabled = true
allowed_providers = ["com.example.cloudy"]
default_provider_package = "com.example.cloudy"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.CloudPicker.Enabled)
	assert.Equal(t, []string{"com.example.cloudy"}, cfg.CloudPicker.AllowedProviders)
	assert.Equal(t, "com.example.cloudy", cfg.CloudPicker.DefaultProviderPackage)
}
