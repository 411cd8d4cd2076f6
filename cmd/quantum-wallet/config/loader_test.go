package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("", []string{t.TempDir()})
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Chain.RPCURL)
	assert.Equal(t, 15*time.Second, cfg.Chain.RequestTimeout)
	assert.Equal(t, 3, cfg.Chain.InitAttempts)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "6138", cfg.Server.Port)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
	assert.False(t, cfg.Biometric.Enabled)
	assert.True(t, filepath.IsAbs(cfg.Storage.Dir))
	assert.Equal(t, "keychain.json", filepath.Base(cfg.KeychainPath()))
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "data")
	yaml := "chain:\n  rpc_url: http://127.0.0.1:8545\n  request_timeout: 3s\nstorage:\n  dir: " + storage + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load("", []string{dir})
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8545", cfg.Chain.RPCURL)
	assert.Equal(t, 3*time.Second, cfg.Chain.RequestTimeout)
	assert.Equal(t, 3, cfg.Chain.InitAttempts)
	assert.Equal(t, filepath.Join(storage, "settings.db"), cfg.SettingsPath())
	assert.Equal(t, filepath.Join(storage, "device.key"), cfg.DeviceKeyPath())
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7000\"\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QW_CHAIN_RPC_URL", "https://rpc.example")
	t.Setenv("QW_BIOMETRIC_ENABLED", "true")

	cfg, err := Load("", []string{t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example", cfg.Chain.RPCURL)
	assert.True(t, cfg.Biometric.Enabled)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/wallet")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "wallet"), got)

	got, err = expandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
