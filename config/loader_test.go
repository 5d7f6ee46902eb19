package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_AppliesDefaults(t *testing.T) {
	p := writeConfig(t, `
server:
  port: 9090
stm:
  authURL: https://auth.example.test/token
  baseURL: https://api.example.test/v1
`)

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "json", cfg.STM.VehicleFeedFormat)
	assert.Equal(t, DefaultPollIntervalSec, cfg.Poll.IntervalSeconds)
	assert.Equal(t, DefaultTimeoutSec, cfg.Poll.TimeoutSeconds)
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("STM_CLIENT_ID", "client-id")
	t.Setenv("STM_CLIENT_SECRET", "client-secret")
	t.Setenv("MAPS_API_KEY", "maps-key")

	p := writeConfig(t, `
server:
  port: 8080
stm:
  authURL: https://auth.example.test/token
  baseURL: https://api.example.test/v1
`)

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "client-id", cfg.STM.ClientID)
	assert.Equal(t, "client-secret", cfg.STM.ClientSecret)
	assert.Equal(t, "maps-key", cfg.Directions.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeConfig(t, "server: [[[")

	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoad_RejectsBadFeedFormat(t *testing.T) {
	p := writeConfig(t, `
server:
  port: 8080
stm:
  authURL: https://auth.example.test/token
  baseURL: https://api.example.test/v1
  vehicleFeedFormat: csv
`)

	_, err := Load(p)
	assert.Error(t, err)
}
