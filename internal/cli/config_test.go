package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TRIAGEM_CONFIG", p)
	t.Setenv("TRIAGEM_BASE_URL", "")
	t.Setenv("TRIAGEM_API_KEY", "")
	return p
}

func TestLoadConfig_MissingFile(t *testing.T) {
	useTempConfig(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.DefaultEnv)
	assert.Empty(t, cfg.Environments)
}

func TestInitAndSetDefaultEnv(t *testing.T) {
	useTempConfig(t)
	require.NoError(t, InitConfig())

	env, name, err := GetEnvConfig("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "dev", name)
	assert.Equal(t, "http://localhost:8080", env.BaseURL)

	require.NoError(t, SetDefaultEnv("prod"))
	_, name, err = GetEnvConfig("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "prod", name)

	assert.Error(t, SetDefaultEnv("staging"))
}

func TestGetEnvConfig_Precedence(t *testing.T) {
	useTempConfig(t)
	require.NoError(t, InitConfig())

	env, _, err := GetEnvConfig("dev", "", "flag-key")
	require.NoError(t, err)
	assert.Equal(t, "flag-key", env.APIKey)
	assert.Equal(t, "http://localhost:8080", env.BaseURL)

	t.Setenv("TRIAGEM_BASE_URL", "http://env:9")
	t.Setenv("TRIAGEM_API_KEY", "env-key")
	_, _, err = GetEnvConfig("", "", "")
	assert.Error(t, err, "env vars alone need --env")

	env, name, err := GetEnvConfig("ci", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ci", name)
	assert.Equal(t, "env-key", env.APIKey)
}
