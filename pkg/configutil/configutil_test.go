package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl  string `json:"base_url" validate:"required,url"`
	Username string `json:"username"`
	Interval int    `json:"interval"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	_, err := ReadConfig[testConfig](name)
	require.True(t, os.IsNotExist(err))

	err = os.WriteFile(name, []byte(`{
		// comments are allowed
		base_url: "https://ta.yrdsb.ca",
		username: "student",
		interval: 30,
	}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://ta.yrdsb.ca", cfg.BaseUrl)
	require.Equal(t, 30, cfg.Interval)
	require.NoError(t, Validate(cfg))

	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{username: "override"}`), 0600)
	require.NoError(t, err)

	cfg, err = ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "override", cfg.Username)
	require.Equal(t, "https://ta.yrdsb.ca", cfg.BaseUrl)
}

func TestValidate(t *testing.T) {
	require.Error(t, Validate(testConfig{}))
	require.Error(t, Validate(testConfig{BaseUrl: "not a url"}))
	require.NoError(t, Validate(testConfig{BaseUrl: "https://example.com"}))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	err := os.WriteFile(envFile, []byte("CONFIGUTIL_TEST_VALUE=from-file\n"), 0600)
	require.NoError(t, err)

	t.Setenv("CONFIGUTIL_TEST_VALUE", "")
	os.Unsetenv("CONFIGUTIL_TEST_VALUE")

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), envFile))
	require.Equal(t, "from-file", os.Getenv("CONFIGUTIL_TEST_VALUE"))
}
