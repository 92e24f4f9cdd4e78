package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvEnvFile, filepath.Join(dir, "missing.env"))
	for _, k := range []string{EnvAPIURL, EnvEventsURL, EnvWebURL, EnvLogLevel, EnvTimeout} {
		t.Setenv(k, "")
	}
	t.Setenv(EnvDataDir, dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolateEnv(t)

	cfg, err := Load(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, cfg.APIURL, cfg.EventsURL)
	assert.Equal(t, "http://localhost:3000", cfg.WebURL)
	assert.Equal(t, filepath.Join(dir, "revify.log"), cfg.LogFile)
	assert.Equal(t, filepath.Join(dir, "credentials.yaml"), cfg.CredentialsFile())
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://api.example.com/v1
log_level: debug
serve:
  addr: 0.0.0.0:4000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", cfg.APIURL)
	assert.Equal(t, "https://api.example.com", cfg.WebURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:4000", cfg.Serve.Addr)
	assert.Equal(t, int64(1<<20), cfg.Serve.MaxFileSize)

	t.Setenv(EnvEventsURL, "https://events.example.com")
	t.Setenv(EnvTimeout, "5")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://events.example.com", cfg.EventsURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoadEmptyTimeoutKeepsDefault(t *testing.T) {
	isolateEnv(t)
	t.Setenv(EnvTimeout, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	t.Setenv(EnvTimeout, "2m")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)

	t.Setenv(EnvTimeout, "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := isolateEnv(t)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REVIFY_WEB_URL=https://revify.example\n"), 0o644))
	t.Setenv(EnvEnvFile, envFile)
	// godotenv does not override variables that are already set.
	require.NoError(t, os.Unsetenv(EnvWebURL))
	t.Cleanup(func() { os.Unsetenv(EnvWebURL) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://revify.example", cfg.WebURL)
}

func TestLoadInvalid(t *testing.T) {
	dir := isolateEnv(t)

	t.Setenv(EnvAPIURL, "not a url")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "loud")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [unterminated"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Empty(t, creds.Cookies)

	in := NewCredentials("http://localhost:3000", []*http.Cookie{{Name: "revify.sid", Value: "abc"}})
	require.NoError(t, SaveCredentials(path, in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	require.Len(t, out.HTTPCookies(), 1)
	assert.Equal(t, "abc", out.HTTPCookies()[0].Value)

	require.NoError(t, RemoveCredentials(path))
	require.NoError(t, RemoveCredentials(path))
}
