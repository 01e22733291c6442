package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4010/api/v1", cfg.APIBaseURL)
	assert.Equal(t, cfg.APIBaseURL, cfg.APIAuthURL)
	assert.Equal(t, StoreFile, cfg.TokenStore)
	assert.Equal(t, ".flouze-tokens.json", cfg.TokenFile)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, 10*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, "ETH", cfg.Currency)
	assert.Equal(t, 30, cfg.HistoryDays)
	assert.Equal(t, logrus.WarnLevel, cfg.Level())
}

func TestLoad_Priority(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://env.example.com/api/v1")
	t.Setenv("TOKEN_STORE", "bolt")
	t.Setenv("REFRESH_TIMEOUT", "3s")
	t.Setenv("HISTORY_DAYS", "7")

	t.Run("env over default", func(t *testing.T) {
		cfg, err := Load(nil)
		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com/api/v1", cfg.APIBaseURL)
		assert.Equal(t, StoreBolt, cfg.TokenStore)
		assert.Equal(t, 3*time.Second, cfg.RefreshTimeout)
		assert.Equal(t, 7, cfg.HistoryDays)
	})

	t.Run("flag over env", func(t *testing.T) {
		cfg, err := Load([]string{
			"-api-url", "https://flag.example.com",
			"-store", "memory",
			"-refresh-timeout", "1s",
			"-days", "90",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://flag.example.com", cfg.APIBaseURL)
		assert.Equal(t, "https://flag.example.com", cfg.APIAuthURL)
		assert.Equal(t, StoreMemory, cfg.TokenStore)
		assert.Equal(t, time.Second, cfg.RefreshTimeout)
		assert.Equal(t, 90, cfg.HistoryDays)
	})
}

func TestLoad_SeparateAuthURL(t *testing.T) {
	cfg, err := Load([]string{
		"-api-url", "https://api.example.com/api/v1",
		"-auth-url", "https://auth.example.com/api/v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/api/v1", cfg.APIAuthURL)
	assert.Empty(t, cfg.InsecureURLs())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "non-http scheme", args: []string{"-api-url", "ftp://example.com"}},
		{name: "missing host", args: []string{"-auth-url", "http://"}},
		{name: "unknown store", args: []string{"-store", "redis"}},
		{name: "bad log level", args: []string{"-log-level", "loud"}},
		{name: "bad wallet", args: []string{"-wallet", "0x123"}},
		{name: "zero history", env: map[string]string{"HISTORY_DAYS": "0"}},
		{name: "negative refresh timeout", env: map[string]string{"REFRESH_TIMEOUT": "-1s"}},
		{name: "unparsable duration", env: map[string]string{"REQUEST_TIMEOUT": "soon"}},
		{name: "unknown flag", args: []string{"-device-code"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestInsecureURLs(t *testing.T) {
	cfg := &Config{
		APIBaseURL: "http://localhost:4010/api/v1",
		APIAuthURL: "http://localhost:4010/api/v1",
	}
	assert.Equal(t, []string{"http://localhost:4010/api/v1"}, cfg.InsecureURLs())

	cfg.APIAuthURL = "HTTP://auth.local"
	assert.Len(t, cfg.InsecureURLs(), 2)
}

func TestHasCredentials(t *testing.T) {
	assert.False(t, (&Config{Email: "a@b.c"}).HasCredentials())
	assert.True(t, (&Config{Email: "a@b.c", Password: "pw"}).HasCredentials())
}
