package core

import (
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "SESSION_KEY", "AUTH_SECRET", "COOKIE_SAMESITE", "VIEW_CACHE_TTL", "SIGNIN_MAX_ATTEMPTS", "FEDERATED_TOKEN_URL", "FEDERATED_CLIENT_SECRET", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "Lax", cfg.CookieSameSite)
	assert.Equal(t, 10*time.Minute, cfg.ViewCacheTTL)
	assert.Equal(t, 10, cfg.SignInMaxAttempts)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.FederatedEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SESSION_KEY", "")
	t.Setenv("AUTH_SECRET", "from-auth-secret")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("VIEW_CACHE_TTL", "90s")
	t.Setenv("SIGNIN_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("FEDERATED_TOKEN_URL", "https://accounts.example.com/token")
	t.Setenv("FEDERATED_CLIENT_SECRET", "s3cret")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "from-auth-secret", cfg.SessionKey)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.ViewCacheTTL)
	assert.Equal(t, 10, cfg.SignInMaxAttempts, "invalid ints fall back to the default")
	assert.True(t, cfg.FederatedEnabled())
}

func TestSetupLogging_WritesFile(t *testing.T) {
	dir := t.TempDir()
	closer, err := SetupLogging(Config{LogDir: dir}, "test.log")
	require.NoError(t, err)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		_ = closer.Close()
	})

	log.Printf("[test] hello")
	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] hello")
}
