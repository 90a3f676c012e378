package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 20, cfg.Assignments.DefaultMaxMentees)
	assert.Equal(t, 5, cfg.Assignments.SignupMaxMentees)
	assert.Equal(t, 2*time.Minute, cfg.Assignments.CapacityCacheTTL)
	assert.Equal(t, 1, cfg.Assignments.RunRetries)
	assert.True(t, cfg.Reports.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ASSIGNMENT_DEFAULT_MAX_MENTEES", "5")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")
	t.Setenv("ENABLE_REPORT_EXPORT", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Assignments.DefaultMaxMentees)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.False(t, cfg.Reports.Enabled)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
