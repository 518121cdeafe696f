package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_ENV_PATH", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GATEWAY_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PAYMENT_PROVIDER", "none")
	t.Setenv("S3_BUCKET", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, ":memory:", cfg.DatabaseDSN)
	assert.Equal(t, 1, cfg.FrontViewCost)
	assert.Equal(t, 2, cfg.UnlockCost)
	assert.Equal(t, 2, cfg.NewAccountCredits)
	assert.Equal(t, 50, cfg.HistoryMaxEntries)
	assert.Equal(t, 100, cfg.TransactionLogMax)
	assert.Equal(t, 3, cfg.RecentAccountsMax)
	assert.Equal(t, MissingAngleEmpty, cfg.UnlockMissingAnglePolicy)
	assert.Equal(t, 3*time.Minute, cfg.GenerationTimeout)
	assert.Equal(t, 3*time.Minute+30*time.Second, cfg.LockTTL)
	assert.False(t, cfg.S3Enabled())
}

func TestLoadReadsEnvFile(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "studio.env")
	require.NoError(t, os.WriteFile(path, []byte("HISTORY_MAX_ENTRIES=7\n"), 0o600))
	t.Setenv("CONFIG_ENV_PATH", path)
	t.Cleanup(func() { os.Unsetenv("HISTORY_MAX_ENTRIES") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.HistoryMaxEntries)
}

func TestLoadReportsMissing(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoadKIERequiresBucket(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GATEWAY_PROVIDER", "kie")
	t.Setenv("KIE_API_KEY", "key")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("UNLOCK_MISSING_ANGLE_POLICY", "sometimes")

	_, err := Load()
	require.Error(t, err)
}

func TestNormalizeKIEBaseURL(t *testing.T) {
	const fallback = "https://api.kie.ai"
	cases := map[string]string{
		"":                    fallback,
		"kie.ai":              "https://api.kie.ai",
		"https://kie.ai":      "https://api.kie.ai",
		"http://proxy.local":  "http://proxy.local",
		"  api.kie.ai  ":      "https://api.kie.ai",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeKIEBaseURL(in, fallback), "input %q", in)
	}
}
