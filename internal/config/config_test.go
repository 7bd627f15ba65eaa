package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// envdecode treats an empty value as unset, so the defaults apply.
	t.Setenv("ENGINE_OPS_ADDR", "")
	t.Setenv("ENGINE_SWEEP_INTERVAL", "")
	t.Setenv("ENGINE_REFERRAL_CONFIG", "")
	t.Setenv("ENGINE_POSTGRES_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.OpsAddr)
	require.Equal(t, 30*time.Minute, cfg.SweepInterval)
	require.Equal(t, "config/referral.yaml", cfg.ReferralConfigPath)
	require.Empty(t, cfg.PostgresDSN)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENGINE_OPS_ADDR", ":8088")
	t.Setenv("ENGINE_POSTGRES_DSN", "postgres://localhost/engine")
	t.Setenv("ENGINE_SWEEP_INTERVAL", "5m")
	t.Setenv("ENGINE_SWEEP_SCHEDULE", "@every 10m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8088", cfg.OpsAddr)
	require.Equal(t, "postgres://localhost/engine", cfg.PostgresDSN)
	require.Equal(t, 5*time.Minute, cfg.SweepInterval)
	require.Equal(t, "@every 10m", cfg.SweepSchedule)
}

func TestLoadReferralSettings_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "referral.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
enabled: true
levels:
  - level: 1
    commission_rate: 7
  - level: 2
    commission_rate: 3
`), 0o600))

	settings, err := LoadReferralSettings(path)
	require.NoError(t, err)
	require.True(t, settings.Enabled)
	require.Len(t, settings.Levels, 2)
	require.Equal(t, 7.0, settings.Levels[0].CommissionRate)
}

func TestLoadReferralSettings_MissingFileFallsBack(t *testing.T) {
	settings, err := LoadReferralSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultReferralSettings(), settings)
}

func TestLoadReferralSettings_RejectsInvalidLevels(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero level", "enabled: true\nlevels:\n  - level: 0\n    commission_rate: 5\n"},
		{"negative rate", "enabled: true\nlevels:\n  - level: 1\n    commission_rate: -1\n"},
		{"malformed", "enabled: [broken\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "referral.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))

			_, err := LoadReferralSettings(path)
			require.Error(t, err)
		})
	}
}
