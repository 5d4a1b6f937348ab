package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Redis.SkillTTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 0.7, cfg.Adaptive.TargetProbability)
	assert.Equal(t, 20, cfg.Adaptive.ExcludeLastN)
	assert.Equal(t, 0.3, cfg.Adaptive.KUser)
	assert.Equal(t, 0.1, cfg.Adaptive.KQuestion)
	assert.Equal(t, 6.0, cfg.Adaptive.SkillMax)
	assert.True(t, cfg.Adaptive.AdjustQuestionDifficulty)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://quiz@localhost/quiz
  query_timeout: 2s
redis:
  address: localhost:6379
  skill_ttl: 1m
adaptive:
  target_probability: 0.6
  exclude_last_n: 5
  adjust_question_difficulty: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, time.Minute, cfg.Redis.SkillTTL)
	assert.Equal(t, 0.6, cfg.Adaptive.TargetProbability)
	assert.Equal(t, 5, cfg.Adaptive.ExcludeLastN)
	assert.False(t, cfg.Adaptive.AdjustQuestionDifficulty)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.3, cfg.Adaptive.KUser)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "adaptive:\n  exclude_last_n: 5\n")
	t.Setenv("ADAPTIVE_EXCLUDE_LAST_N", "7")
	t.Setenv("DB_DSN", "/tmp/override.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Adaptive.ExcludeLastN)
	assert.Equal(t, "/tmp/override.db", cfg.Database.DSN)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "target probability at bound",
			mutate:  func(c *Config) { c.Adaptive.TargetProbability = 1 },
			wantErr: "adaptive.target_probability",
		},
		{
			name:    "question rate not below user rate",
			mutate:  func(c *Config) { c.Adaptive.KQuestion = 0.5 },
			wantErr: "adaptive.k_question",
		},
		{
			name:    "non-positive scale",
			mutate:  func(c *Config) { c.Adaptive.Scale = 0 },
			wantErr: "adaptive.scale",
		},
		{
			name:    "asymmetric skill bounds",
			mutate:  func(c *Config) { c.Adaptive.SkillMin = -3 },
			wantErr: "must be symmetric",
		},
		{
			name:    "default skill outside bounds",
			mutate:  func(c *Config) { c.Adaptive.DefaultSkill = 7 },
			wantErr: "adaptive.default_skill",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "database.driver",
		},
		{
			name:    "negative exclusion window",
			mutate:  func(c *Config) { c.Adaptive.ExcludeLastN = -1 },
			wantErr: "adaptive.exclude_last_n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
