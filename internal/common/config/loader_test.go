package config

import (
	"os"
	"path/filepath"
	"testing"

	"mandate-matching/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: matching
    user: matching
  redis:
    address: localhost:6379
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Address())
	assert.True(t, cfg.Camunda.Enabled)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	assert.Equal(t, 100, cfg.Matching.CandidateCap)
	assert.Equal(t, CandidateSourcePostgres, cfg.Matching.CandidateSource)
	assert.True(t, cfg.Matching.CoarsePrefilter)
	assert.Equal(t, 0.05, cfg.Matching.LearningRate)
	assert.Equal(t, models.DefaultWeights(), cfg.DefaultWeights())

	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
	assert.True(t, cfg.Resilience.BreakerEnabled)
	assert.Equal(t, "eu-west-1", cfg.Integrations.AWS.Region)
}

func TestLoadFromFile_CustomWeights(t *testing.T) {
	body := minimalConfig + `
matching:
  default_weights:
    sector: 0.5
    geo: 0.5
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)

	w := cfg.DefaultWeights()
	assert.Equal(t, 0.5, w.Sector)
	assert.Equal(t, 0.5, w.Geo)
	assert.Zero(t, w.Keywords)
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "s3cret")
	body := minimalConfig + `
    password: ${TEST_PG_PASSWORD}
`
	// password belongs to the redis block in the appended yaml
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Redis.Password)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing postgres host",
			body: `
camunda:
  enabled: false
database:
  postgres:
    database: matching
    user: matching
  redis:
    address: localhost:6379
`,
			wantErr: "database.postgres.host",
		},
		{
			name: "broker required when camunda enabled",
			body: `
database:
  postgres:
    host: localhost
    database: matching
    user: matching
  redis:
    address: localhost:6379
`,
			wantErr: "camunda.broker_address",
		},
		{
			name: "elasticsearch source without addresses",
			body: minimalConfig + `
matching:
  candidate_source: elasticsearch
`,
			wantErr: "database.elasticsearch",
		},
		{
			name: "unknown candidate source",
			body: minimalConfig + `
matching:
  candidate_source: mongo
`,
			wantErr: "matching.candidate_source",
		},
		{
			name: "unknown weight factor",
			body: minimalConfig + `
matching:
  default_weights:
    revenue: 1
`,
			wantErr: "matching.default_weights",
		},
		{
			name: "learning rate out of range",
			body: minimalConfig + `
matching:
  learning_rate: 1.5
`,
			wantErr: "matching.learning_rate",
		},
		{
			name: "sns without topic",
			body: minimalConfig + `
integrations:
  aws:
    sns:
      enabled: true
`,
			wantErr: "weights_topic_arn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"search-mandate-matches": {Enabled: false, MaxJobsActive: 2, Timeout: 1000, MaxRetries: 1},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "search-mandate-matches"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "search-mandate-matches").MaxJobsActive)

	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "unknown").MaxJobsActive)
}
