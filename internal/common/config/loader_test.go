package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: carmarket
    user: carmarket
`

// ==========================
// Loading Tests
// ==========================

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "carmarket-search", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, BackendPostgres, cfg.Search.Backend)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 48, cfg.Search.MaxLimit)
	assert.Equal(t, 0.3, cfg.Assistant.MinConfidence)
	assert.Equal(t, ProviderNone, cfg.APIs.GenAI.Provider)
	assert.Equal(t, "listings", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_GENAI_URL", "http://llm.internal:9000")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
apis:
  genai:
    base_url: ${TEST_GENAI_URL}
assistant:
  min_confidence: 0.6
`))
	require.NoError(t, err)

	assert.Equal(t, "http://llm.internal:9000", cfg.APIs.GenAI.BaseURL)
	assert.Equal(t, ProviderHTTP, cfg.APIs.GenAI.Provider)
	assert.Equal(t, 0.6, cfg.Assistant.MinConfidence)
}

func TestLoadFromFile_ZeroMinConfidenceKept(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
assistant:
  min_confidence: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Assistant.MinConfidence)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
workers:
  search-listings:
    enabled: true
`))
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "search-listings")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))
}

// ==========================
// Validation Tests
// ==========================

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "search:\n  backend: postgres\n",
			wantErr: "database.postgres.host",
		},
		{
			name:    "unknown backend",
			body:    minimalConfig + "search:\n  backend: mongo\n",
			wantErr: "search.backend",
		},
		{
			name:    "elasticsearch backend without address",
			body:    minimalConfig + "search:\n  backend: elasticsearch\n",
			wantErr: "database.elasticsearch",
		},
		{
			name:    "cache without redis",
			body:    minimalConfig + "search:\n  cache_enabled: true\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "gemini without key",
			body:    minimalConfig + "apis:\n  genai:\n    provider: gemini\n",
			wantErr: "apis.genai.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GENAI_API_KEY", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateForWorkers(t *testing.T) {
	assert.Error(t, ValidateForWorkers(&Config{}))
	assert.NoError(t, ValidateForWorkers(&Config{Camunda: CamundaConfig{BrokerAddress: "zeebe:26500"}}))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestLoadFromFile_UnsetPlaceholderIsEmpty(t *testing.T) {
	t.Setenv("TEST_UNSET_PROVIDER", "")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
apis:
  genai:
    provider: ${TEST_UNSET_PROVIDER}
`))
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, cfg.APIs.GenAI.Provider)
}

func TestElasticsearchConfig_Nodes(t *testing.T) {
	tests := []struct {
		name string
		cfg  ElasticsearchConfig
		want []string
	}{
		{"url only", ElasticsearchConfig{URL: "http://es:9200"}, []string{"http://es:9200"}},
		{"addresses only", ElasticsearchConfig{Addresses: []string{"http://a:9200", "http://b:9200"}}, []string{"http://a:9200", "http://b:9200"}},
		{"url first, no duplicates", ElasticsearchConfig{URL: "http://a:9200", Addresses: []string{"http://a:9200", "", "http://b:9200"}}, []string{"http://a:9200", "http://b:9200"}},
		{"nothing", ElasticsearchConfig{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Nodes())
		})
	}
}
