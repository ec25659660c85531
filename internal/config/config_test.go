package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Kind)
	assert.True(t, cfg.Provider.StreamResponse)
	assert.Equal(t, 120*time.Second, cfg.Provider.RequestTimeout)
	assert.False(t, cfg.Provider.Enabled())
}

func TestLoadServerAddrVariants(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	t.Setenv("PORT", "127.0.0.1:9091")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9091", cfg.Server.Addr)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "90 90")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadSQLiteStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "sqlite")
	t.Setenv("SESSION_STORE_PATH", "/tmp/test-sessions.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/test-sessions.db", cfg.Store.SQLitePath)
}

func TestLoadInvalidStoreBackend(t *testing.T) {
	t.Setenv("SESSION_STORE", "postgres")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOpenAIProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("AI_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AI_TEMPERATURE", "0.4")
	t.Setenv("AI_MAX_TOKENS", "2048")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Provider.Enabled())
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	require.NotNil(t, cfg.Provider.Temperature)
	assert.InDelta(t, 0.4, *cfg.Provider.Temperature, 1e-9)
	require.NotNil(t, cfg.Provider.MaxTokens)
	assert.Equal(t, 2048, *cfg.Provider.MaxTokens)
}

func TestLoadAzureModelIsDeployment(t *testing.T) {
	t.Setenv("AI_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-prod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Provider.Enabled())
	assert.Equal(t, "gpt-4o-prod", cfg.Provider.Model)
	assert.Equal(t, "2024-06-01", cfg.Provider.AzureAPIVersion)
}

func TestLoadAnthropicProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("AI_MODEL", "claude-sonnet-4-20250514")
	t.Setenv("ANTHROPIC_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Provider.Enabled())
}

func TestLoadArkDefaultsBaseURL(t *testing.T) {
	t.Setenv("AI_PROVIDER", "ark")
	t.Setenv("AI_MODEL", "doubao-pro")
	t.Setenv("ARK_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Provider.Enabled())
	assert.Equal(t, "https://ark.cn-beijing.volces.com/api/v3", cfg.Provider.BaseURL)
}

func TestLoadInvalidProviderKind(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mystery")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadInvalidNumericEnv(t *testing.T) {
	t.Setenv("AI_TEMPERATURE", "warm")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadTimeoutOverride(t *testing.T) {
	t.Setenv("AI_TIMEOUT_SECONDS", "30")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Provider.RequestTimeout)
}
