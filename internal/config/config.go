package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates service configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Provider ProviderConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	provider, err := loadProviderConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Store: store, Provider: provider}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Backend    string // "memory" or "sqlite"
	SQLitePath string
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("SESSION_STORE", "memory"))
	switch backend {
	case "memory", "sqlite":
	default:
		return StoreConfig{}, fmt.Errorf("invalid SESSION_STORE value %q: want memory or sqlite", backend)
	}

	return StoreConfig{
		Backend:    backend,
		SQLitePath: getEnvOrDefault("SESSION_STORE_PATH", "./data/sessions.db"),
	}, nil
}

// ProviderKind names an LLM backend variant.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAzure     ProviderKind = "azure"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderArk       ProviderKind = "ark"
)

// ProviderConfig describes the LLM backend for an organization. In the full
// platform this record is resolved per organization; the service default
// comes from the environment.
type ProviderConfig struct {
	Kind    ProviderKind
	Model   string
	APIKey  string
	BaseURL string

	// Azure OpenAI
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string

	// Ark (legacy backend generation)
	ArkAccessKey string
	ArkSecretKey string
	ArkRegion    string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	StreamResponse bool
	RequestTimeout time.Duration
}

// Enabled reports whether the required credentials for the configured kind
// are present. Absence is a normal user-facing condition, not an error.
func (c ProviderConfig) Enabled() bool {
	switch c.Kind {
	case ProviderOpenAI:
		return c.APIKey != "" && c.Model != ""
	case ProviderAzure:
		return c.APIKey != "" && c.AzureEndpoint != "" && c.AzureDeployment != ""
	case ProviderAnthropic:
		return c.APIKey != "" && c.Model != ""
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
	default:
		return false
	}
}

func loadProviderConfig() (ProviderConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return ProviderConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return ProviderConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return ProviderConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return ProviderConfig{}, err
	}

	timeoutSeconds := 120
	if override, err := parseOptionalIntEnv("AI_TIMEOUT_SECONDS"); err != nil {
		return ProviderConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	kind := ProviderKind(strings.ToLower(getEnvOrDefault("AI_PROVIDER", "openai")))
	switch kind {
	case ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderArk:
	default:
		return ProviderConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", kind)
	}

	cfg := ProviderConfig{
		Kind:            kind,
		Model:           strings.TrimSpace(os.Getenv("AI_MODEL")),
		BaseURL:         strings.TrimSpace(os.Getenv("AI_BASE_URL")),
		AzureEndpoint:   strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT")),
		AzureDeployment: strings.TrimSpace(os.Getenv("AZURE_OPENAI_DEPLOYMENT")),
		AzureAPIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-06-01"),
		ArkAccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkRegion:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:     temperature,
		TopP:            topP,
		MaxTokens:       maxTokens,
		StreamResponse:  stream,
		RequestTimeout:  time.Duration(timeoutSeconds) * time.Second,
	}

	switch kind {
	case ProviderOpenAI:
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case ProviderAzure:
		cfg.APIKey = strings.TrimSpace(os.Getenv("AZURE_OPENAI_API_KEY"))
		cfg.Model = cfg.AzureDeployment
	case ProviderAnthropic:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case ProviderArk:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		if cfg.BaseURL == "" {
			cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		}
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
