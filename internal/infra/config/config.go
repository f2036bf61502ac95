// Package config provides tool-host and client configuration.
// Values come from defaults, an optional YAML file, an optional .env file and
// the process environment, in increasing order of precedence. Configuration is
// loaded once in cmd/ and passed down explicitly; nothing below cmd/ reads env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted by LLMProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds runtime configuration for the tool host and the pipeline client.
type Config struct {
	// Store
	DBPath       string `yaml:"db_path"`        // SQLAGENT_DB_PATH
	DataDictPath string `yaml:"data_dict_path"` // SQLAGENT_DATA_DICT_PATH

	// LLM
	LLMProvider      string `yaml:"llm_provider"`       // LLM_PROVIDER: default: "anthropic"
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`  // ANTHROPIC_API_KEY
	AnthropicBaseURL string `yaml:"anthropic_base_url"` // ANTHROPIC_BASE_URL
	AnthropicModel   string `yaml:"anthropic_model"`    // ANTHROPIC_MODEL
	OllamaBaseURL    string `yaml:"ollama_base_url"`    // OLLAMA_BASE_URL: default: "http://localhost:11434"
	OllamaChatModel  string `yaml:"ollama_chat_model"`  // OLLAMA_CHAT_MODEL: default: "llama3.2:3b"

	// Per-tool model overrides; empty means the provider default.
	ExtractionModel string `yaml:"extraction_model"` // SQLAGENT_EXTRACTION_MODEL
	QueryModel      string `yaml:"query_model"`      // SQLAGENT_QUERY_MODEL
	SynthesisModel  string `yaml:"synthesis_model"`  // SQLAGENT_SYNTHESIS_MODEL

	// Streamable HTTP transport
	HTTPAddr  string `yaml:"http_addr"`  // SQLAGENT_HTTP_ADDR: default: "127.0.0.1:8750"
	JWTSecret string `yaml:"jwt_secret"` // SQLAGENT_JWT_SECRET: empty disables bearer auth

	// Logging
	LogLevel  string `yaml:"log_level"`  // SQLAGENT_LOG_LEVEL: default: "info"
	LogFormat string `yaml:"log_format"` // SQLAGENT_LOG_FORMAT: default: "text"
}

const (
	envKeyDBPath           = "SQLAGENT_DB_PATH"
	envKeyDataDictPath     = "SQLAGENT_DATA_DICT_PATH"
	envKeyLLMProvider      = "LLM_PROVIDER"
	envKeyAnthropicAPIKey  = "ANTHROPIC_API_KEY" //nolint:gosec
	envKeyAnthropicBaseURL = "ANTHROPIC_BASE_URL"
	envKeyAnthropicModel   = "ANTHROPIC_MODEL"
	envKeyOllamaBaseURL    = "OLLAMA_BASE_URL"
	envKeyOllamaChatModel  = "OLLAMA_CHAT_MODEL"
	envKeyExtractionModel  = "SQLAGENT_EXTRACTION_MODEL"
	envKeyQueryModel       = "SQLAGENT_QUERY_MODEL"
	envKeySynthesisModel   = "SQLAGENT_SYNTHESIS_MODEL"
	envKeyHTTPAddr         = "SQLAGENT_HTTP_ADDR"
	envKeyJWTSecret        = "SQLAGENT_JWT_SECRET" //nolint:gosec
	envKeyLogLevel         = "SQLAGENT_LOG_LEVEL"
	envKeyLogFormat        = "SQLAGENT_LOG_FORMAT"
)

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DBPath:          "data/electric_vehicle_population.db",
		DataDictPath:    "data/data_dictionary.csv",
		LLMProvider:     ProviderAnthropic,
		AnthropicModel:  "claude-3-5-sonnet-latest",
		OllamaBaseURL:   "http://localhost:11434",
		OllamaChatModel: "llama3.2:3b",
		HTTPAddr:        "127.0.0.1:8750",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFrom layers an optional YAML file and an optional .env file under the
// process environment. Empty paths are skipped; a missing .env file is not an error.
func LoadFrom(yamlPath, dotenvPath string) (Config, error) {
	cfg := Defaults()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", yamlPath, err)
		}
	}

	if dotenvPath != "" {
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %q: %w", dotenvPath, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Validate reports configuration that would make the tool host unusable.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderAnthropic:
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			return fmt.Errorf("%w: %s is required when LLM_PROVIDER=%s", ErrInvalidConfig, envKeyAnthropicAPIKey, ProviderAnthropic)
		}
	case ProviderOllama:
		if strings.TrimSpace(c.OllamaBaseURL) == "" {
			return fmt.Errorf("%w: %s is required when LLM_PROVIDER=%s", ErrInvalidConfig, envKeyOllamaBaseURL, ProviderOllama)
		}
	default:
		return fmt.Errorf("%w: unknown LLM provider %q", ErrInvalidConfig, c.LLMProvider)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, envKeyDBPath)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DBPath = envOr(envKeyDBPath, c.DBPath)
	c.DataDictPath = envOr(envKeyDataDictPath, c.DataDictPath)
	c.LLMProvider = envOr(envKeyLLMProvider, c.LLMProvider)
	c.AnthropicAPIKey = envOr(envKeyAnthropicAPIKey, c.AnthropicAPIKey)
	c.AnthropicBaseURL = envOr(envKeyAnthropicBaseURL, c.AnthropicBaseURL)
	c.AnthropicModel = envOr(envKeyAnthropicModel, c.AnthropicModel)
	c.OllamaBaseURL = envOr(envKeyOllamaBaseURL, c.OllamaBaseURL)
	c.OllamaChatModel = envOr(envKeyOllamaChatModel, c.OllamaChatModel)
	c.ExtractionModel = envOr(envKeyExtractionModel, c.ExtractionModel)
	c.QueryModel = envOr(envKeyQueryModel, c.QueryModel)
	c.SynthesisModel = envOr(envKeySynthesisModel, c.SynthesisModel)
	c.HTTPAddr = envOr(envKeyHTTPAddr, c.HTTPAddr)
	c.JWTSecret = envOr(envKeyJWTSecret, c.JWTSecret)
	c.LogLevel = envOr(envKeyLogLevel, c.LogLevel)
	c.LogFormat = envOr(envKeyLogFormat, c.LogFormat)
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
