// Package config provides runtime configuration loading for the workflow engine.
package config

import (
	"os"
	"strconv"
)

// Defaults for the engine's bounded resources.
const (
	DefaultMaxWorkflowSteps     = 20
	DefaultMaxLLMTurns          = 5
	DefaultMaxToolResultTokens  = 50000
	DefaultAbsoluteTokenCeiling = 1000000
	DefaultSummaryChunkChars    = 100000
	DefaultPort                 = 8001
)

// Config is the full runtime configuration, loaded from the environment with
// defaults for every bounded resource.
type Config struct {
	LogLevel string

	// Engine limits.
	MaxWorkflowSteps     int
	MaxLLMTurns          int
	MaxToolResultTokens  int
	AbsoluteTokenCeiling int
	SummaryChunkChars    int

	// Model channel.
	AnthropicAPIKey string
	ClaudeModel     string

	// Tool channel.
	MCPServerURL string
	MCPAPIKey    string

	// Persistence. DatabaseURL wins over DataPath; both empty means the
	// degraded unlogged mode.
	DatabaseURL string
	DataPath    string

	// Event bus.
	KafkaBrokers string

	// Trigger API.
	WebhookSecret string
	Port          int
}

// FromEnv loads configuration from environment variables, applying defaults.
func FromEnv() *Config {
	return &Config{
		LogLevel:             getenv("LOG_LEVEL", "info"),
		MaxWorkflowSteps:     getenvInt("MAX_WORKFLOW_STEPS", DefaultMaxWorkflowSteps),
		MaxLLMTurns:          getenvInt("MAX_LLM_INTERACTION_TURNS", DefaultMaxLLMTurns),
		MaxToolResultTokens:  getenvInt("MAX_TOOL_RESULT_TOKENS", DefaultMaxToolResultTokens),
		AbsoluteTokenCeiling: getenvInt("ABSOLUTE_TOKEN_CEILING", DefaultAbsoluteTokenCeiling),
		SummaryChunkChars:    getenvInt("SUMMARY_CHUNK_CHARS", DefaultSummaryChunkChars),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:          os.Getenv("CLAUDE_MODEL"),
		MCPServerURL:         os.Getenv("MCP_SERVER_URL"),
		MCPAPIKey:            os.Getenv("MCP_API_KEY"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DataPath:             os.Getenv("DATA_PATH"),
		KafkaBrokers:         os.Getenv("KAFKA_BROKERS"),
		WebhookSecret:        os.Getenv("WEBHOOK_SECRET"),
		Port:                 getenvInt("PORT", DefaultPort),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}
