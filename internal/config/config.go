// Package config handles bodil configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/bodil/config.yaml, /etc/bodil/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "bodil", "config.yaml"))
	}

	paths = append(paths, "/etc/bodil/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all bodil configuration.
type Config struct {
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	Models       ModelsConfig       `yaml:"models"`
	Agent        AgentConfig        `yaml:"agent"`
	Compaction   CompactionConfig   `yaml:"compaction"`
	Conversation ConversationConfig `yaml:"conversation"`
	Pricing      PricingConfig      `yaml:"pricing"`
	DataDir      string             `yaml:"data_dir"`
	LogLevel     string             `yaml:"log_level"`
}

// AnthropicConfig defines Anthropic API settings. The API key may also
// be supplied via the ANTHROPIC_API_KEY environment variable, which
// takes precedence over the file value.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// ModelsConfig defines the model roster. Capable is required; Economical
// and Compact are optional downgrades for simple turns and history
// summarization respectively. Empty Economical means every turn runs on
// the capable model. Empty Compact falls back to Economical, then Capable.
type ModelsConfig struct {
	Capable    string `yaml:"capable"`
	Economical string `yaml:"economical"`
	Compact    string `yaml:"compact"`
}

// AgentConfig defines loop behavior.
type AgentConfig struct {
	// MaxTokens per model response.
	MaxTokens int `yaml:"max_tokens"`
	// ThinkingBudget in tokens. Values below 1024 disable extended
	// thinking entirely (the parameter is omitted from requests).
	ThinkingBudget int `yaml:"thinking_budget"`
	// MaxIterations caps the tool-use loop per inbound message.
	MaxIterations int `yaml:"max_iterations"`
}

// CompactionConfig controls conversation history summarization.
type CompactionConfig struct {
	// Threshold is the message count at which history is compacted.
	Threshold int `yaml:"threshold"`
	// KeepRecent is how many trailing messages survive verbatim.
	KeepRecent int `yaml:"keep_recent"`
}

// ConversationConfig controls the persisted history window.
type ConversationConfig struct {
	// MaxMessages loaded per chat.
	MaxMessages int `yaml:"max_messages"`
	// TimeoutMinutes of inactivity after which older history is dropped.
	TimeoutMinutes int `yaml:"timeout_minutes"`
}

// PricingEntry holds USD prices per million tokens for one model.
type PricingEntry struct {
	InputPerMillion      float64 `yaml:"input_per_million"`
	OutputPerMillion     float64 `yaml:"output_per_million"`
	CacheWritePerMillion float64 `yaml:"cache_write_per_million"`
	CacheReadPerMillion  float64 `yaml:"cache_read_per_million"`
}

// PricingConfig maps model names to pricing entries plus the USD to SEK
// conversion rate used for cost reporting.
type PricingConfig struct {
	USDToSEK float64                 `yaml:"usd_to_sek"`
	Models   map[string]PricingEntry `yaml:"models"`
	// Fallback names the pricing entry used for unknown models.
	Fallback string `yaml:"fallback"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.Anthropic.APIKey = key
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			Capable:    "claude-sonnet-4-20250514",
			Economical: "claude-3-5-haiku-20241022",
			Compact:    "claude-3-5-haiku-20241022",
		},
		Agent: AgentConfig{
			MaxTokens:     4096,
			MaxIterations: 30,
		},
		Compaction: CompactionConfig{
			Threshold:  30,
			KeepRecent: 10,
		},
		Conversation: ConversationConfig{
			MaxMessages:    20,
			TimeoutMinutes: 60,
		},
		Pricing:  DefaultPricing(),
		DataDir:  "data",
		LogLevel: "info",
	}
}

// DefaultPricing returns the built-in pricing table.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		USDToSEK: 10.5,
		Fallback: "claude-sonnet-4-20250514",
		Models: map[string]PricingEntry{
			"claude-sonnet-4-20250514": {
				InputPerMillion:      3.00,
				OutputPerMillion:     15.00,
				CacheWritePerMillion: 3.75,
				CacheReadPerMillion:  0.30,
			},
			"claude-3-5-haiku-20241022": {
				InputPerMillion:      0.80,
				OutputPerMillion:     4.00,
				CacheWritePerMillion: 1.00,
				CacheReadPerMillion:  0.08,
			},
		},
	}
}
