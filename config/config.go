// Package config loads runtime settings from the environment, an optional
// .env file and an optional YAML file. Precedence from lowest to highest:
// built-in defaults, YAML file, environment (.env entries only fill unset
// variables).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings hold every tunable of the platform. The zero value is not usable;
// construct via Load or Default.
type Settings struct {
	// API credentials.
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// Model selection.
	GenerationModel string `yaml:"generation_model"`
	EmbeddingModel  string `yaml:"embedding_model"`

	// Agent loop.
	MaxAgentIterations int           `yaml:"max_agent_iterations"`
	AgentTimeout       time.Duration `yaml:"agent_timeout"`

	// Orchestration.
	MaxConcurrentAgents int `yaml:"max_concurrent_agents"`

	// Retrieval.
	TopK             int     `yaml:"top_k"`
	OversampleFactor int     `yaml:"oversample_factor"`
	MinRelevance     float64 `yaml:"min_relevance"`

	// Client protection.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetryAttempts  int     `yaml:"max_retry_attempts"`

	Debug bool `yaml:"debug"`
}

// Default returns settings with built-in defaults applied.
func Default() Settings {
	return Settings{
		GenerationModel:     "gpt-4o-mini",
		EmbeddingModel:      "text-embedding-3-small",
		MaxAgentIterations:  10,
		AgentTimeout:        120 * time.Second,
		MaxConcurrentAgents: 4,
		TopK:                5,
		OversampleFactor:    3,
		MinRelevance:        0.1,
		RequestsPerSecond:   10,
		MaxRetryAttempts:    3,
	}
}

// Options configure Load.
type Options struct {
	// EnvFile is loaded into the process environment if present. Missing
	// files are not an error.
	EnvFile string

	// YAMLFile overrides defaults before environment variables apply.
	// Missing files are not an error.
	YAMLFile string
}

// Load builds Settings from defaults, an optional YAML file and the
// environment.
func Load(optFns ...func(o *Options)) (Settings, error) {
	opts := Options{EnvFile: ".env"}
	for _, fn := range optFns {
		fn(&opts)
	}

	settings := Default()

	if opts.YAMLFile != "" {
		if err := applyYAML(&settings, opts.YAMLFile); err != nil {
			return Settings{}, err
		}
	}

	if opts.EnvFile != "" {
		// Only fills variables that are not already set.
		_ = godotenv.Load(opts.EnvFile)
	}

	applyEnv(&settings)

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// Validate rejects settings no component can operate under.
func (s Settings) Validate() error {
	if s.MaxAgentIterations < 1 {
		return fmt.Errorf("config: max_agent_iterations must be >= 1, got %d", s.MaxAgentIterations)
	}
	if s.AgentTimeout <= 0 {
		return fmt.Errorf("config: agent_timeout must be positive, got %s", s.AgentTimeout)
	}
	if s.TopK < 0 {
		return fmt.Errorf("config: top_k must not be negative, got %d", s.TopK)
	}
	if s.MinRelevance < 0 || s.MinRelevance > 1 {
		return fmt.Errorf("config: min_relevance must be in [0,1], got %g", s.MinRelevance)
	}
	return nil
}

func applyYAML(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(s *Settings) {
	setString(&s.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&s.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&s.GenerationModel, "GENERATION_MODEL")
	setString(&s.EmbeddingModel, "EMBEDDING_MODEL")
	setInt(&s.MaxAgentIterations, "MAX_AGENT_ITERATIONS")
	setDuration(&s.AgentTimeout, "AGENT_TIMEOUT")
	setInt(&s.MaxConcurrentAgents, "MAX_CONCURRENT_AGENTS")
	setInt(&s.TopK, "TOP_K")
	setInt(&s.OversampleFactor, "OVERSAMPLE_FACTOR")
	setFloat(&s.MinRelevance, "MIN_RELEVANCE")
	setFloat(&s.RequestsPerSecond, "REQUESTS_PER_SECOND")
	setInt(&s.MaxRetryAttempts, "MAX_RETRY_ATTEMPTS")
	setBool(&s.Debug, "DEBUG")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
