// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Service       ServiceConfig
	Database      DatabaseConfig
	STT           STTConfig
	AI            AIConfig
	Summary       SummaryConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds core service settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	// PublicBaseURL is the externally reachable base used to build the
	// viewer link posted into the meeting chat.
	PublicBaseURL string
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	URL string
}

// STTConfig holds speech-to-text provider settings.
type STTConfig struct {
	Provider       string // "google" or "mock"
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

// AIConfig holds AI completion provider settings.
type AIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// SummaryConfig holds summary scheduler settings.
type SummaryConfig struct {
	Interval time.Duration
}

// KafkaConfig holds transcript event publishing settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	TopicSession string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string // "json" or "console"
	MetricsAddr string
}

// Load reads configuration from the environment, falling back to
// defaults for anything unset or unparsable.
func Load() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:     envOrDefault("SERVICE_PRINCIPAL", "svc-meeting-summary"),
			HTTPPort:      envOrDefault("HTTP_PORT", "8080"),
			PublicBaseURL: envOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			// Empty selects the in-memory stores (credential-free runs).
			URL: os.Getenv("DATABASE_URL"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envIntOrDefault("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envBoolOrDefault("STT_INTERIM_RESULTS", true),
		},
		AI: AIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: envDurationOrDefault("OPENAI_TIMEOUT", 60*time.Second),
		},
		Summary: SummaryConfig{
			Interval: envDurationOrDefault("SUMMARY_INTERVAL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:      envBoolOrDefault("KAFKA_ENABLED", false),
			Brokers:      envListOrDefault("KAFKA_BROKERS", nil),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "meeting.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "meeting.transcript.final"),
			TopicSession: envOrDefault("KAFKA_TOPIC_SESSION", "meeting.session.ended"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBoolOrDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envListOrDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
