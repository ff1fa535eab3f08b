package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Gemini      GeminiConfig
	OpenAI      OpenAIConfig
	Redis       RedisConfig
	Operator    OperatorConfig
	Logging     LoggingConfig
	Simulator   SimulatorConfig
	Session     SessionConfig
	Assets      AssetsConfig
	Acquisition AcquisitionConfig
	Profiles    ProfilesConfig
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type GeminiConfig struct {
	APIKey      string
	TextModel   string
	ImageModel  string
	SpeechModel string
	Voice       string
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type OperatorConfig struct {
	Username string
	Password string
}

type LoggingConfig struct {
	Level string
	File  string
}

type SimulatorConfig struct {
	// Seed 0 means "seed from the wall clock".
	Seed int64
}

type SessionConfig struct {
	CancelOnModeSwitch bool
	IdleTTL            time.Duration
}

type AssetsConfig struct {
	ImageConcurrency    int
	AudioConcurrency    int
	CampaignConcurrency int
}

type AcquisitionConfig struct {
	PageProbe       bool
	SimulationDelay time.Duration
	CacheTTL        time.Duration
}

type ProfilesConfig struct {
	File string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  parseCommaSeparated(getEnv("SERVER_ALLOWED_ORIGINS", "")),
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			TextModel:   getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
			ImageModel:  getEnv("GEMINI_IMAGE_MODEL", "imagen-4.0-generate-001"),
			SpeechModel: getEnv("GEMINI_SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
			Voice:       getEnv("GEMINI_VOICE", "Kore"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-5-mini"),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Operator: OperatorConfig{
			Username: getEnv("OPERATOR_USERNAME", ""),
			Password: getEnv("OPERATOR_PASSWORD", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		Simulator: SimulatorConfig{
			Seed: int64(getEnvInt("SIMULATOR_SEED", 0)),
		},
		Session: SessionConfig{
			CancelOnModeSwitch: getEnvBool("SESSION_CANCEL_ON_MODE_SWITCH", true),
			IdleTTL:            getEnvDuration("SESSION_IDLE_TTL", 8*time.Hour),
		},
		Assets: AssetsConfig{
			ImageConcurrency:    getEnvInt("ASSETS_IMAGE_CONCURRENCY", 1),
			AudioConcurrency:    getEnvInt("ASSETS_AUDIO_CONCURRENCY", 1),
			CampaignConcurrency: getEnvInt("ASSETS_CAMPAIGN_CONCURRENCY", 3),
		},
		Acquisition: AcquisitionConfig{
			PageProbe:       getEnvBool("ACQUISITION_PAGE_PROBE", true),
			SimulationDelay: getEnvDuration("ACQUISITION_SIMULATION_DELAY", 800*time.Millisecond),
			CacheTTL:        getEnvDuration("ACQUISITION_CACHE_TTL", 30*time.Minute),
		},
		Profiles: ProfilesConfig{
			File: getEnv("PROFILES_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Operator.Username == "" || c.Operator.Password == "" {
		return fmt.Errorf("OPERATOR_USERNAME and OPERATOR_PASSWORD are required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("SERVER_ADDR is required")
	}
	if c.Assets.ImageConcurrency < 1 || c.Assets.AudioConcurrency < 1 {
		return fmt.Errorf("asset concurrency must be at least 1")
	}
	if c.Assets.CampaignConcurrency < 1 {
		return fmt.Errorf("ASSETS_CAMPAIGN_CONCURRENCY must be at least 1")
	}
	if c.OpenAI.EnableFallback && c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when OPENAI_ENABLE_FALLBACK is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
