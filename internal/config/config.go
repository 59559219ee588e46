package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port string `env:"PORT" envDefault:"5000"`
	Env  string `env:"ENV" envDefault:"development"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Gemini AI
	GeminiAPIKey          string        `env:"GEMINI_API_KEY"`
	GeminiModel           string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiMaxOutputTokens int           `env:"GEMINI_MAX_OUTPUT_TOKENS" envDefault:"300"`
	GeminiTemperature     float64       `env:"GEMINI_TEMPERATURE" envDefault:"0.7"`
	GeminiTimeout         time.Duration `env:"GEMINI_TIMEOUT" envDefault:"60s"`
	GeminiConcurrentReqs  int           `env:"GEMINI_CONCURRENT_REQUESTS" envDefault:"2"`

	// Speech output
	PiperModel      string  `env:"PIPER_MODEL"`
	PiperSpeaker    string  `env:"PIPER_SPEAKER"`
	PiperSampleRate int     `env:"PIPER_SAMPLE_RATE" envDefault:"22050"`
	TTSSpeed        float64 `env:"TTS_SPEED" envDefault:"1.0"`
	TTSVolume       float64 `env:"TTS_VOLUME" envDefault:"1.0"`

	// Speech input
	STTEnabled         bool    `env:"STT_ENABLED" envDefault:"true"`
	FFmpegPath         string  `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	STTEnergyThreshold float64 `env:"STT_ENERGY_THRESHOLD" envDefault:"300"`
	STTDynamicEnergy   bool    `env:"STT_DYNAMIC_ENERGY" envDefault:"true"`

	// Redis (optional event relay)
	RedisURL string `env:"REDIS_URL"`

	// Frontend
	StaticDir          string   `env:"STATIC_DIR" envDefault:"./web"`
	CORSOrigins        []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.GeminiMaxOutputTokens <= 0 {
		return fmt.Errorf("GEMINI_MAX_OUTPUT_TOKENS must be positive, got %d", c.GeminiMaxOutputTokens)
	}
	if c.GeminiTemperature < 0 || c.GeminiTemperature > 2 {
		return fmt.Errorf("GEMINI_TEMPERATURE must be within [0, 2], got %g", c.GeminiTemperature)
	}
	if c.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be positive, got %s", c.GeminiTimeout)
	}
	if c.GeminiConcurrentReqs <= 0 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be positive, got %d", c.GeminiConcurrentReqs)
	}
	if c.PiperSampleRate <= 0 {
		return fmt.Errorf("PIPER_SAMPLE_RATE must be positive, got %d", c.PiperSampleRate)
	}
	if c.TTSSpeed <= 0 {
		return fmt.Errorf("TTS_SPEED must be positive, got %g", c.TTSSpeed)
	}
	if c.TTSVolume < 0 || c.TTSVolume > 1 {
		return fmt.Errorf("TTS_VOLUME must be within [0, 1], got %g", c.TTSVolume)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	return nil
}

// APIReady reports whether a Gemini credential is configured.
func (c *Config) APIReady() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// IndexPath returns the landing page location, or "" when no static dir is set.
func (c *Config) IndexPath() string {
	if c.StaticDir == "" {
		return ""
	}
	return filepath.Join(c.StaticDir, "index.html")
}
