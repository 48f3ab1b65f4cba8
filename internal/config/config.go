package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// DB_DSN empty -> in-memory store
	DBDriver string `env:"DB_DRIVER" envDefault:"mysql"`
	DBDSN    string `env:"DB_DSN"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"720h"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPCooldown time.Duration `env:"OTP_COOLDOWN" envDefault:"60s"`

	DevFallbackEnabled bool   `env:"DEV_FALLBACK_ENABLED" envDefault:"true"`
	DevUserID          string `env:"DEV_USER_ID" envDefault:"dev-user"`

	FreeMessageLimit      int `env:"FREE_MESSAGE_LIMIT" envDefault:"20"`
	ChatContextWindowSize int `env:"CHAT_CONTEXT_WINDOW_SIZE" envDefault:"6"`

	// AI provider
	AIProvider    string  `env:"AI_PROVIDER" envDefault:"groq"`
	AITemperature float64 `env:"AI_TEMPERATURE" envDefault:"0.8"`
	AIMaxTokens   int     `env:"AI_MAX_TOKENS" envDefault:"500"`

	GroqBaseURL string `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	GroqAPIKey  string `env:"GROQ_API_KEY"`
	GroqModel   string `env:"GROQ_MODEL" envDefault:"llama-3.1-8b-instant"`

	OllamaBaseURL string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaModel   string `env:"OLLAMA_MODEL" envDefault:"llama3:latest"`

	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL" envDefault:"openrouter/auto"`
	OpenRouterSiteURL string `env:"OPENROUTER_SITE_URL"`
	OpenRouterAppName string `env:"OPENROUTER_APP_NAME"`

	// rabbitMQ; empty URL -> in-process queue
	RabbitURL         string `env:"RABBIT_URL"`
	RabbitQueue       string `env:"RABBIT_QUEUE" envDefault:"summary_jobs"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// SMS
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `env:"TWILIO_FROM"`

	// payments
	CashfreeBaseURL   string  `env:"CASHFREE_BASE_URL" envDefault:"https://sandbox.cashfree.com"`
	CashfreeAppID     string  `env:"CASHFREE_APP_ID"`
	CashfreeSecretKey string  `env:"CASHFREE_SECRET_KEY"`
	PremiumPrice      float64 `env:"PREMIUM_PRICE" envDefault:"99"`
	PremiumCurrency   string  `env:"PREMIUM_CURRENCY" envDefault:"INR"`

	PremiumPeriod time.Duration `env:"PREMIUM_PERIOD" envDefault:"720h"`

	VapiAssistantID string `env:"VAPI_ASSISTANT_ID"`
	VapiPublicKey   string `env:"VAPI_PUBLIC_KEY"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded, using process environment", "err", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER=%q", c.DBDriver)
	}

	c.AIProvider = strings.ToLower(strings.TrimSpace(c.AIProvider))

	if c.ChatContextWindowSize <= 0 || c.ChatContextWindowSize > 100 {
		c.ChatContextWindowSize = 6
	}
	if c.FreeMessageLimit < 0 {
		c.FreeMessageLimit = 0
	}

	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = 2
	}
	if c.WorkerConcurrency > 50 {
		c.WorkerConcurrency = 50
	}
	return c, nil
}

func (c Config) ListenAddress() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func (c Config) PaymentsEnabled() bool {
	return c.CashfreeAppID != "" && c.CashfreeSecretKey != ""
}
