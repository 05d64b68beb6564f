package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"kirana-voice/internal/logger"
)

// Config carries every runtime option of the engine. All values come from the
// environment; a .env file is loaded by the command entrypoint before Load.
type Config struct {
	// Shop identity
	ShopID    string
	ShopName  string
	ShopPhone string
	ShopGSTIN string
	Timezone  string

	// Postgres
	DatabaseURL string

	// Redis (conversation memory, pending state, job queue)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Conversation memory
	ConvTTL         time.Duration
	MaxConvMessages int
	MaxConvHistory  int

	// LLM (any OpenAI-compatible endpoint)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMModel      string

	// Speech providers
	STTProvider      string // deepgram, elevenlabs
	TTSProvider      string // elevenlabs, openai
	DeepgramAPIKey   string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	TTSOpenAIVoice   string

	// Notifications
	AdminEmail   string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	WhatsAppToken   string
	WhatsAppPhoneID string

	// Object store (invoice PDFs, audio archive)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// HTTP / websocket server
	ServerPort     string
	AllowedOrigins string
	JWTSecret      string
	OperatorPIN    string
	AdminPIN       string
	VoiceWorkers   int

	// Daily summary email hour (IST, 0-23)
	SummaryHour int

	// Optional override for the built-in honorific/nickname tables
	NicknamesFile string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string
}

func Load() (*Config, error) {
	cfg := &Config{
		ShopID:    getEnv("SHOP_ID", "shop1"),
		ShopName:  getEnv("SHOP_NAME", "Kirana Store"),
		ShopPhone: getEnv("SHOP_PHONE", ""),
		ShopGSTIN: getEnv("SHOP_GSTIN", ""),
		Timezone:  getEnv("TZ", "Asia/Kolkata"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ConvTTL:         time.Duration(getEnvInt("CONV_TTL_HOURS", 4)) * time.Hour,
		MaxConvMessages: getEnvInt("MAX_CONV_MESSAGES", 20),
		MaxConvHistory:  getEnvInt("MAX_CONV_HISTORY", 10),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4o"),

		STTProvider:      getEnv("STT_PROVIDER", "deepgram"),
		TTSProvider:      getEnv("TTS_PROVIDER", "elevenlabs"),
		DeepgramAPIKey:   getEnv("DEEPGRAM_API_KEY", ""),
		ElevenLabsAPIKey: getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoice:  getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		TTSOpenAIVoice:   getEnv("TTS_OPENAI_VOICE", "alloy"),

		AdminEmail:   getEnv("ADMIN_EMAIL", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		WhatsAppToken:   getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneID: getEnv("WHATSAPP_PHONE_ID", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Bucket:    getEnv("S3_BUCKET", "kirana"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", true),

		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		OperatorPIN:    getEnv("OPERATOR_PIN", ""),
		AdminPIN:       getEnv("ADMIN_PIN", ""),
		VoiceWorkers:   getEnvInt("VOICE_WORKERS", 4),

		SummaryHour: getEnvInt("SUMMARY_HOUR", 21),

		NicknamesFile: getEnv("NICKNAMES_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	switch c.STTProvider {
	case "deepgram", "elevenlabs":
	default:
		return fmt.Errorf("STT_PROVIDER must be deepgram or elevenlabs, got %q", c.STTProvider)
	}
	switch c.TTSProvider {
	case "elevenlabs", "openai":
	default:
		return fmt.Errorf("TTS_PROVIDER must be elevenlabs or openai, got %q", c.TTSProvider)
	}
	if c.SummaryHour < 0 || c.SummaryHour > 23 {
		return fmt.Errorf("SUMMARY_HOUR must be 0-23, got %d", c.SummaryHour)
	}
	return nil
}

// RedisAddr returns the host:port pair for the Redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// Location resolves the configured timezone, falling back to IST. Financial
// year boundaries and spoken dates both depend on it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

func (c *Config) GetLoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: time.RFC3339,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
