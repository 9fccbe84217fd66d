package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	AppEnv       string
	CORSOrigins  []string
	MaxFileSize  int64
	AllowedTypes []string
	BcryptCost   int

	// Per-client API rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Gemini
	GeminiAPIKey string
	GeminiModel  string
	GeminiTier   string

	// Embeddings
	EmbeddingsModel  string
	VectorDimensions int

	// Chunking
	MaxChunkSize int
	ChunkOverlap int

	// MongoDB Atlas Vector Search
	VectorSearchEnabled bool
	VectorIndexName     string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// JWT Token Secrets
	AccessSecret  string
	RefreshSecret string
	JWTExpiresIn  string

	// Widget embed
	WidgetAllowUnverifiedSites bool

	// Crawler
	CrawlMaxPages    int
	CrawlMaxDepth    int
	CrawlUserAgent   string
	RecrawlCron      string
	CrawlJSRendering bool

	// Token usage alerts
	DefaultTokenLimit     int
	TokenWarnPercent      int
	TokenCriticalPercent  int
	TokenExhaustedPercent int
	TokenAlertCron        string

	// SMTP Configuration (escalation email destinations)
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Escalation webhook dispatch
	WebhookTimeout int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/helpninja"),
		DBName:       getEnv("DB_NAME", "helpninja"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		AppEnv:       getEnv("APP_ENV", "development"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB upload cap
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,text/plain,text/markdown,text/html,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"), ","),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:   getEnv("GEMINI_TIER", "free"),

		EmbeddingsModel:  getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 900),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 150),

		VectorSearchEnabled: getEnvBool("MONGODB_VECTOR_ENABLED", false),
		VectorIndexName:     getEnv("MONGODB_VECTOR_INDEX", "document_chunks_vector"),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// JWT Token Secrets
		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),
		JWTExpiresIn:  getEnv("JWT_EXPIRES_IN", "24h"),

		WidgetAllowUnverifiedSites: getEnvBool("WIDGET_ALLOW_UNVERIFIED_SITES", false),

		// Crawler
		CrawlMaxPages:    getEnvInt("CRAWL_MAX_PAGES", 200),
		CrawlMaxDepth:    getEnvInt("CRAWL_MAX_DEPTH", 3),
		CrawlUserAgent:   getEnv("CRAWL_USER_AGENT", "helpNINJA-crawler/1.0"),
		RecrawlCron:      getEnv("RECRAWL_CRON", "0 3 * * *"),
		CrawlJSRendering: getEnvBool("CRAWL_JS_RENDERING", false),

		// Token usage alerts
		DefaultTokenLimit:     getEnvInt("DEFAULT_TOKEN_LIMIT", 100000),
		TokenWarnPercent:      getEnvInt("TOKEN_WARN_PERCENT", 80),
		TokenCriticalPercent:  getEnvInt("TOKEN_CRITICAL_PERCENT", 95),
		TokenExhaustedPercent: getEnvInt("TOKEN_EXHAUSTED_PERCENT", 100),
		TokenAlertCron:        getEnv("TOKEN_ALERT_CRON", "*/15 * * * *"),

		// SMTP Configuration
		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),

		WebhookTimeout: getEnvInt("WEBHOOK_TIMEOUT", 10),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("REFRESH_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
