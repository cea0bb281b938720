package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	CORSAllowedOrigins []string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	DataUploadDir   string
	ImageUploadDir  string
	MaxDatasetBytes int64
	MaxImageBytes   int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadRatePerSecond float64
	UploadBurst         int

	Gemini GeminiConfig
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
}

// Enabled reports whether an API key was provided.
func (g GeminiConfig) Enabled() bool {
	return strings.TrimSpace(g.APIKey) != ""
}

const (
	defaultMaxDatasetBytes = 50 * 1024 * 1024
	defaultMaxImageBytes   = 10 * 1024 * 1024
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:             getenv("APP_SERVICE", "oceandata"),
		AppVersion:          getenv("APP_VERSION", "0.1.0"),
		Environment:         getenv("ENVIRONMENT", "development"),
		HTTPAddr:            getenv("HTTP_ADDR", ":3000"),
		CORSAllowedOrigins:  getenvList("CORS_ALLOWED_ORIGINS"),
		OTLPEndpoint:        getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:              strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBHost:              getenv("DATABASE_HOST", "localhost"),
		DBPort:              getenv("DATABASE_PORT", "5432"),
		DBName:              getenv("DATABASE_NAME", "oceandata"),
		DBUser:              getenv("DATABASE_USER", "postgres"),
		DBPassword:          getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:           getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:        getenv("DATABASE_SQLITE_PATH", "marine_species.db"),
		DBMaxIdleConn:       getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:       getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:   getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:   getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DataUploadDir:       getenv("DATA_UPLOAD_DIR", "./data_uploads"),
		ImageUploadDir:      getenv("IMAGE_UPLOAD_DIR", "./uploads"),
		MaxDatasetBytes:     getenvInt64("MAX_DATASET_BYTES", defaultMaxDatasetBytes),
		MaxImageBytes:       getenvInt64("MAX_IMAGE_BYTES", defaultMaxImageBytes),
		RedisAddr:           strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		UploadRatePerSecond: getenvFloat("UPLOAD_RATE_PER_SECOND", 0.2),
		UploadBurst:         getenvInt("UPLOAD_BURST", 5),
		Gemini: GeminiConfig{
			APIKey:     strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
			Model:      getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL:    strings.TrimRight(getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"), "/"),
			MaxRetries: getenvInt("GEMINI_MAX_RETRIES", 3),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
