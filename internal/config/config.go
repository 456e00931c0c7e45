package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for the optional MinIO mirror.
// An empty Endpoint disables mirroring.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object key, e.g. "portal/".
	Prefix string
}

// Enabled reports whether a mirror endpoint is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// UploadConfig controls where accepted files land and how they are served.
type UploadConfig struct {
	// PublicRoot is the filesystem root under which every category directory is created.
	PublicRoot string
	// PublicURLPrefix is the URL prefix the public root is served under.
	PublicURLPrefix string
	// BodyLimitBytes caps the whole multipart request; per-category ceilings are enforced by the gate.
	BodyLimitBytes int
	// StaleTempAge is how old a leftover temp file must be before the sweeper removes it.
	StaleTempAge time.Duration
}

// CompressionConfig holds the compression stage settings.
type CompressionConfig struct {
	MaxImageDimension int
	JPEGQuality       int
	GhostscriptPath   string
	PDFTimeout        time.Duration
	// BestEffort keeps an upload when compression fails instead of failing the request.
	BestEffort bool
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret        string
	AccessCookieName string
}

// LogConfig holds logging settings.
type LogConfig struct {
	SentryDSN string
	Timezone  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	AppEnv      string
	Port        string
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Upload      UploadConfig
	Compression CompressionConfig
	Auth        AuthConfig
	Log         LogConfig
}

// IsDev reports whether the app runs in a development environment.
func (c *AppConfig) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

// Location returns the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	if c.Log.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Log.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		AppEnv:  getEnv("APP_ENV", "production"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			Prefix:    getEnv("MINIO_PREFIX", ""),
		},
		Upload: UploadConfig{
			PublicRoot:      getEnv("PUBLIC_ROOT", "public"),
			PublicURLPrefix: getEnv("PUBLIC_URL_PREFIX", "/public"),
			BodyLimitBytes:  getEnvInt("BODY_LIMIT_BYTES", 21<<20),
			StaleTempAge:    getEnvDuration("STALE_TEMP_AGE", time.Hour),
		},
		Compression: CompressionConfig{
			MaxImageDimension: getEnvInt("IMAGE_MAX_DIMENSION", 2048),
			JPEGQuality:       getEnvInt("JPEG_QUALITY", 80),
			GhostscriptPath:   getEnv("GHOSTSCRIPT_PATH", ""),
			PDFTimeout:        getEnvDuration("PDF_COMPRESS_TIMEOUT", 30*time.Second),
			BestEffort:        getEnvBool("COMPRESSION_BEST_EFFORT", false),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			AccessCookieName: getEnv("ACCESS_COOKIE_NAME", "accessToken"),
		},
		Log: LogConfig{
			SentryDSN: getEnv("SENTRY_DSN", ""),
			Timezone:  getEnv("LOG_TIMEZONE", "UTC"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}
