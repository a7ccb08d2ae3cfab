package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	Store StoreConfig
	Redis RedisConfig
	Media MediaConfig

	CSRFKey      []byte
	SessionKey   []byte
	CookieDomain string
	CookieSecure bool

	// SiteURL is the public origin used for canonical product links in order messages.
	SiteURL       string
	OrderPrefix   string
	OverridesPath string
}

type StoreConfig struct {
	Driver   string `json:"driver" yaml:"driver"` // "sqlite" or "mongo"
	DBPath   string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	MongoURI string `json:"mongo_uri,omitempty" yaml:"mongo_uri,omitempty"`
	MongoDB  string `json:"mongo_db,omitempty" yaml:"mongo_db,omitempty"`
}

type RedisConfig struct {
	Addr     string
	Password string
	CacheTTL time.Duration
}

// Enabled reports whether a Redis server was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type MediaConfig struct {
	CloudName     string
	UploadPreset  string
	APIBase       string
	Hosts         []string
	MaxWidth      int
	MaxHeight     int
	Quality       float64
	Format        string
	UploadWorkers int
	MaxUploadSize int64
}

const (
	DefaultCloudName    = "demo"
	DefaultUploadPreset = "ml_default"
)

func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8585"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),
		Store: StoreConfig{
			Driver:   getEnv("STORE_DRIVER", "sqlite"),
			DBPath:   getEnv("DB_PATH", "./luxestore.db"),
			MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:  getEnv("MONGO_DB_NAME", "luxestore"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", 15*time.Minute),
		},
		Media: MediaConfig{
			CloudName:     getEnv("CLOUDINARY_CLOUD_NAME", DefaultCloudName),
			UploadPreset:  getEnv("CLOUDINARY_UPLOAD_PRESET", DefaultUploadPreset),
			APIBase:       getEnv("CLOUDINARY_API_BASE", "https://api.cloudinary.com"),
			Hosts:         splitList(getEnv("MEDIA_HOSTS", "res.cloudinary.com,cloudinary.com")),
			MaxWidth:      getEnvInt("IMAGE_MAX_WIDTH", 1600),
			MaxHeight:     getEnvInt("IMAGE_MAX_HEIGHT", 1600),
			Quality:       getEnvFloat("IMAGE_QUALITY", 0.82),
			Format:        getEnv("IMAGE_FORMAT", "webp"),
			UploadWorkers: getEnvInt("UPLOAD_WORKERS", 4),
			MaxUploadSize: int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		},
		CookieDomain:  getEnv("COOKIE_DOMAIN", ""),
		CookieSecure:  getEnv("COOKIE_SECURE", "false") == "true",
		SiteURL:       strings.TrimRight(getEnv("SITE_URL", "https://luxre.vercel.app"), "/"),
		OrderPrefix:   getEnv("ORDER_PREFIX", "LUXRE"),
		OverridesPath: getEnv("CONFIG_OVERRIDES", "./overrides.yaml"),
	}

	cfg.CSRFKey = loadKey("CSRF_KEY")
	cfg.SessionKey = loadKey("SESSION_KEY")

	// Make sure port is valid
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT environment variable. Falling back to default.", "PORT", os.Getenv("PORT"))
		cfg.Port = "8585"
	}

	ov, err := ReadOverrides(cfg.OverridesPath)
	if err != nil {
		return nil, err
	}
	ov.Apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Media.MaxWidth <= 0 || c.Media.MaxHeight <= 0 {
		return fmt.Errorf("image bounds must be positive, got %dx%d", c.Media.MaxWidth, c.Media.MaxHeight)
	}
	if c.Media.Quality <= 0 || c.Media.Quality > 1 {
		return fmt.Errorf("IMAGE_QUALITY must be in (0,1], got %v", c.Media.Quality)
	}
	if c.Media.UploadWorkers < 1 {
		c.Media.UploadWorkers = 1
	}
	return nil
}

func loadKey(name string) []byte {
	keyStr := os.Getenv(name)
	if keyStr == "" {
		slog.Warn(name + " environment variable not set. Generating a random key for development. PLEASE SET " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	decodedKey, err := base64.StdEncoding.DecodeString(keyStr)
	if err != nil || len(decodedKey) < 32 {
		slog.Warn(name + " is invalid or too short (min 32 bytes). Generating a random key for development.")
		return generateRandomBytes(32)
	}
	return decodedKey
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// generateRandomBytes generates a random byte slice of specified length
func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		slog.Error("Failed to read random bytes", "error", err)
		fallbackKey := "fallback-insecure-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		paddedKey := make([]byte, n)
		copy(paddedKey, fallbackKey)
		return paddedKey
	}
	return b
}
