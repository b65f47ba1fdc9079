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
	Database  DatabaseConfig
	Scraper   ScraperConfig
	Scoring   ScoringConfig
	Commute   CommuteConfig
	Scheduler SchedulerConfig
	Archive   ArchiveConfig
	VPN       VPNConfig

	OutputDir          string
	OpsDBPath          string
	AutoDeleteDelisted bool
	LogLevel           string

	// Areas maps university codes to portal search slugs, loaded from
	// config/areas/*.yaml.
	Areas map[string][]string
}

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Database string
	Port     int
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Database)
}

type ScraperConfig struct {
	MaxPages          int
	PageDelay         time.Duration
	RequestDelay      time.Duration
	ProfileResetEvery int
	MaxBlockRetries   int
	Headless          bool
	ProfileDir        string
	ChunkSize         int
	ProxyURL          string
}

type ScoringConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	NumCalls      int
	ScoresPerCall int
	Workers       int
	Temperature   float64
	MaxTokens     int
}

// Enabled reports whether the scoring stage has credentials.
func (c ScoringConfig) Enabled() bool { return c.APIKey != "" }

type CommuteConfig struct {
	APIKey  string
	Workers int
	Delay   time.Duration
}

func (c CommuteConfig) Enabled() bool { return c.APIKey != "" }

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (a ArchiveConfig) Enabled() bool { return a.Bucket != "" }

type VPNConfig struct {
	AutoConnect bool
	Regions     []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: getEnv("DB_DATABASE", "qrent"),
			Port:     getEnvInt("DB_PORT", 5432),
		},
		Scraper: ScraperConfig{
			MaxPages:          getEnvInt("SCRAPE_MAX_PAGES", 7),
			PageDelay:         getEnvDuration("SCRAPE_PAGE_DELAY", 5*time.Second),
			RequestDelay:      getEnvDuration("SCRAPE_REQUEST_DELAY", 3*time.Second),
			ProfileResetEvery: getEnvInt("SCRAPE_PROFILE_RESET_EVERY", 30),
			MaxBlockRetries:   getEnvInt("SCRAPE_MAX_BLOCK_RETRIES", 3),
			Headless:          os.Getenv("HEADLESS") == "true",
			ProfileDir:        getEnv("BROWSER_PROFILE_DIR", ".browser-profile"),
			ChunkSize:         getEnvInt("SCRAPE_CHUNK_SIZE", 100),
			ProxyURL:          os.Getenv("SCRAPE_PROXY_URL"),
		},
		Scoring: ScoringConfig{
			APIKey:        firstEnv("PROPERTY_RATING_API_KEY", "DASHSCOPE_API_KEY"),
			BaseURL:       getEnv("SCORING_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
			Model:         getEnv("SCORING_MODEL", "qwen-plus-1220"),
			NumCalls:      2,
			ScoresPerCall: 4,
			Workers:       getEnvInt("SCORING_WORKERS", 2),
			Temperature:   0.7,
			MaxTokens:     150,
		},
		Commute: CommuteConfig{
			APIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
			Workers: getEnvInt("COMMUTE_WORKERS", 5),
			Delay:   getEnvDuration("COMMUTE_REQUEST_DELAY", 1100*time.Millisecond),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_S3_BUCKET"),
			Region:          getEnv("ARCHIVE_S3_REGION", "ap-southeast-2"),
			Endpoint:        os.Getenv("ARCHIVE_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_S3_SECRET_ACCESS_KEY"),
		},
		VPN: VPNConfig{
			AutoConnect: os.Getenv("VPN_AUTOCONNECT") == "true",
			Regions:     splitCSV(os.Getenv("VPN_REGIONS")),
		},
		OutputDir:          getEnv("OUTPUT_DIR", "./output"),
		OpsDBPath:          getEnv("OPS_DB_PATH", "rentradar.db"),
		AutoDeleteDelisted: os.Getenv("AUTO_DELETE_DELISTED") == "true",
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	areas, err := LoadAreas("config/areas")
	if err != nil {
		return nil, err
	}
	cfg.Areas = areas

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
