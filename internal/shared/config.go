package shared

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	DisplayTZ   string
	AppleBase   string
	GoogleBase  string
	OutboundRPS int
	Workers     int
	TargetsFile string
	ExportTTL   time.Duration

	DefaultMaxCount int
	DefaultCountry  string
	DefaultLang     string
}

// Load reads the environment. MYSQL_DSN and REDIS_ADDR have no defaults:
// an empty value turns the archive or the export store off.
func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	return Config{
		AppEnv:          env("APP_ENV", "prod"),
		LogLevel:        env("LOG_LEVEL", "info"),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ":9100"),
		MySQLDSN:        env("MYSQL_DSN", ""),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		DisplayTZ:       env("DISPLAY_TZ", "Asia/Seoul"),
		AppleBase:       env("APPSTORE_BASE_URL", "https://itunes.apple.com"),
		GoogleBase:      env("GOOGLEPLAY_BASE_URL", "https://play.google.com"),
		OutboundRPS:     atoi("OUTBOUND_RPS", 5),
		Workers:         atoi("INGEST_WORKERS", 4),
		TargetsFile:     env("INGEST_TARGETS_FILE", "targets.yaml"),
		ExportTTL:       time.Duration(atoi("EXPORT_TTL_SECONDS", 86400)) * time.Second,
		DefaultMaxCount: atoi("DEFAULT_MAX_COUNT", 200),
		DefaultCountry:  env("DEFAULT_COUNTRY", "kr"),
		DefaultLang:     env("DEFAULT_LANG", "ko"),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
