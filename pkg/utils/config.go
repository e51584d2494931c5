package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// best-effort: a missing .env is fine
	_ = godotenv.Load()
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("BOARDHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("BOARDHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "boardhub"
	}

	hours := getEnvInt("BOARDHUB_JWT_TTL_HOURS", 24)

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: time.Duration(hours) * time.Hour,
	}
}

type CrawlConfig struct {
	BGGBaseURL    string
	BGGAPIBaseURL string
	MirrorBaseURL string
	QPS           int
	OutPath       string
}

func LoadCrawlConfig() CrawlConfig {
	return CrawlConfig{
		BGGBaseURL:    getEnv("BOARDHUB_BGG_BASE_URL", "https://boardgamegeek.com"),
		BGGAPIBaseURL: getEnv("BOARDHUB_BGG_API_BASE_URL", "https://api.geekdo.com"),
		MirrorBaseURL: getEnv("BOARDHUB_MIRROR_BASE_URL", "http://localhost:9000"),
		QPS:           getEnvInt("BOARDHUB_CRAWL_QPS", 3),
		OutPath:       getEnv("BOARDHUB_DATASET_PATH", "data/dataset.csv"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
