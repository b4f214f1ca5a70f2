package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port          string
	GinMode       string
	LogLevel      string
	DBDriver      string
	DBDSN         string
	SessionSecret []byte
	AllowedOrigin string

	RateLimitRPS    float64
	RateLimitBurst  int
	LoginRatePerMin int
	AdminEmail      string
	AdminPassword   string
	AdminName       string
}

// Load -> baca .env (jika ada) lalu environment variable dengan default
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("no .env file loaded: %v", err)
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		DBDSN:           getEnv("DB_DSN", "cafe_pos.db"),
		SessionSecret:   []byte(getEnv("SESSION_SECRET", "")),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", "*"),
		RateLimitRPS:    getFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:  getInt("RATE_LIMIT_BURST", 100),
		LoginRatePerMin: getInt("LOGIN_RATE_PER_MIN", 10),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
		AdminName:       getEnv("ADMIN_NAME", "Administrator"),
	}

	if len(cfg.SessionSecret) == 0 {
		logrus.Warn("SESSION_SECRET not set, using development secret")
		cfg.SessionSecret = []byte("dev-session-secret")
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return n
}

func getFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultVal
	}
	return f
}
