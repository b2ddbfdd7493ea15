package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	StoreDriver  string // "mongo" or "sqlite"
	MongoURI     string
	MongoDB      string
	SQLitePath   string
	RedisURI     string // empty disables the caches
	JWTSecret    string
	TokenTTL     time.Duration
	RulesPath    string // empty uses the embedded room table
	TickInterval time.Duration
	CORSOrigins  []string
	CookieSecure bool
}

// Load reads the environment, after merging an optional .env file
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not read .env: %v", err)
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "codingescape"),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/codingescape.db"),
		RedisURI:     os.Getenv("REDIS_URI"),
		JWTSecret:    getEnv("JWT_SECRET", "super-secret-key-change-in-production"),
		TokenTTL:     getDuration("TOKEN_TTL", 7*24*time.Hour),
		RulesPath:    os.Getenv("RULES_PATH"),
		TickInterval: getDuration("TICK_INTERVAL", time.Second),
		CORSOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		CookieSecure: getBool("COOKIE_SECURE", false),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, val, defaultVal)
		return defaultVal
	}
	return d
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
