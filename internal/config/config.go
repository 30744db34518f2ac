package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Secret            string
	DatabasePath      string
	HTTPPort          string
	LowStockThreshold int64
	LockWaitMillis    int64
}

// Load reads configuration from environment variables with reasonable
// defaults. A .env file is honored when present.
func Load() Config {
	_ = godotenv.Load()

	secret := getEnv("SECRET", "dev_secret")
	port := getEnv("HTTP_PORT", "8080")
	dbPath := getEnv("DATABASE_PATH", "meditrax.db")

	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	threshold := getInt("LOW_STOCK_THRESHOLD", 10)
	if threshold < 0 {
		threshold = 10
	}

	lockWait := getInt("LOCK_WAIT_MS", 2000)
	if lockWait <= 0 {
		lockWait = 2000
	}

	return Config{
		Secret:            secret,
		DatabasePath:      dbPath,
		HTTPPort:          port,
		LowStockThreshold: threshold,
		LockWaitMillis:    lockWait,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("invalid %s value %q, defaulting to %d", key, v, def)
		return def
	}
	return n
}
