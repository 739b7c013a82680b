package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Marketplace endpoints
	BaseURL    string
	GraphQLURL string

	// Fetch strategies
	CurlBin         string
	FlareSolverrURL string
	ProxyURL        string
	RateLimitBlock  time.Duration

	// Search defaults
	Timeout     time.Duration
	Limit       int
	Concurrency int

	// Memcache configuration
	MemcacheAddr   string
	DetailCacheTTL time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Watch mode
	WatchInterval time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		BaseURL:              getEnv("MARKETPLACE_BASE_URL", "https://www.facebook.com"),
		GraphQLURL:           getEnv("GRAPHQL_URL", "https://www.facebook.com/api/graphql/"),
		CurlBin:              getEnv("CURL_BIN", "curl"),
		FlareSolverrURL:      getEnv("FLARESOLVERR_URL", ""),
		ProxyURL:             getEnv("HTTP_PROXY_URL", ""),
		RateLimitBlock:       time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		Timeout:              time.Duration(getEnvInt("SEARCH_TIMEOUT_MS", 15000)) * time.Millisecond,
		Limit:                getEnvInt("SEARCH_LIMIT", 20),
		Concurrency:          getEnvInt("SEARCH_CONCURRENCY", 5),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		DetailCacheTTL:       time.Duration(getEnvInt("DETAIL_CACHE_TTL_SECONDS", 3600)) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "marketplace"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		WatchInterval:        time.Duration(getEnvInt("WATCH_INTERVAL_SECONDS", 300)) * time.Second,
		Environment:          getEnv("MARKETSEARCH_ENVIRONMENT", "development"),
	}
}

// Validate checks that numeric settings are usable
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("MARKETPLACE_BASE_URL must not be empty")
	}
	if c.GraphQLURL == "" {
		return fmt.Errorf("GRAPHQL_URL must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("SEARCH_TIMEOUT_MS must be positive, got %v", c.Timeout)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be positive, got %d", c.Limit)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("SEARCH_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.RedisStreamCount <= 0 {
		return fmt.Errorf("REDIS_STREAM_COUNT must be positive, got %d", c.RedisStreamCount)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL_SECONDS must be positive, got %v", c.WatchInterval)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable, falling back on parse errors
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
