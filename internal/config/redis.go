package config

import "time"

type RedisConfig struct {
	DB              int
	Url             string
	Password        string
	SessionTTL      time.Duration
	RefreshInterval time.Duration
	CleanupInterval time.Duration
}

// NewRedisConfig reads the Redis settings. Presence is refreshed three times
// per TTL unless SESSION_PRESENCE_REFRESH_SEC says otherwise.
func NewRedisConfig() *RedisConfig {
	cfg := &RedisConfig{
		DB:              getIntEnv("REDIS_DB", 0),
		Url:             getEnv("REDIS_ADDR", "localhost:6379"),
		Password:        getEnv("REDIS_PASSWORD", ""),
		SessionTTL:      getSecondsEnv("SESSION_PRESENCE_TTL_SEC", 300),
		RefreshInterval: getSecondsEnv("SESSION_PRESENCE_REFRESH_SEC", 0),
		CleanupInterval: getSecondsEnv("SESSION_CLEANUP_INTERVAL_SEC", 60),
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if cfg.RefreshInterval <= 0 || cfg.RefreshInterval >= ttl {
		cfg.RefreshInterval = ttl / 3
	}
	return cfg
}
