package config

import "os"

type AppConfig struct {
	DebugMode      bool
	LogLevel       string
	HTTPConfig     *HTTPConfig
	PushCfg        *PushCfg
	RabbitMQConfig *RabbitMQConfig
	DispatchCfg    *DispatchCfg
	ListenerCfg    *ListenerCfg
	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
	JwtConfig      *JwtConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HTTPConfig:     NewHTTPConfig(),
		PushCfg:        NewPushCfg(),
		RabbitMQConfig: NewRabbitMQConfig(),
		DispatchCfg:    NewDispatchCfg(),
		ListenerCfg:    NewListenerCfg(),
		RedisConfig:    NewRedisConfig(),
		PostgresConfig: NewPostgresConfig(),
		JwtConfig:      NewJwtConfig(),
	}
}
