package config

import "time"

type HTTPConfig struct {
	Port            int
	ServiceName     string
	ShutdownTimeout time.Duration
}

func NewHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Port:            getIntEnv("HTTP_PORT", 5003),
		ServiceName:     getEnv("SERVICE_NAME", "notifier"),
		ShutdownTimeout: getSecondsEnv("SHUTDOWN_TIMEOUT_SEC", 5),
	}
}

// PushCfg configures the client push channel transports
type PushCfg struct {
	TCPAddress      string
	WriteTimeout    time.Duration
	JoinTimeout     time.Duration
	AllowedOrigins  []string
	MaxMessageBytes int64
}

func NewPushCfg() *PushCfg {
	return &PushCfg{
		TCPAddress:      getEnv("PUSH_TCP_ADDR", ":9003"),
		WriteTimeout:    getSecondsEnv("PUSH_WRITE_TIMEOUT_SEC", 5),
		JoinTimeout:     getSecondsEnv("PUSH_JOIN_TIMEOUT_SEC", 30),
		AllowedOrigins:  splitList(getEnv("PUSH_ALLOWED_ORIGINS", "*")),
		MaxMessageBytes: int64(getIntEnv("PUSH_MAX_MESSAGE_BYTES", 64*1024)),
	}
}
