package config

import (
	"fmt"
	"net/url"
	"time"
)

type RabbitMQConfig struct {
	Url          string
	CodeQueue    string
	ResultsQueue string
}

// NewRabbitMQConfig builds the broker settings. RABBITMQ_URI wins over the
// host/port/user triple.
func NewRabbitMQConfig() *RabbitMQConfig {
	uri := getEnv("RABBITMQ_URI", "")
	if uri == "" {
		uri = (&url.URL{
			Scheme: "amqp",
			User:   url.UserPassword(getEnv("RABBITMQ_USER", "guest"), getEnv("RABBITMQ_PASSWORD", "guest")),
			Host:   fmt.Sprintf("%s:%d", getEnv("RABBITMQ_HOST", "localhost"), getIntEnv("RABBITMQ_PORT", 5672)),
			Path:   "/",
		}).String()
	}
	return &RabbitMQConfig{
		Url:          uri,
		CodeQueue:    getEnv("RABBITMQ_QUEUE_CODE_RUNNER", "code_runner_queue"),
		ResultsQueue: getEnv("RABBITMQ_QUEUE_RESULTS", "code_results_queue"),
	}
}

// DispatchCfg bounds how long a dispatch may block on an unreachable broker.
// MaxAttempts 0 retries forever; Timeout 0 means only the caller's context
// limits the wait.
type DispatchCfg struct {
	RetryDelay  time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

func NewDispatchCfg() *DispatchCfg {
	return &DispatchCfg{
		RetryDelay:  getSecondsEnv("DISPATCH_RETRY_DELAY_SEC", 5),
		MaxAttempts: getIntEnv("DISPATCH_MAX_ATTEMPTS", 0),
		Timeout:     getSecondsEnv("DISPATCH_TIMEOUT_SEC", 30),
	}
}

type ListenerCfg struct {
	Heartbeat          time.Duration
	ReconnectDelay     time.Duration
	MaxReconnects      int
	PrefetchCount      int
	RequeuePoison      bool
	DeadLetterExchange string
}

func NewListenerCfg() *ListenerCfg {
	return &ListenerCfg{
		Heartbeat:          getSecondsEnv("LISTENER_HEARTBEAT_SEC", 600),
		ReconnectDelay:     getSecondsEnv("LISTENER_RECONNECT_DELAY_SEC", 5),
		MaxReconnects:      getIntEnv("LISTENER_MAX_RECONNECTS", 0),
		PrefetchCount:      1,
		RequeuePoison:      getBoolEnv("LISTENER_REQUEUE_POISON", false),
		DeadLetterExchange: getEnv("RESULTS_DEAD_LETTER_EXCHANGE", ""),
	}
}
