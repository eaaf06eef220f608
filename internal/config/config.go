package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Channel      string
	PollInterval time.Duration
	Cooldown     time.Duration

	// Upstream feed gateway.
	FeedGatewayURL   string
	FeedTimeout      time.Duration
	FeedHistoryLimit int
	RPCMaxRetries    int
	RPCRatePerSec    int

	// Downstream speech socket.
	SocketEndpoint           string
	SocketInsecureSkipVerify bool
	ReconnectDelay           time.Duration
	DeliveryRetryDelay       time.Duration
	DeliveryAttempts         int

	// Optional alert mirror; disabled when KafkaBrokers is empty.
	KafkaBrokers    []string
	KafkaAlertTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// KafkaEnabled reports whether the alert mirror is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present;
// variables already set in the environment take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Channel:          strings.TrimPrefix(strings.TrimSpace(os.Getenv("CHANNEL")), "@"),
		SocketEndpoint:   strings.TrimSpace(os.Getenv("SOCKET_ENDPOINT")),
		FeedGatewayURL:   sharedcfg.EnvOrDefault("FEED_GATEWAY_URL", "http://localhost:8081"),
		KafkaAlertTopic:  sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "siren-alerts"),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		FeedHistoryLimit: 50,
		DeliveryAttempts: 3,
		RPCMaxRetries:    10,
		RPCRatePerSec:    5,
	}

	durations := []struct {
		name string
		def  string
		dst  *time.Duration
	}{
		{"POLL_INTERVAL", "3s", &cfg.PollInterval},
		{"COOLDOWN", "3m", &cfg.Cooldown},
		{"FEED_TIMEOUT", "10s", &cfg.FeedTimeout},
		{"RECONNECT_DELAY", "5s", &cfg.ReconnectDelay},
		{"DELIVERY_RETRY_DELAY", "2s", &cfg.DeliveryRetryDelay},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.name, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.FeedHistoryLimit, err = parseInt("FEED_HISTORY_LIMIT", cfg.FeedHistoryLimit, 1, 100); err != nil {
		return nil, err
	}
	if cfg.DeliveryAttempts, err = parseInt("DELIVERY_ATTEMPTS", cfg.DeliveryAttempts, 1, 10); err != nil {
		return nil, err
	}
	if cfg.RPCMaxRetries, err = parseInt("RPC_MAX_RETRIES", cfg.RPCMaxRetries, 0, 1000); err != nil {
		return nil, err
	}
	if cfg.RPCRatePerSec, err = parseInt("RPC_RATE_PER_SEC", cfg.RPCRatePerSec, 0, 1000); err != nil {
		return nil, err
	}

	if v := os.Getenv("SOCKET_INSECURE_SKIP_VERIFY"); v != "" {
		cfg.SocketInsecureSkipVerify = v == "true"
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Channel == "" {
		return errors.New("CHANNEL is required")
	}
	if c.SocketEndpoint == "" {
		return errors.New("SOCKET_ENDPOINT is required")
	}
	u, err := url.Parse(c.SocketEndpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return errors.New("SOCKET_ENDPOINT must be a ws:// or wss:// URL")
	}
	u, err = url.Parse(c.FeedGatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("FEED_GATEWAY_URL must be an http:// or https:// URL")
	}
	if c.KafkaEnabled() && c.KafkaAlertTopic == "" {
		return errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", name)
	}
	return d, nil
}

func parseInt(name string, def, lo, hi int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}
