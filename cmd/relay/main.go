package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/siren-relay/internal/adapter/feed"
	"github.com/couchcryptid/siren-relay/internal/adapter/gateway"
	httpadapter "github.com/couchcryptid/siren-relay/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/siren-relay/internal/adapter/kafka"
	"github.com/couchcryptid/siren-relay/internal/adapter/relay"
	"github.com/couchcryptid/siren-relay/internal/adapter/rpc"
	"github.com/couchcryptid/siren-relay/internal/config"
	"github.com/couchcryptid/siren-relay/internal/domain"
	"github.com/couchcryptid/siren-relay/internal/observability"
	"github.com/couchcryptid/siren-relay/internal/pipeline"
)

type relayStatus struct {
	Channel    string                              `json:"channel"`
	Watermark  int64                               `json:"watermark"`
	Socket     string                              `json:"socket"`
	Cooldown   string                              `json:"cooldown"`
	LastAlarms map[domain.DangerCategory]time.Time `json:"last_alarms"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := gateway.NewClient(cfg.FeedGatewayURL, cfg.FeedTimeout, logger)
	caller := rpc.NewCaller(client, rpc.Settings{
		MaxRetries: cfg.RPCMaxRetries,
		RatePerSec: cfg.RPCRatePerSec,
	}, logger, metrics)
	accessor := feed.NewAccessor(caller, cfg.FeedHistoryLimit, logger)

	notifier := relay.New(relay.Settings{
		Endpoint:           cfg.SocketEndpoint,
		InsecureSkipVerify: cfg.SocketInsecureSkipVerify,
		ReconnectDelay:     cfg.ReconnectDelay,
		RetryDelay:         cfg.DeliveryRetryDelay,
		Attempts:           cfg.DeliveryAttempts,
	}, logger, metrics)

	// Optional alert mirror (enabled via KAFKA_BROKERS).
	var publisher pipeline.AlertPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled() {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("kafka alert mirror enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka alert mirror disabled")
	}

	limiter := domain.NewAlarmLimiter(cfg.Cooldown)
	monitor := pipeline.New(accessor, notifier, limiter, publisher, pipeline.Settings{
		Channel:      cfg.Channel,
		PollInterval: cfg.PollInterval,
	}, logger, metrics)

	status := func() any {
		last := make(map[domain.DangerCategory]time.Time)
		for _, c := range domain.Categories {
			if t := limiter.LastAlarmAt(c); !t.IsZero() {
				last[c] = t
			}
		}
		return relayStatus{
			Channel:    cfg.Channel,
			Watermark:  monitor.Watermark(),
			Socket:     notifier.State().String(),
			Cooldown:   limiter.Cooldown().String(),
			LastAlarms: last,
		}
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, monitor, status, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := monitor.Setup(ctx); err != nil {
		logger.Error("failed to initialise channel monitor", "error", err)
		os.Exit(1)
	}
	if notifier.EnsureConnected(ctx) != domain.StateOpen {
		logger.Error("failed to connect notification socket", "endpoint", cfg.SocketEndpoint)
		os.Exit(1)
	}

	// Start poll loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := monitor.Run(ctx); err != nil {
			logger.Error("monitor error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("monitor did not stop before shutdown timeout")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := notifier.Close(); err != nil {
		logger.Error("socket close error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
