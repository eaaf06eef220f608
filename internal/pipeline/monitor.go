package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/siren-relay/internal/domain"
	"github.com/couchcryptid/siren-relay/internal/observability"
	"github.com/couchcryptid/siren-relay/internal/timeutil"
	"github.com/jonboulle/clockwork"
)

const publishTimeout = 5 * time.Second

// FeedReader reads the watched channel.
type FeedReader interface {
	ResolvePeer(ctx context.Context, channel string) (domain.Peer, error)
	LatestMessage(ctx context.Context, peer domain.Peer) (domain.Message, error)
	NewMessages(ctx context.Context, peer domain.Peer, watermark int64) ([]domain.Message, error)
}

// Notifier delivers payloads to the downstream listener.
type Notifier interface {
	EnsureConnected(ctx context.Context) domain.ConnectionState
	Deliver(ctx context.Context, payload domain.NotificationPayload) bool
}

// AlertPublisher mirrors notification decisions to an event stream.
type AlertPublisher interface {
	Publish(ctx context.Context, event domain.AlertEvent) error
}

// Settings configures a Monitor.
type Settings struct {
	Channel      string
	PollInterval time.Duration
	Clock        clockwork.Clock
}

// Monitor runs the fetch-classify-deliver loop for one channel.
type Monitor struct {
	feed         FeedReader
	notifier     Notifier
	limiter      *domain.AlarmLimiter
	publisher    AlertPublisher
	channel      string
	pollInterval time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics

	peer      domain.Peer
	watermark atomic.Int64
	ready     atomic.Bool // baseline watermark set
	connected atomic.Bool // socket open at least once
}

// New creates a Monitor. publisher may be nil.
func New(feed FeedReader, notifier Notifier, limiter *domain.AlarmLimiter, publisher AlertPublisher,
	s Settings, logger *slog.Logger, metrics *observability.Metrics,
) *Monitor {
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		feed:         feed,
		notifier:     notifier,
		limiter:      limiter,
		publisher:    publisher,
		channel:      s.Channel,
		pollInterval: s.PollInterval,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
	}
}

// Watermark returns the highest message id processed so far.
func (m *Monitor) Watermark() int64 {
	return m.watermark.Load()
}

// CheckReadiness returns nil once the baseline is known and the downstream
// socket has been open at least once.
func (m *Monitor) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("channel baseline not fetched yet")
	}
	if !m.connected.Load() {
		return errors.New("notification socket has not connected yet")
	}
	return nil
}

// Setup resolves the channel and takes its newest message as the baseline, so
// announcements posted before startup are never relayed.
func (m *Monitor) Setup(ctx context.Context) error {
	peer, err := m.feed.ResolvePeer(ctx, m.channel)
	if err != nil {
		return fmt.Errorf("resolve channel %q: %w", m.channel, err)
	}
	m.logger.Info("channel resolved", "channel", m.channel, "peer_id", peer.ID, "title", peer.Title)

	latest, err := m.feed.LatestMessage(ctx, peer)
	if err != nil {
		return fmt.Errorf("fetch baseline message: %w", err)
	}

	m.peer = peer
	m.advance(latest.ID)
	m.ready.Store(true)
	m.logger.Info("baseline message", "message_id", latest.ID, "text", latest.Text)
	m.logger.Info("waiting for new messages")
	return nil
}

// Run polls the channel until ctx is cancelled. Setup must succeed first.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.ready.Load() {
		return errors.New("monitor not set up")
	}
	m.logger.Info("monitor started", "channel", m.channel, "poll_interval", m.pollInterval)
	m.metrics.RelayRunning.Set(1)
	defer m.metrics.RelayRunning.Set(0)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping", "reason", ctx.Err(), "watermark", m.Watermark())
			return nil
		default:
		}
		m.cycle(ctx)
	}
}

// cycle runs one connect-fetch-process pass.
func (m *Monitor) cycle(ctx context.Context) {
	if m.notifier.EnsureConnected(ctx) != domain.StateOpen {
		return
	}
	m.connected.Store(true)

	m.metrics.Polls.Inc()
	messages, err := m.feed.NewMessages(ctx, m.peer, m.Watermark())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.metrics.FetchErrors.Inc()
		timeutil.Sleep(ctx, m.clock, m.pollInterval)
		return
	}
	if len(messages) == 0 {
		timeutil.Sleep(ctx, m.clock, m.pollInterval)
		return
	}

	m.process(ctx, messages)
}

// process classifies a non-empty batch and delivers at most one notification.
func (m *Monitor) process(ctx context.Context, messages []domain.Message) {
	m.metrics.MessagesFetched.Add(float64(len(messages)))

	c := domain.Classify(messages)
	m.advance(domain.MaxID(messages))

	kind, ok := c.Kind()
	if !ok {
		m.metrics.Classifications.WithLabelValues("none").Inc()
		m.logger.Debug("no alert keywords in batch", "messages", len(messages), "watermark", m.Watermark())
		return
	}
	m.metrics.Classifications.WithLabelValues(string(kind)).Inc()

	now := m.clock.Now()
	if kind == domain.TemplateAlarm && !m.limiter.ShouldEmit(c.Category, now) {
		m.metrics.AlarmsSuppressed.WithLabelValues(string(c.Category)).Inc()
		m.logger.Info("alarm suppressed within cooldown",
			"category", c.Category,
			"last_alarm_at", m.limiter.LastAlarmAt(c.Category),
			"cooldown", m.limiter.Cooldown(),
		)
		return
	}

	m.logger.Info("relaying notification", "kind", kind, "category", c.Category, "watermark", m.Watermark())
	delivered := m.notifier.Deliver(ctx, domain.Render(kind, c.Category))

	outcome := "sent"
	if !delivered {
		outcome = "dropped"
	}
	m.metrics.Deliveries.WithLabelValues(string(kind), outcome).Inc()

	if kind == domain.TemplateAlarm && delivered {
		m.limiter.Record(c.Category, now)
	}

	m.publish(ctx, domain.AlertEvent{
		Kind:      kind,
		Category:  c.Category,
		Watermark: m.Watermark(),
		Delivered: delivered,
		SentAt:    now,
	})
}

func (m *Monitor) publish(ctx context.Context, event domain.AlertEvent) {
	if m.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := m.publisher.Publish(pubCtx, event); err != nil {
		m.logger.Warn("alert publish failed", "kind", event.Kind, "category", event.Category, "error", err)
	}
}

// advance moves the watermark forward; it never decreases.
func (m *Monitor) advance(id int64) {
	for {
		cur := m.watermark.Load()
		if id <= cur {
			return
		}
		if m.watermark.CompareAndSwap(cur, id) {
			m.metrics.Watermark.Set(float64(id))
			return
		}
	}
}
