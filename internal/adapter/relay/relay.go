package relay

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/siren-relay/internal/domain"
	"github.com/couchcryptid/siren-relay/internal/observability"
	"github.com/couchcryptid/siren-relay/internal/timeutil"
	"github.com/jonboulle/clockwork"
	"nhooyr.io/websocket"
)

const defaultDialTimeout = 10 * time.Second

// Settings configures a Relay.
type Settings struct {
	Endpoint           string
	InsecureSkipVerify bool
	ReconnectDelay     time.Duration // wait after a failed dial
	RetryDelay         time.Duration // wait between delivery attempts
	Attempts           int
	DialTimeout        time.Duration
	Clock              clockwork.Clock
}

// Relay owns the downstream websocket. Reconnection is reactive: a dropped
// connection is only redialled by the next EnsureConnected.
type Relay struct {
	endpoint       string
	dialOpts       *websocket.DialOptions
	reconnectDelay time.Duration
	retryDelay     time.Duration
	attempts       int
	dialTimeout    time.Duration
	clock          clockwork.Clock
	logger         *slog.Logger
	metrics        *observability.Metrics

	mu    sync.Mutex
	conn  *websocket.Conn
	state atomic.Int32
	// opened is set after the first successful dial.
	opened atomic.Bool
}

// New creates a Relay. No connection is made until EnsureConnected.
func New(s Settings, logger *slog.Logger, metrics *observability.Metrics) *Relay {
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	dialTimeout := s.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var opts *websocket.DialOptions
	if s.InsecureSkipVerify {
		opts = &websocket.DialOptions{
			HTTPClient: &http.Client{
				Transport: &http.Transport{
					TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for self-signed endpoints
				},
			},
		}
	}

	r := &Relay{
		endpoint:       s.Endpoint,
		dialOpts:       opts,
		reconnectDelay: s.ReconnectDelay,
		retryDelay:     s.RetryDelay,
		attempts:       attempts,
		dialTimeout:    dialTimeout,
		clock:          clock,
		logger:         logger,
		metrics:        metrics,
	}
	r.state.Store(int32(domain.StateClosed))
	return r
}

// State reports the current connection state.
func (r *Relay) State() domain.ConnectionState {
	return domain.ConnectionState(r.state.Load())
}

// HasConnected reports whether the socket has been open at least once.
func (r *Relay) HasConnected() bool {
	return r.opened.Load()
}

// EnsureConnected dials the endpoint when the socket is not open. A failed
// dial is logged, followed by the reconnect delay, and reported as closed.
func (r *Relay) EnsureConnected(ctx context.Context) domain.ConnectionState {
	if r.State() == domain.StateOpen {
		return domain.StateOpen
	}

	r.state.Store(int32(domain.StateConnecting))
	dialCtx, cancel := context.WithTimeout(ctx, r.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, r.endpoint, r.dialOpts)
	cancel()
	if err != nil {
		r.state.Store(int32(domain.StateClosed))
		r.metrics.SocketConnects.WithLabelValues("error").Inc()
		r.logger.Error("socket connect failed", "endpoint", r.endpoint, "retry_in", r.reconnectDelay, "error", err)
		timeutil.Sleep(ctx, r.clock, r.reconnectDelay)
		return domain.StateClosed
	}

	r.mu.Lock()
	r.conn = conn
	r.state.Store(int32(domain.StateOpen))
	r.mu.Unlock()
	r.opened.Store(true)
	r.metrics.SocketConnects.WithLabelValues("success").Inc()
	r.logger.Info("socket connected", "endpoint", r.endpoint)

	// The listener never sends; CloseRead discards inbound frames and cancels
	// closed once the peer goes away.
	closed := conn.CloseRead(context.Background())
	go func() {
		<-closed.Done()
		r.markClosed(conn, "socket closed by peer")
	}()
	return domain.StateOpen
}

// Deliver sends payload as one text frame, trying up to the configured number
// of attempts. It reports whether a send succeeded; there is no acknowledgement.
// The retry delay runs between attempts only, so a payload that fails every
// attempt returns as soon as the last attempt fails.
func (r *Relay) Deliver(ctx context.Context, payload domain.NotificationPayload) bool {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		r.metrics.DeliveryAttempts.Inc()

		conn := r.current()
		if conn != nil {
			err := conn.Write(ctx, websocket.MessageText, []byte(payload))
			if err == nil {
				r.logger.Debug("notification sent", "attempt", attempt)
				return true
			}
			r.logger.Warn("notification write failed", "attempt", attempt, "error", err)
			r.markClosed(conn, "socket write failed")
		} else {
			r.logger.Warn("socket not open, delivery deferred", "attempt", attempt, "state", r.State().String())
		}

		if attempt < r.attempts && !timeutil.Sleep(ctx, r.clock, r.retryDelay) {
			break
		}
	}
	r.logger.Error("notification dropped", "attempts", r.attempts)
	return false
}

// Close shuts the socket down with a normal closure.
func (r *Relay) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn == nil {
		r.state.Store(int32(domain.StateClosed))
		return nil
	}

	r.state.Store(int32(domain.StateClosing))
	err := conn.Close(websocket.StatusNormalClosure, "shutting down")
	r.state.Store(int32(domain.StateClosed))
	return err
}

func (r *Relay) current() *websocket.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State() != domain.StateOpen {
		return nil
	}
	return r.conn
}

// markClosed drops conn if it is still the active connection.
func (r *Relay) markClosed(conn *websocket.Conn, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != conn {
		return
	}
	r.conn = nil
	r.state.Store(int32(domain.StateClosed))
	r.logger.Warn(reason, "endpoint", r.endpoint)
	_ = conn.CloseNow()
}
