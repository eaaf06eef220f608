package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "siren_relay"

// Metrics holds the Prometheus counters and gauges for the relay.
type Metrics struct {
	RelayRunning    prometheus.Gauge
	Watermark       prometheus.Gauge
	Polls           prometheus.Counter
	MessagesFetched prometheus.Counter
	FetchErrors     prometheus.Counter

	// Classification and dedup.
	Classifications  *prometheus.CounterVec // labels: signal={alarm,retreat,none}
	AlarmsSuppressed *prometheus.CounterVec // labels: category

	// Downstream socket.
	SocketConnects   *prometheus.CounterVec // labels: outcome={success,error}
	Deliveries       *prometheus.CounterVec // labels: kind={alarm,retreat}, outcome={sent,dropped}
	DeliveryAttempts prometheus.Counter

	// Upstream RPC.
	RPCRetries *prometheus.CounterVec // labels: reason={flood_wait,migrate}
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		RelayRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_running",
			Help:      help("1 when the poll loop is active, 0 when shut down."),
		}),
		Watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark",
			Help:      help("Highest channel message id processed."),
		}),
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      help("Total fetch cycles against the channel."),
		}),
		MessagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_fetched_total",
			Help:      help("Total new channel messages fetched."),
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      help("Total failed message fetches."),
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      help("Classified batches by resulting signal."),
		}, []string{"signal"}),
		AlarmsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_suppressed_total",
			Help:      help("Alarms dropped inside the cooldown window, by category."),
		}, []string{"category"}),
		SocketConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_connects_total",
			Help:      help("Downstream socket connection attempts by outcome."),
		}, []string{"outcome"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      help("Notifications by template kind and outcome."),
		}, []string{"kind", "outcome"}),
		DeliveryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      help("Individual send attempts, including attempts that found the socket closed."),
		}),
		RPCRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_retries_total",
			Help:      help("Upstream calls retried after a transient failure, by reason."),
		}, []string{"reason"}),
	}
}

// NewMetrics creates and registers all relay metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.RelayRunning,
		m.Watermark,
		m.Polls,
		m.MessagesFetched,
		m.FetchErrors,
		m.Classifications,
		m.AlarmsSuppressed,
		m.SocketConnects,
		m.Deliveries,
		m.DeliveryAttempts,
		m.RPCRetries,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
