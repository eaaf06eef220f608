package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.Polls.Inc()
	a.Deliveries.WithLabelValues("alarm", "sent").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Polls))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Polls))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Deliveries.WithLabelValues("alarm", "sent")))
}

func TestMetrics_RegisterUnderNamespace(t *testing.T) {
	m := newMetrics(true)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.Polls))
	require.NoError(t, reg.Register(m.RPCRetries))
	m.RPCRetries.WithLabelValues("flood_wait").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "siren_relay_polls_total")
	assert.Contains(t, names, "siren_relay_rpc_retries_total")
}
