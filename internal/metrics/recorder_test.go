package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ linkpm.Recorder = (*PrometheusRecorder)(nil)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncTransition("off", "resuming")
	pr.IncRetryTick()
	pr.IncRetryTick()
	pr.IncAbandoned()
	pr.IncPowerFailure("on")
	pr.ObserveActivation("activated", 150*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1.0, value(mfs, "linkpm_hub_transitions_total", "to", "resuming"))
	assert.Equal(t, 2.0, value(mfs, "linkpm_hub_retry_ticks_total", "", ""))
	assert.Equal(t, 1.0, value(mfs, "linkpm_hub_abandoned_total", "", ""))
	assert.Equal(t, 1.0, value(mfs, "linkpm_hub_power_failures_total", "direction", "on"))
	assert.Equal(t, 1.0, value(mfs, "linkpm_hub_state", "state", "resuming"))
	assert.Equal(t, 0.0, value(mfs, "linkpm_hub_state", "state", "off"))
}

// value returns the counter or gauge value of the sample carrying label=want
func value(mfs []*dto.MetricFamily, name, label, want string) float64 {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}

		for _, m := range mf.GetMetric() {
			if label != "" && !hasLabel(m, label, want) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}

	return -1
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}

func TestNilRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncTransition("off", "resuming")
		pr.IncRetryTick()
		pr.IncAbandoned()
		pr.IncPowerFailure("off")
		pr.ObserveActivation("timed_out", time.Second)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncAbandoned()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "linkpm_hub_abandoned_total")
}
