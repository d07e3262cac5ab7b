// Package metrics exports the link power manager counters to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkpm"

var hubStates = []string{"off", "resuming", "preactive", "active"}

// PrometheusRecorder records hub transitions, retries and activations
type PrometheusRecorder struct {
	once         sync.Once
	transitions  *prom.CounterVec
	hubState     *prom.GaugeVec
	retryTicks   prom.Counter
	abandoned    prom.Counter
	powerFailure *prom.CounterVec
	activation   *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers the metrics with reg, a nil
// registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.transitions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hub_transitions_total",
			Help:      "Hub state machine transitions",
		}, []string{"from", "to"})
		pr.hubState = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_state",
			Help:      "Current hub state, 1 for the active label",
		}, []string{"state"})
		pr.retryTicks = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hub_retry_ticks_total",
			Help:      "Hub work ticks spent waiting for enumeration",
		})
		pr.abandoned = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hub_abandoned_total",
			Help:      "Power ups given up after the retry limit",
		})
		pr.powerFailure = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hub_power_failures_total",
			Help:      "Rejected port power requests by direction",
		}, []string{"direction"})
		pr.activation = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "activation_duration_seconds",
			Help:      "Time callers waited for the hub to become active",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		}, []string{"result"})

		reg.MustRegister(pr.transitions, pr.hubState, pr.retryTicks, pr.abandoned, pr.powerFailure, pr.activation)
	})

	pr.setState("off")
	return pr
}

func (p *PrometheusRecorder) setState(state string) {
	for _, s := range hubStates {
		v := 0.0
		if s == state {
			v = 1
		}
		p.hubState.WithLabelValues(s).Set(v)
	}
}

func (p *PrometheusRecorder) IncTransition(from, to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(from, to).Inc()
	p.setState(to)
}

func (p *PrometheusRecorder) IncRetryTick() {
	if p == nil || p.retryTicks == nil {
		return
	}
	p.retryTicks.Inc()
}

func (p *PrometheusRecorder) IncAbandoned() {
	if p == nil || p.abandoned == nil {
		return
	}
	p.abandoned.Inc()
}

func (p *PrometheusRecorder) IncPowerFailure(direction string) {
	if p == nil || p.powerFailure == nil {
		return
	}
	p.powerFailure.WithLabelValues(direction).Inc()
}

func (p *PrometheusRecorder) ObserveActivation(result string, d time.Duration) {
	if p == nil || p.activation == nil {
		return
	}
	p.activation.WithLabelValues(result).Observe(d.Seconds())
}

// HTTPHandler serves the metrics of reg
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
