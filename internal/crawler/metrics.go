package crawler

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes crawl progress as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	dispatched *prometheus.CounterVec
	responses  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	outputs    prometheus.Counter
	inFlight   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "politecrawl",
			Name:      "requests_dispatched_total",
			Help:      "Requests released from a domain queue and handed to the transport.",
		}, []string{"domain"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "politecrawl",
			Name:      "responses_total",
			Help:      "HTTP responses received, by domain and status class.",
		}, []string{"domain", "class"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "politecrawl",
			Name:      "errors_total",
			Help:      "Crawl errors delivered to the consumer, by kind.",
		}, []string{"kind"}),
		outputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "politecrawl",
			Name:      "outputs_total",
			Help:      "Output records produced by the scraper.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "politecrawl",
			Name:      "requests_in_flight",
			Help:      "Fetches currently in flight.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.dispatched, m.responses, m.errors, m.outputs, m.inFlight} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeDispatch(domain string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(domain).Inc()
	m.inFlight.Inc()
}

func (m *Metrics) observeCompletion() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) observeResponse(domain string, status int) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(domain, strconv.Itoa(status/100)+"xx").Inc()
}

func (m *Metrics) observeError(kind ErrorKind) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeOutput() {
	if m == nil {
		return
	}
	m.outputs.Inc()
}
