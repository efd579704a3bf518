package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var MetricRegisterErrorMessage = "failed to register metric counter"

type Meter interface {
	IncTotal(path string, method string, status string)
	IncStatus(path string, method string, status string)
	NewResponseTimeTimer(path string, method string) *prometheus.Timer
	FlushResponseTimeTimer(t *prometheus.Timer)
	IncPurge(mode string, outcome string)
	IncEligibility(state string)
}

type Metrics struct {
	totalRequestsCounter    *prometheus.CounterVec
	totalResponsesCounter   *prometheus.CounterVec
	responseStatusesCounter *prometheus.CounterVec
	responseTimeMsCounter   *prometheus.HistogramVec
	purgeCounter            *prometheus.CounterVec
	eligibilityCounter      *prometheus.CounterVec
}

func New() (*Metrics, error) {
	m := &Metrics{
		totalRequestsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bs_cache_http_requests_total",
				Help: "Number of all requests.",
			},
			[]string{"path", "method"},
		),
		totalResponsesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bs_cache_http_responses_total",
				Help: "Number of all responses.",
			},
			[]string{"path", "method", "status"},
		),
		responseStatusesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bs_cache_http_response_statuses",
				Help: "Status of HTTP response",
			},
			[]string{"path", "method", "status"},
		),
		responseTimeMsCounter: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "bs_cache_http_response_time_ms",
			Help: "Duration of HTTP requests.",
		}, []string{"path", "method"}),
		purgeCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bs_cache_purge_operations_total",
				Help: "Purge dispatches by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		eligibilityCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bs_cache_eligibility_decisions_total",
				Help: "Cacheability decisions by resulting state.",
			},
			[]string{"state"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.totalRequestsCounter,
		m.totalResponsesCounter,
		m.responseStatusesCounter,
		m.responseTimeMsCounter,
		m.purgeCounter,
		m.eligibilityCounter,
	} {
		if err := prometheus.Register(c); err != nil {
			log.Err(err).Msg(MetricRegisterErrorMessage)
			return nil, errors.New(MetricRegisterErrorMessage)
		}
	}

	return m, nil
}

// IncTotal method is increments request/response total counters and depends on
// *status* argument (numeric or empty string available).
// If the *status* argument is empty string then will be used request_counter,
// in other way will be used response_counter.
func (m *Metrics) IncTotal(path string, method string, status string) {
	if status != "" {
		m.totalResponsesCounter.With(
			prometheus.Labels{
				"path":   path,
				"method": method,
				"status": status,
			},
		).Inc()
		return
	}
	m.totalRequestsCounter.With(
		prometheus.Labels{
			"path":   path,
			"method": method,
		},
	).Inc()
}

func (m *Metrics) IncStatus(path string, method string, status string) {
	m.responseStatusesCounter.With(
		prometheus.Labels{
			"path":   path,
			"method": method,
			"status": status,
		},
	).Inc()
}

func (m *Metrics) NewResponseTimeTimer(path string, method string) *prometheus.Timer {
	return prometheus.NewTimer(m.responseTimeMsCounter.WithLabelValues(path, method))
}

func (m *Metrics) FlushResponseTimeTimer(t *prometheus.Timer) {
	t.ObserveDuration()
}

func (m *Metrics) IncPurge(mode string, outcome string) {
	m.purgeCounter.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) IncEligibility(state string) {
	m.eligibilityCounter.WithLabelValues(state).Inc()
}
