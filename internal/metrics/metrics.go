package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agendaflow_requests_total",
		Help: "HTTP requests by endpoint and status code",
	}, []string{"endpoint", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agendaflow_request_duration_ms",
		Help:    "End-to-end request latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000},
	}, []string{"endpoint"})

	retrievalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agendaflow_retrieval_duration_ms",
		Help:    "Vector search plus filtering latency in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	})

	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agendaflow_generation_duration_ms",
		Help:    "Answer generation latency in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000},
	})

	retrievedEvents = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agendaflow_retrieved_events",
		Help:    "Number of events returned per answered question",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 12},
	})

	degradedAnswers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agendaflow_degraded_answers_total",
		Help: "Answers served from the templated fallback",
	})

	indexedDocuments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendaflow_indexed_documents",
		Help: "Documents in the active index snapshot",
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(
			requestsTotal, requestDuration,
			retrievalDuration, generationDuration,
			retrievedEvents, degradedAnswers, indexedDocuments,
		)
	})
}

// ObserveRequest records one HTTP request with its status and total latency.
func ObserveRequest(endpoint string, status int, start time.Time) {
	ensureRegistered()
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveAnswer records the per-stage timings and result size of one answered
// question. degraded marks answers served from the fallback path.
func ObserveAnswer(retrievalMs, generationMs int64, events int, degraded bool) {
	ensureRegistered()
	retrievalDuration.Observe(float64(retrievalMs))
	generationDuration.Observe(float64(generationMs))
	retrievedEvents.Observe(float64(events))
	if degraded {
		degradedAnswers.Inc()
	}
}

// SetIndexSize publishes the size of the active snapshot.
func SetIndexSize(n int) {
	ensureRegistered()
	indexedDocuments.Set(float64(n))
}
