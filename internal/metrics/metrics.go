package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. It is safe to use a nil
// *Metrics; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	files       *prometheus.CounterVec
	chunks      prometheus.Counter
	queries     *prometheus.CounterVec
	llmLatency  prometheus.Histogram
	librarySize prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_ingest_files_total",
			Help: "Files seen by ingestion, by outcome.",
		}, []string{"status"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_ingest_chunks_total",
			Help: "Chunks embedded and written to the vector store.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_queries_total",
			Help: "Questions asked, by outcome.",
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_llm_request_seconds",
			Help:    "Latency of completion requests to the LLM API.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		librarySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rag_library_chunks",
			Help: "Chunks currently stored in the library.",
		}),
	}
	reg.MustRegister(
		m.files, m.chunks, m.queries, m.llmLatency, m.librarySize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) FileProcessed(status string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(status).Inc()
}

func (m *Metrics) ChunksStored(n int) {
	if m == nil {
		return
	}
	m.chunks.Add(float64(n))
}

func (m *Metrics) LibrarySize(n int) {
	if m == nil {
		return
	}
	m.librarySize.Set(float64(n))
}

func (m *Metrics) Query(outcome string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LLMRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
