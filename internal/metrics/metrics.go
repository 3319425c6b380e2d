// Package metrics exposes convoscope's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "convoscope"

// Collector owns every convoscope metric and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	imports          *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	scores           *prometheus.HistogramVec
	highlights       *prometheus.CounterVec
	danglingRefs     prometheus.Counter
	events           *prometheus.CounterVec
	pruned           prometheus.Counter
}

// NewCollector registers the metrics on registry. A nil registry gets a
// fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Conversation imports by source and outcome",
		}, []string{"source", "status"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis runs by scorer and outcome",
		}, []string{"scorer", "status"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent scoring a conversation",
			// Heuristic runs take microseconds, LLM runs take seconds.
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"scorer"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_score",
			Help:      "Distribution of accepted analysis scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"kind"}),
		highlights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "highlight_activations_total",
			Help:      "Citation activations by whether the message resolved",
		}, []string{"resolved"}),
		danglingRefs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dangling_references_total",
			Help:      "Message ids cited by analyses that do not exist in the conversation",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Bus events published by subject and outcome",
		}, []string{"subject", "status"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_pruned_total",
			Help:      "Stored analyses removed by retention",
		}),
	}

	registry.MustRegister(
		c.imports,
		c.analyses,
		c.analysisDuration,
		c.scores,
		c.highlights,
		c.danglingRefs,
		c.events,
		c.pruned,
	)
	return c
}

// RecordImport counts an import attempt. status is "success" or "rejected".
func (c *Collector) RecordImport(source, status string) {
	c.imports.WithLabelValues(source, status).Inc()
}

// RecordAnalysis counts a finished run. Scores are observed only for
// successful runs.
func (c *Collector) RecordAnalysis(scorer, status string, d time.Duration, satisfaction, effectiveness int) {
	c.analyses.WithLabelValues(scorer, status).Inc()
	c.analysisDuration.WithLabelValues(scorer).Observe(d.Seconds())
	if status == "success" {
		c.scores.WithLabelValues("satisfaction").Observe(float64(satisfaction))
		c.scores.WithLabelValues("effectiveness").Observe(float64(effectiveness))
	}
}

func (c *Collector) RecordHighlight(resolved bool) {
	label := "false"
	if resolved {
		label = "true"
	}
	c.highlights.WithLabelValues(label).Inc()
}

func (c *Collector) RecordDangling(n int) {
	if n > 0 {
		c.danglingRefs.Add(float64(n))
	}
}

func (c *Collector) RecordEvent(subject string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.events.WithLabelValues(subject, status).Inc()
}

func (c *Collector) RecordPruned(n int64) {
	if n > 0 {
		c.pruned.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
