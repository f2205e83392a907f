// Package metrics exports evaluation results and component activity as Prometheus metrics.
//
// Evaluations run as batch jobs, so the registry is usually written to a node-exporter
// textfile after a run rather than scraped.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ricesearch/rice-eval/internal/evaluation"
)

const namespace = "rice_eval"

// Recorder owns every metric of the module.
type Recorder struct {
	registry *prometheus.Registry

	metric    *prometheus.GaugeVec
	score     *prometheus.GaugeVec
	queries   *prometheus.GaugeVec
	corpus    *prometheus.GaugeVec
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	lastRun   *prometheus.GaugeVec
	cacheOps  *prometheus.CounterVec
	cacheSize *prometheus.GaugeVec
	busOps    *prometheus.CounterVec
	busTime   *prometheus.HistogramVec
}

// New registers all metrics in a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		metric: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric",
			Help:      "Retrieval metric value of the latest evaluation.",
		}, []string{"evaluator", "metric", "k"}),

		score: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "MRR at the largest requested k of the latest evaluation.",
		}, []string{"evaluator"}),

		queries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queries",
			Help:      "Number of evaluated queries.",
		}, []string{"evaluator"}),

		corpus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_documents",
			Help:      "Number of corpus documents.",
		}, []string{"evaluator"}),

		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed evaluation runs.",
		}, []string{"evaluator"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of evaluation runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		}, []string{"evaluator"}),

		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the latest evaluation completed.",
		}, []string{"evaluator"}),

		cacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Embedding cache lookups, partitioned by result.",
		}, []string{"cache", "result"}),

		cacheSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of cached embeddings.",
		}, []string{"cache"}),

		busOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "publish_total",
			Help:      "Published bus events, partitioned by outcome.",
		}, []string{"topic", "outcome"}),

		busTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "publish_duration_seconds",
			Help:      "Latency of bus publishes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

// Registry returns the registry holding every metric.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteReport implements evaluation.ReportSink.
func (r *Recorder) WriteReport(_ context.Context, res *evaluation.Result) error {
	name := res.Name

	set := func(metric string, ks []int, values map[int]float64) {
		for _, k := range ks {
			r.metric.WithLabelValues(name, metric, strconv.Itoa(k)).Set(values[k])
		}
	}
	set("accuracy", res.AccuracyAtK, res.Accuracy)
	set("precision", res.PrecisionRecallAtK, res.Precision)
	set("recall", res.PrecisionRecallAtK, res.Recall)
	set("mrr", res.MRRAtK, res.MRR)
	set("ndcg", res.NDCGAtK, res.NDCG)
	set("map", res.MAPAtK, res.MAP)

	r.score.WithLabelValues(name).Set(res.Score())
	r.queries.WithLabelValues(name).Set(float64(res.Queries))
	r.corpus.WithLabelValues(name).Set(float64(res.Corpus))
	r.runs.WithLabelValues(name).Inc()
	r.duration.WithLabelValues(name).Observe(res.Duration.Seconds())

	completed := res.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	r.lastRun.WithLabelValues(name).Set(float64(completed.Unix()))
	return nil
}

// RecordCacheHit records an embedding cache hit.
func (r *Recorder) RecordCacheHit(cacheType string) {
	r.cacheOps.WithLabelValues(cacheType, "hit").Inc()
}

// RecordCacheMiss records an embedding cache miss.
func (r *Recorder) RecordCacheMiss(cacheType string) {
	r.cacheOps.WithLabelValues(cacheType, "miss").Inc()
}

// UpdateCacheSize sets the number of cached entries.
func (r *Recorder) UpdateCacheSize(cacheType string, size int) {
	r.cacheSize.WithLabelValues(cacheType).Set(float64(size))
}

// RecordBusPublish records one bus publish.
func (r *Recorder) RecordBusPublish(topic string, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.busOps.WithLabelValues(topic, outcome).Inc()
	r.busTime.WithLabelValues(topic).Observe(latency.Seconds())
}

// WriteTextfile writes the registry in the text exposition format for the node-exporter
// textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
