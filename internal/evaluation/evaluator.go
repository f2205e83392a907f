// Package evaluation scores embedding models on an information retrieval task.
//
// An Evaluator holds a fixed query set, corpus and relevance judgments. Each call embeds
// both sides through the caller's Embedder, ranks the corpus for every query by cosine
// similarity in bounded-memory chunks and reports Accuracy@k, Precision@k, Recall@k,
// MRR@k and NDCG@k.
package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ricesearch/rice-eval/internal/observability"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

const tracerName = "github.com/ricesearch/rice-eval/internal/evaluation"

// Evaluator orchestrates retrieval evaluation.
type Evaluator struct {
	cfg       Config
	relevance RelevanceOracle

	queryIDs  []string
	queries   []string
	corpusIDs []string
	corpus    []string

	sinks  []ReportSink
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for progress and metric lines.
func WithLogger(log *logger.Logger) Option {
	return func(e *Evaluator) {
		if log != nil {
			e.log = log
		}
	}
}

// WithSinks adds report sinks that receive every completed Result.
func WithSinks(sinks ...ReportSink) Option {
	return func(e *Evaluator) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithTracerProvider sets where run spans go. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Evaluator) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// withClock overrides time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// New creates an evaluator. Queries without any relevant document are dropped.
func New(queries []Query, corpus []CorpusDocument, relevance RelevanceOracle, cfg Config, opts ...Option) (*Evaluator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if relevance == nil {
		return nil, errors.ConfigurationError("relevance judgments are required")
	}

	e := &Evaluator{
		cfg:       cloneConfig(cfg),
		relevance: relevance,
		log:       logger.Default(),
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithEvaluator(cfg.Name)

	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		if _, dup := seen[q.ID]; dup {
			return nil, errors.ConfigurationError("duplicate query id").WithDetail("id", q.ID)
		}
		seen[q.ID] = struct{}{}

		if relevance.Count(q.ID) == 0 {
			continue
		}
		e.queryIDs = append(e.queryIDs, q.ID)
		e.queries = append(e.queries, q.Text)
	}

	seen = make(map[string]struct{}, len(corpus))
	e.corpusIDs = make([]string, 0, len(corpus))
	e.corpus = make([]string, 0, len(corpus))
	for _, d := range corpus {
		if _, dup := seen[d.ID]; dup {
			return nil, errors.ConfigurationError("duplicate corpus id").WithDetail("id", d.ID)
		}
		seen[d.ID] = struct{}{}
		e.corpusIDs = append(e.corpusIDs, d.ID)
		e.corpus = append(e.corpus, d.Text)
	}

	if dropped := len(queries) - len(e.queryIDs); dropped > 0 {
		e.log.Debug("Dropped queries without relevant documents", "dropped", dropped)
	}

	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.QueryChunkSize < 1 {
		return errors.ConfigurationError("query chunk size must be positive").
			WithDetail("query_chunk_size", strconv.Itoa(cfg.QueryChunkSize))
	}
	if cfg.CorpusChunkSize < 1 {
		return errors.ConfigurationError("corpus chunk size must be positive").
			WithDetail("corpus_chunk_size", strconv.Itoa(cfg.CorpusChunkSize))
	}
	if cfg.BatchSize < 1 {
		return errors.ConfigurationError("batch size must be positive").
			WithDetail("batch_size", strconv.Itoa(cfg.BatchSize))
	}

	families := []struct {
		name string
		ks   []int
	}{
		{"accuracy_at_k", cfg.AccuracyAtK},
		{"precision_recall_at_k", cfg.PrecisionRecallAtK},
		{"mrr_at_k", cfg.MRRAtK},
		{"ndcg_at_k", cfg.NDCGAtK},
		{"map_at_k", cfg.MAPAtK},
	}
	for _, f := range families {
		for _, k := range f.ks {
			if k < 1 {
				return errors.ConfigurationError("k values must be positive").
					WithDetail(f.name, strconv.Itoa(k))
			}
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	cfg.AccuracyAtK = append([]int(nil), cfg.AccuracyAtK...)
	cfg.PrecisionRecallAtK = append([]int(nil), cfg.PrecisionRecallAtK...)
	cfg.MRRAtK = append([]int(nil), cfg.MRRAtK...)
	cfg.NDCGAtK = append([]int(nil), cfg.NDCGAtK...)
	cfg.MAPAtK = append([]int(nil), cfg.MAPAtK...)
	return cfg
}

// Name returns the evaluator label.
func (e *Evaluator) Name() string {
	return e.cfg.Name
}

// QueryIDs returns the retained query ids in evaluation order.
func (e *Evaluator) QueryIDs() []string {
	return append([]string(nil), e.queryIDs...)
}

// CorpusIDs returns the corpus ids in similarity-matrix column order.
func (e *Evaluator) CorpusIDs() []string {
	return append([]string(nil), e.corpusIDs...)
}

// maxK is the largest k requested by any metric family.
func (e *Evaluator) maxK() int {
	m := maxOf(e.cfg.AccuracyAtK)
	for _, ks := range [][]int{e.cfg.PrecisionRecallAtK, e.cfg.MRRAtK, e.cfg.NDCGAtK, e.cfg.MAPAtK} {
		if k := maxOf(ks); k > m {
			m = k
		}
	}
	return m
}

// Evaluate runs the evaluation and returns MRR at the largest requested k.
func (e *Evaluator) Evaluate(ctx context.Context, embedder Embedder, info RunInfo) (float64, error) {
	result, err := e.Run(ctx, embedder, info)
	if err != nil {
		return 0, err
	}
	return result.Score(), nil
}

// Run embeds queries and corpus, ranks the corpus for every query and aggregates the
// metrics. Report sinks see the result only after aggregation succeeded.
func (e *Evaluator) Run(ctx context.Context, embedder Embedder, info RunInfo) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "evaluation.Run", trace.WithAttributes(observability.Attrs(
		"evaluator", e.cfg.Name,
		"epoch", info.Epoch,
		"steps", info.Steps,
		"queries", len(e.queryIDs),
		"corpus", len(e.corpusIDs),
	)...))
	defer span.End()

	result, err := e.run(ctx, embedder, info)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Float64("score", result.Score()))
	return result, nil
}

func (e *Evaluator) run(ctx context.Context, embedder Embedder, info RunInfo) (*Result, error) {
	log := e.log.WithContext(ctx)
	log.Info(fmt.Sprintf("Information Retrieval Evaluation on the %s dataset%s", datasetLabel(e.cfg.Name), runLabel(info)))

	start := e.now()

	queryEmbeddings, err := e.embed(ctx, embedder, e.queries, "queries")
	if err != nil {
		return nil, err
	}
	corpusEmbeddings, err := e.embed(ctx, embedder, e.corpus, "corpus")
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(queryEmbeddings, corpusEmbeddings); err != nil {
		return nil, err
	}

	acc := newAccumulators(e.cfg)
	if maxK := e.maxK(); maxK > 0 {
		_, span := e.tracer.Start(ctx, "evaluation.score", trace.WithAttributes(attribute.Int("max_k", maxK)))
		err := e.score(ctx, queryEmbeddings, corpusEmbeddings, maxK, acc)
		observability.RecordError(span, err)
		span.End()
		if err != nil {
			return nil, err
		}
	}

	result := &Result{
		Name:               e.cfg.Name,
		Epoch:              info.Epoch,
		Steps:              info.Steps,
		Queries:            len(e.queryIDs),
		Corpus:             len(e.corpusIDs),
		AccuracyAtK:        append([]int(nil), e.cfg.AccuracyAtK...),
		PrecisionRecallAtK: append([]int(nil), e.cfg.PrecisionRecallAtK...),
		MRRAtK:             append([]int(nil), e.cfg.MRRAtK...),
		NDCGAtK:            append([]int(nil), e.cfg.NDCGAtK...),
		MAPAtK:             append([]int(nil), e.cfg.MAPAtK...),
	}
	acc.finish(result, len(e.queryIDs))
	result.CompletedAt = e.now()
	result.Duration = result.CompletedAt.Sub(start)

	if result.Queries == 0 {
		log.Warn("No queries with relevant documents; all metrics are zero")
	}
	logResult(log, result)

	sinks := e.sinks
	if info.OutputPath != "" {
		sinks = append([]ReportSink{NewCSVReport(info.OutputPath, e.cfg.Name)}, sinks...)
	}
	for _, sink := range sinks {
		if err := sink.WriteReport(ctx, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// score ranks the corpus for every query chunk and feeds the accumulators.
func (e *Evaluator) score(ctx context.Context, queryEmbeddings, corpusEmbeddings []Embedding, maxK int, acc *accumulators) error {
	queryNorms := norms(queryEmbeddings)
	corpusNorms := norms(corpusEmbeddings)
	sel := newSelector(maxK)

	var matrix []float64
	for qStart := 0; qStart < len(queryEmbeddings); qStart += e.cfg.QueryChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		qEnd := min(qStart+e.cfg.QueryChunkSize, len(queryEmbeddings))

		candidates := make([][]ScoredHit, qEnd-qStart)
		for cStart := 0; cStart < len(corpusEmbeddings); cStart += e.cfg.CorpusChunkSize {
			cEnd := min(cStart+e.cfg.CorpusChunkSize, len(corpusEmbeddings))
			cols := cEnd - cStart

			if need := (qEnd - qStart) * cols; cap(matrix) < need {
				matrix = make([]float64, need)
			}
			scores := cosineMatrix(matrix,
				queryEmbeddings[qStart:qEnd], queryNorms[qStart:qEnd],
				corpusEmbeddings[cStart:cEnd], corpusNorms[cStart:cEnd])

			for row := range candidates {
				candidates[row] = sel.appendTopK(candidates[row], scores[row*cols:(row+1)*cols], cStart, e.corpusIDs)
			}
		}

		for row, hits := range candidates {
			queryID := e.queryIDs[qStart+row]
			topHits := sortHits(hits, maxK)
			acc.add(e.hitVector(queryID, topHits), e.relevance.Count(queryID))
		}
	}

	return nil
}

// hitVector marks which of the sorted hits are relevant to the query.
func (e *Evaluator) hitVector(queryID string, hits []ScoredHit) []int {
	relevances := make([]int, len(hits))
	for i, hit := range hits {
		if e.relevance.Relevant(queryID, hit.CorpusID) {
			relevances[i] = 1
		}
	}
	return relevances
}

func (e *Evaluator) embed(ctx context.Context, embedder Embedder, texts []string, what string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "evaluation.embed", trace.WithAttributes(
		attribute.String("side", what),
		attribute.Int("texts", len(texts)),
	))
	defer span.End()

	embeddings, err := e.callEmbedder(ctx, embedder, texts, what)
	observability.RecordError(span, err)
	return embeddings, err
}

func (e *Evaluator) callEmbedder(ctx context.Context, embedder Embedder, texts []string, what string) ([]Embedding, error) {
	embeddings, err := embedder.Embed(ctx, texts, e.cfg.BatchSize)
	if err != nil {
		return nil, errors.EmbeddingError("embedding "+what, err)
	}
	if len(embeddings) != len(texts) {
		return nil, errors.EmbeddingError("embedding "+what,
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings)))
	}
	return embeddings, nil
}

// checkDimensions requires every embedding to have the same length.
func checkDimensions(sets ...[]Embedding) error {
	dim := -1
	for _, set := range sets {
		for _, e := range set {
			if dim < 0 {
				dim = len(e)
				continue
			}
			if len(e) != dim {
				return errors.EmbeddingError("inconsistent embedding dimensions",
					fmt.Errorf("expected %d, got %d", dim, len(e)))
			}
		}
	}
	return nil
}

func datasetLabel(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}

func runLabel(info RunInfo) string {
	switch {
	case info.Epoch == -1:
		return ":"
	case info.Steps == -1:
		return fmt.Sprintf(" after epoch %d:", info.Epoch)
	default:
		return fmt.Sprintf(" in epoch %d after %d steps:", info.Epoch, info.Steps)
	}
}
