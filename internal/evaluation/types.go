package evaluation

import (
	"context"
	"sort"
	"time"
)

// Query is a single retrieval query.
type Query struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CorpusDocument is a single document of the retrieval corpus.
type CorpusDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Embedding is a dense vector produced by an external encoder.
type Embedding []float32

// Embedder encodes texts into embeddings.
// Implementations must preserve input order and return vectors of a uniform dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string, batchSize int) ([]Embedding, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, texts []string, batchSize int) ([]Embedding, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, texts []string, batchSize int) ([]Embedding, error) {
	return f(ctx, texts, batchSize)
}

// RelevanceJudgment represents human-labeled relevance for a query-doc pair
type RelevanceJudgment struct {
	QueryID   string `json:"query_id"`
	DocID     string `json:"doc_id"`
	Relevance int    `json:"relevance"` // 0=not relevant, anything above counts as relevant
}

// RelevanceOracle answers binary relevance questions for a query.
type RelevanceOracle interface {
	// Relevant reports whether docID is relevant to queryID.
	Relevant(queryID, docID string) bool

	// Count returns the number of documents relevant to queryID.
	Count(queryID string) int
}

// RelevanceMap maps a query id to the set of relevant document ids.
type RelevanceMap map[string]map[string]struct{}

// NewRelevanceMap builds a RelevanceMap from query id -> relevant doc ids.
func NewRelevanceMap(pairs map[string][]string) RelevanceMap {
	m := make(RelevanceMap, len(pairs))
	for qid, docs := range pairs {
		for _, did := range docs {
			m.Add(qid, did)
		}
	}
	return m
}

// RelevanceFromJudgments keeps every judgment with a positive relevance grade.
func RelevanceFromJudgments(judgments []RelevanceJudgment) RelevanceMap {
	m := make(RelevanceMap)
	for _, j := range judgments {
		if j.Relevance > 0 {
			m.Add(j.QueryID, j.DocID)
		}
	}
	return m
}

// Add marks docID as relevant to queryID.
func (m RelevanceMap) Add(queryID, docID string) {
	docs, ok := m[queryID]
	if !ok {
		docs = make(map[string]struct{})
		m[queryID] = docs
	}
	docs[docID] = struct{}{}
}

// Relevant implements RelevanceOracle.
func (m RelevanceMap) Relevant(queryID, docID string) bool {
	_, ok := m[queryID][docID]
	return ok
}

// Count implements RelevanceOracle.
func (m RelevanceMap) Count(queryID string) int {
	return len(m[queryID])
}

// ScoredHit is a candidate document for a query.
type ScoredHit struct {
	CorpusID string  `json:"corpus_id"`
	Score    float64 `json:"score"`

	// position of the document in the corpus, used to order equal scores
	index int
}

// Config holds evaluator settings.
type Config struct {
	// Name labels log lines, the CSV file and sink records.
	Name string

	// QueryChunkSize and CorpusChunkSize bound the similarity matrix held in memory.
	QueryChunkSize  int
	CorpusChunkSize int

	AccuracyAtK        []int
	PrecisionRecallAtK []int
	MRRAtK             []int
	NDCGAtK            []int

	// MAPAtK is optional; when empty the report has no MAP columns.
	MAPAtK []int

	// BatchSize is passed through to the Embedder.
	BatchSize int
}

// DefaultConfig returns the standard evaluator settings.
func DefaultConfig() Config {
	return Config{
		QueryChunkSize:     1000,
		CorpusChunkSize:    500000,
		AccuracyAtK:        []int{1, 3, 5, 10},
		PrecisionRecallAtK: []int{1, 3, 5, 10},
		MRRAtK:             []int{10},
		NDCGAtK:            []int{10},
		BatchSize:          16,
	}
}

// RunInfo labels a single evaluation call.
type RunInfo struct {
	// Epoch and Steps are -1 when not evaluating inside a training loop.
	Epoch int
	Steps int

	// OutputPath, when set, is the directory receiving the CSV report.
	OutputPath string
}

// DefaultRunInfo returns a RunInfo outside of any training loop.
func DefaultRunInfo() RunInfo {
	return RunInfo{Epoch: -1, Steps: -1}
}

// Result contains the aggregated metrics of one evaluation call.
type Result struct {
	Name    string `json:"name"`
	Epoch   int    `json:"epoch"`
	Steps   int    `json:"steps"`
	Queries int    `json:"queries"`
	Corpus  int    `json:"corpus"`

	// k lists in construction order; they define the report column order
	AccuracyAtK        []int `json:"accuracy_at_k"`
	PrecisionRecallAtK []int `json:"precision_recall_at_k"`
	MRRAtK             []int `json:"mrr_at_k"`
	NDCGAtK            []int `json:"ndcg_at_k"`
	MAPAtK             []int `json:"map_at_k,omitempty"`

	Accuracy  map[int]float64 `json:"accuracy"`
	Precision map[int]float64 `json:"precision"`
	Recall    map[int]float64 `json:"recall"`
	MRR       map[int]float64 `json:"mrr"`
	NDCG      map[int]float64 `json:"ndcg"`
	MAP       map[int]float64 `json:"map,omitempty"`

	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Score returns MRR at the largest requested MRR k, or 0 when no MRR k was requested.
func (r *Result) Score() float64 {
	if len(r.MRRAtK) == 0 {
		return 0
	}
	return r.MRR[maxOf(r.MRRAtK)]
}

// QueriesFromMap orders a query id -> text map by id.
func QueriesFromMap(m map[string]string) []Query {
	ids := sortedKeys(m)
	out := make([]Query, len(ids))
	for i, id := range ids {
		out[i] = Query{ID: id, Text: m[id]}
	}
	return out
}

// CorpusFromMap orders a document id -> text map by id.
func CorpusFromMap(m map[string]string) []CorpusDocument {
	ids := sortedKeys(m)
	out := make([]CorpusDocument, len(ids))
	for i, id := range ids {
		out[i] = CorpusDocument{ID: id, Text: m[id]}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func maxOf(ks []int) int {
	m := 0
	for _, k := range ks {
		if k > m {
			m = k
		}
	}
	return m
}
