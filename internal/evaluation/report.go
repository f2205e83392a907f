package evaluation

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// ReportSink receives a completed evaluation result.
type ReportSink interface {
	WriteReport(ctx context.Context, result *Result) error
}

// ReportSinkFunc adapts a function to the ReportSink interface.
type ReportSinkFunc func(ctx context.Context, result *Result) error

// WriteReport calls f.
func (f ReportSinkFunc) WriteReport(ctx context.Context, result *Result) error {
	return f(ctx, result)
}

// CSVFileName returns the report file name for an evaluator name.
func CSVFileName(name string) string {
	if name != "" {
		name = "_" + name
	}
	return "Information-Retrieval_evaluation" + name + "_results.csv"
}

// Header returns the report columns for a result's k lists.
func Header(r *Result) []string {
	cols := []string{"epoch", "steps"}
	for _, k := range r.AccuracyAtK {
		cols = append(cols, "Accuracy@"+strconv.Itoa(k))
	}
	for _, k := range r.PrecisionRecallAtK {
		cols = append(cols, "Precision@"+strconv.Itoa(k))
	}
	for _, k := range r.PrecisionRecallAtK {
		cols = append(cols, "Recall@"+strconv.Itoa(k))
	}
	for _, k := range r.MRRAtK {
		cols = append(cols, "MRR@"+strconv.Itoa(k))
	}
	for _, k := range r.NDCGAtK {
		cols = append(cols, "NDCG@"+strconv.Itoa(k))
	}
	for _, k := range r.MAPAtK {
		cols = append(cols, "MAP@"+strconv.Itoa(k))
	}
	return cols
}

// Row returns the report values for a result, aligned with Header.
func Row(r *Result) []string {
	row := []string{strconv.Itoa(r.Epoch), strconv.Itoa(r.Steps)}
	appendValues := func(ks []int, values map[int]float64) {
		for _, k := range ks {
			row = append(row, formatFloat(values[k]))
		}
	}
	appendValues(r.AccuracyAtK, r.Accuracy)
	appendValues(r.PrecisionRecallAtK, r.Precision)
	appendValues(r.PrecisionRecallAtK, r.Recall)
	appendValues(r.MRRAtK, r.MRR)
	appendValues(r.NDCGAtK, r.NDCG)
	appendValues(r.MAPAtK, r.MAP)
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fileLocks serializes writers of the same report file within the process.
var fileLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CSVReport appends result rows to a CSV file, writing the header once.
type CSVReport struct {
	path string
}

// NewCSVReport creates a report writing CSVFileName(name) inside dir.
func NewCSVReport(dir, name string) *CSVReport {
	path := filepath.Join(dir, CSVFileName(name))
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &CSVReport{path: path}
}

// Path returns the report file path.
func (c *CSVReport) Path() string {
	return c.path
}

// WriteReport implements ReportSink.
func (c *CSVReport) WriteReport(_ context.Context, r *Result) error {
	mu := lockFor(c.path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.ReportError("creating report directory", err)
	}

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.ReportError("opening report file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.ReportError("reading report file", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header(r)); err != nil {
			return errors.ReportError("writing report header", err)
		}
	}
	if err := w.Write(Row(r)); err != nil {
		return errors.ReportError("writing report row", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.ReportError("writing report row", err)
	}
	return f.Close()
}

// logResult writes one line per metric and k.
func logResult(log *logger.Logger, r *Result) {
	log.Info("Evaluated", "queries", r.Queries, "corpus", r.Corpus)

	for _, k := range r.AccuracyAtK {
		log.Info(fmt.Sprintf("Accuracy@%d: %.2f%%", k, r.Accuracy[k]*100))
	}
	for _, k := range r.PrecisionRecallAtK {
		log.Info(fmt.Sprintf("Precision@%d: %.2f%%", k, r.Precision[k]*100))
	}
	for _, k := range r.PrecisionRecallAtK {
		log.Info(fmt.Sprintf("Recall@%d: %.2f%%", k, r.Recall[k]*100))
	}
	for _, k := range r.MRRAtK {
		log.Info(fmt.Sprintf("MRR@%d: %.4f", k, r.MRR[k]))
	}
	for _, k := range r.NDCGAtK {
		log.Info(fmt.Sprintf("NDCG@%d: %.4f", k, r.NDCG[k]))
	}
	for _, k := range r.MAPAtK {
		log.Info(fmt.Sprintf("MAP@%d: %.4f", k, r.MAP[k]))
	}
}
