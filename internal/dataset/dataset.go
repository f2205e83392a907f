// Package dataset loads retrieval benchmarks stored in the BEIR directory layout:
//
//	<dir>/corpus.jsonl        {"_id", "title", "text"}
//	<dir>/queries.jsonl       {"_id", "text"}
//	<dir>/qrels/<split>.tsv   query-id, corpus-id, score (header row)
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// DefaultSplit is the qrels split evaluated when none is given.
const DefaultSplit = "test"

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 << 20

type document struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Dataset is a loaded benchmark.
type Dataset struct {
	Name      string
	Split     string
	Queries   []evaluation.Query
	Corpus    []evaluation.CorpusDocument
	Relevance evaluation.RelevanceMap
}

// Load reads the benchmark in dir for the given qrels split.
// Only queries that appear in the qrels are kept, in file order.
func Load(dir, split string) (*Dataset, error) {
	if split == "" {
		split = DefaultSplit
	}

	relevance, err := LoadQrels(filepath.Join(dir, "qrels", split+".tsv"))
	if err != nil {
		return nil, err
	}

	corpus, err := LoadCorpus(filepath.Join(dir, "corpus.jsonl"))
	if err != nil {
		return nil, err
	}

	all, err := LoadQueries(filepath.Join(dir, "queries.jsonl"))
	if err != nil {
		return nil, err
	}
	queries := make([]evaluation.Query, 0, len(relevance))
	for _, q := range all {
		if relevance.Count(q.ID) > 0 {
			queries = append(queries, q)
		}
	}

	return &Dataset{
		Name:      filepath.Base(filepath.Clean(dir)),
		Split:     split,
		Queries:   queries,
		Corpus:    corpus,
		Relevance: relevance,
	}, nil
}

// LoadCorpus reads corpus.jsonl. A document's text is its title and body joined by a space.
func LoadCorpus(path string) ([]evaluation.CorpusDocument, error) {
	var corpus []evaluation.CorpusDocument
	err := readJSONL(path, func(d document) {
		text := strings.TrimSpace(d.Text)
		if title := strings.TrimSpace(d.Title); title != "" {
			text = strings.TrimSpace(title + " " + text)
		}
		corpus = append(corpus, evaluation.CorpusDocument{ID: d.ID, Text: text})
	})
	return corpus, err
}

// LoadQueries reads queries.jsonl.
func LoadQueries(path string) ([]evaluation.Query, error) {
	var queries []evaluation.Query
	err := readJSONL(path, func(d document) {
		queries = append(queries, evaluation.Query{ID: d.ID, Text: strings.TrimSpace(d.Text)})
	})
	return queries, err
}

func readJSONL(path string, fn func(document)) error {
	f, err := os.Open(path)
	if err != nil {
		return openErr(path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var d document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return errors.ValidationError(fmt.Sprintf("invalid JSON record: %v", err)).
				WithDetail("path", path).
				WithDetail("line", strconv.Itoa(line))
		}
		if d.ID == "" {
			return errors.ValidationError("record without _id").
				WithDetail("path", path).
				WithDetail("line", strconv.Itoa(line))
		}
		fn(d)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, "reading "+path, err)
	}
	return nil
}

// LoadQrels reads a tab-separated qrels file. Judgments with a score of 0 or below are
// not relevant.
func LoadQrels(path string) (evaluation.RelevanceMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openErr(path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var judgments []evaluation.RelevanceJudgment
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid qrels row: %v", err)).
				WithDetail("path", path)
		}
		if len(record) < 3 {
			return nil, errors.ValidationError("qrels row needs query-id, corpus-id and score").
				WithDetail("path", path).
				WithDetail("line", strconv.Itoa(line))
		}

		score, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, errors.ValidationError("invalid qrels score").
				WithDetail("path", path).
				WithDetail("line", strconv.Itoa(line)).
				WithDetail("score", record[2])
		}
		judgments = append(judgments, evaluation.RelevanceJudgment{
			QueryID:   strings.TrimSpace(record[0]),
			DocID:     strings.TrimSpace(record[1]),
			Relevance: score,
		})
	}
	return evaluation.RelevanceFromJudgments(judgments), nil
}

func openErr(path string, err error) error {
	if os.IsNotExist(err) {
		return errors.NotFoundError("dataset file").WithDetail("path", path)
	}
	return errors.Wrap(errors.CodeInternal, "opening "+path, err)
}
