package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DataError reports a dataset that cannot be trained on. Training aborts
// before any fitting when one is returned.
type DataError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	msg := fmt.Sprintf("training data %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataError) Unwrap() error { return e.Err }

// Schema names the CSV columns holding the text and its class label.
type Schema struct {
	TextColumn  string
	ClassColumn string
}

// DefaultSchema expects columns "text" and "class".
func DefaultSchema() Schema {
	return Schema{TextColumn: "text", ClassColumn: "class"}
}

// Sample is one labeled row.
type Sample struct {
	Text  string
	Class string
}

// LoadDataset reads a labeled CSV corpus with a header row.
func LoadDataset(path string, schema Schema) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		reason := "cannot open dataset"
		if errors.Is(err, os.ErrNotExist) {
			reason = fmt.Sprintf("dataset file not found (expected a CSV with columns %q and %q)", schema.TextColumn, schema.ClassColumn)
		}
		return nil, &DataError{Path: path, Reason: reason, Err: err}
	}
	defer f.Close()

	return ReadDataset(f, path, schema)
}

// ReadDataset parses a labeled CSV corpus from r. name is used in errors.
func ReadDataset(r io.Reader, name string, schema Schema) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DataError{Path: name, Reason: "dataset is empty"}
	}
	if err != nil {
		return nil, &DataError{Path: name, Reason: "cannot read header", Err: err}
	}

	textIdx, classIdx := -1, -1
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		switch col {
		case schema.TextColumn:
			textIdx = i
		case schema.ClassColumn:
			classIdx = i
		}
	}
	if textIdx < 0 || classIdx < 0 {
		return nil, &DataError{
			Path:   name,
			Reason: fmt.Sprintf("missing expected columns: want %q and %q, got %v", schema.TextColumn, schema.ClassColumn, header),
		}
	}

	var samples []Sample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataError{Path: name, Reason: fmt.Sprintf("malformed row %d", line), Err: err}
		}
		if textIdx >= len(record) || classIdx >= len(record) {
			return nil, &DataError{Path: name, Reason: fmt.Sprintf("row %d has %d fields, want at least %d", line, len(record), max(textIdx, classIdx)+1)}
		}
		samples = append(samples, Sample{
			Text:  record[textIdx],
			Class: strings.TrimSpace(record[classIdx]),
		})
	}

	if len(samples) == 0 {
		return nil, &DataError{Path: name, Reason: "dataset has a header but no rows"}
	}
	return samples, nil
}

// BinaryLabels returns 1 for samples whose class equals positive, else 0.
func BinaryLabels(samples []Sample, positive string) []int {
	labels := make([]int, len(samples))
	for i, s := range samples {
		if s.Class == positive {
			labels[i] = 1
		}
	}
	return labels
}
