package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"riskscan/internal/risk"
	"riskscan/internal/scorer"
	"riskscan/internal/textproc"
	"riskscan/internal/vectorizer"
)

// ErrModelUnavailable is returned when no usable model artifact is loaded.
var ErrModelUnavailable = errors.New("model not loaded")

const (
	VectorizerFile = "vectorizer.json"
	ScorerFile     = "scorer.json"

	formatVersion = 1
)

// Meta describes the training run that produced an artifact.
type Meta struct {
	RunID         string    `json:"run_id"`
	TrainedAt     time.Time `json:"trained_at"`
	PositiveClass string    `json:"positive_class"`
	NegativeClass string    `json:"negative_class"`
}

// Model is the frozen inference context: normalizer, vectorizer and scorer
// from one training run. It is never mutated once built.
type Model struct {
	normalizer *textproc.Normalizer
	vectorizer *vectorizer.Vectorizer
	scorer     *scorer.Scorer
	meta       Meta
}

// New pairs a vectorizer with a scorer, rejecting a scorer trained against a
// different vocabulary.
func New(norm *textproc.Normalizer, vec *vectorizer.Vectorizer, sc *scorer.Scorer, meta Meta) (*Model, error) {
	if sc.Fingerprint() != vec.Fingerprint() {
		return nil, fmt.Errorf("scorer fingerprint %.12s does not match vectorizer %.12s", sc.Fingerprint(), vec.Fingerprint())
	}
	if sc.Dim() != vec.Dim() {
		return nil, fmt.Errorf("scorer has %d weights but vocabulary has %d terms", sc.Dim(), vec.Dim())
	}
	return &Model{normalizer: norm, vectorizer: vec, scorer: sc, meta: meta}, nil
}

// Score runs the full pipeline for one answer: normalize, vectorize, score.
func (m *Model) Score(text string) float64 {
	return m.scorer.PredictProbability(m.vectorizer.Transform(m.normalizer.Normalize(text)))
}

// Assess scores text and buckets the probability.
func (m *Model) Assess(text string) (float64, risk.Tier) {
	p := m.Score(text)
	return p, risk.TierFor(p)
}

func (m *Model) Normalizer() *textproc.Normalizer   { return m.normalizer }
func (m *Model) Vectorizer() *vectorizer.Vectorizer { return m.vectorizer }
func (m *Model) Scorer() *scorer.Scorer             { return m.scorer }
func (m *Model) Meta() Meta                         { return m.meta }

// Info summarises a loaded model.
type Info struct {
	Fingerprint    string             `json:"fingerprint"`
	VocabularySize int                `json:"vocabulary_size"`
	Vectorizer     vectorizer.Options `json:"vectorizer"`
	Meta
}

// Info describes the model.
func (m *Model) Info() Info {
	return Info{
		Fingerprint:    m.vectorizer.Fingerprint(),
		VocabularySize: m.vectorizer.Dim(),
		Vectorizer:     m.vectorizer.Options(),
		Meta:           m.meta,
	}
}

type vectorizerFile struct {
	Format int              `json:"format"`
	State  vectorizer.State `json:"state"`
}

type scorerFile struct {
	Format int          `json:"format"`
	Meta   Meta         `json:"meta"`
	State  scorer.State `json:"state"`
}

// Save writes both halves of the model into dir. Each file is replaced
// atomically; the scorer goes first so a reader racing the save sees either
// the old pair, or a fingerprint mismatch that Load rejects.
func Save(dir string, m *Model) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	sc, err := json.Marshal(scorerFile{Format: formatVersion, Meta: m.meta, State: m.scorer.State()})
	if err != nil {
		return fmt.Errorf("failed to encode scorer: %w", err)
	}
	vec, err := json.Marshal(vectorizerFile{Format: formatVersion, State: m.vectorizer.State()})
	if err != nil {
		return fmt.Errorf("failed to encode vectorizer: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, ScorerFile), sc); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, VectorizerFile), vec)
}

// Load reads and cross-checks both halves of the model. Every failure wraps
// ErrModelUnavailable.
func Load(dir string, norm *textproc.Normalizer) (*Model, error) {
	var vf vectorizerFile
	if err := readJSON(filepath.Join(dir, VectorizerFile), &vf); err != nil {
		return nil, err
	}
	var sf scorerFile
	if err := readJSON(filepath.Join(dir, ScorerFile), &sf); err != nil {
		return nil, err
	}
	if vf.Format != formatVersion || sf.Format != formatVersion {
		return nil, fmt.Errorf("%w: unsupported artifact format (vectorizer %d, scorer %d)", ErrModelUnavailable, vf.Format, sf.Format)
	}

	vec, err := vectorizer.FromState(vf.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	sc, err := scorer.FromState(sf.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	m, err := New(norm, vec, sc, sf.Meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return m, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrModelUnavailable, filepath.Base(path), err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the target directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
