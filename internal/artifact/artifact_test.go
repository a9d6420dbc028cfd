package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskscan/internal/scorer"
	"riskscan/internal/textproc"
	"riskscan/internal/vectorizer"
)

func buildModel(t *testing.T, docs []string, labels []int) *Model {
	t.Helper()
	norm := textproc.NewNormalizer()
	v, vecs := vectorizer.Fit(norm.NormalizeAll(docs), vectorizer.DefaultOptions())
	sc, err := scorer.Fit(vecs, labels, v.Fingerprint(), scorer.DefaultOptions())
	require.NoError(t, err)

	m, err := New(norm, v, sc, Meta{
		RunID:         "run-1",
		TrainedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		PositiveClass: "suicide",
		NegativeClass: "non-suicide",
	})
	require.NoError(t, err)
	return m
}

var (
	docs   = []string{"I feel hopeless", "I want to die", "Great day at the park", "Lunch with friends"}
	labels = []int{1, 1, 0, 0}
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := buildModel(t, docs, labels)
	require.NoError(t, Save(dir, m))

	assert.FileExists(t, filepath.Join(dir, VectorizerFile))
	assert.FileExists(t, filepath.Join(dir, ScorerFile))

	loaded, err := Load(dir, textproc.NewNormalizer())
	require.NoError(t, err)

	assert.Equal(t, m.Info(), loaded.Info())
	for _, d := range docs {
		assert.Equal(t, m.Score(d), loaded.Score(d))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not be left behind")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir(), textproc.NewNormalizer())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLoad_HalfMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, buildModel(t, docs, labels)))
	require.NoError(t, os.Remove(filepath.Join(dir, ScorerFile)))

	_, err := Load(dir, textproc.NewNormalizer())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLoad_MismatchedPair(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	require.NoError(t, Save(dirA, buildModel(t, docs, labels)))
	require.NoError(t, Save(dirB, buildModel(t, append(docs, "totally different words here"), append(labels, 0))))

	data, err := os.ReadFile(filepath.Join(dirB, ScorerFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dirA, ScorerFile), data, 0o644))

	_, err = Load(dirA, textproc.NewNormalizer())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, buildModel(t, docs, labels)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, VectorizerFile), []byte("{not json"), 0o644))

	_, err := Load(dir, textproc.NewNormalizer())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNew_RejectsForeignScorer(t *testing.T) {
	m := buildModel(t, docs, labels)
	other := buildModel(t, []string{"alpha beta", "gamma delta"}, []int{1, 0})

	_, err := New(m.Normalizer(), m.Vectorizer(), other.Scorer(), m.Meta())
	assert.Error(t, err)
}

func TestModel_Assess(t *testing.T) {
	m := buildModel(t, docs, labels)

	p, tier := m.Assess("")
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
	assert.Contains(t, []string{"low", "medium", "high"}, tier.String())
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.json")
	require.NoError(t, writeFileAtomic(path, []byte("one")))
	require.NoError(t, writeFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}
