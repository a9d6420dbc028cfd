package training

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"riskscan/internal/artifact"
	"riskscan/internal/models"
	"riskscan/internal/textproc"
)

func TestReadDataset(t *testing.T) {
	in := "id,text,class\n1,\"I feel hopeless, truly\",suicide\n2,Great day at the park,non-suicide\n"
	samples, err := ReadDataset(strings.NewReader(in), "mem", DefaultSchema())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, Sample{Text: "I feel hopeless, truly", Class: "suicide"}, samples[0])
	assert.Equal(t, []int{1, 0}, BinaryLabels(samples, "suicide"))
}

func TestReadDataset_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty"},
		{"missing class column", "text,label\nhello,x\n", "missing expected columns"},
		{"header only", "text,class\n", "no rows"},
		{"short row", "a,text,class\n1\n", "row 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDataset(strings.NewReader(tt.in), "mem.csv", DefaultSchema())
			require.Error(t, err)
			var dataErr *DataError
			require.ErrorAs(t, err, &dataErr)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "mem.csv")
		})
	}
}

func TestLoadDataset_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.csv")
	_, err := LoadDataset(path, DefaultSchema())

	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), `"text"`)
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 100)
	for i := 0; i < 30; i++ {
		labels[i] = 1
	}

	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	positives := 0
	for _, i := range test {
		positives += labels[i]
	}
	assert.Equal(t, 6, positives)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 100)

	train2, test2, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3, err := StratifiedSplit(labels, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test, test3)
}

func TestStratifiedSplit_Errors(t *testing.T) {
	_, _, err := StratifiedSplit([]int{0, 0, 1}, 0.2, 1)
	assert.Error(t, err)

	_, _, err = StratifiedSplit([]int{0, 0, 1, 1}, 1.5, 1)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	truth := []int{1, 1, 1, 0, 0, 0, 0}
	pred := []int{1, 1, 0, 0, 0, 1, 0}

	ev, err := Evaluate(truth, pred, [2]string{"non-suicide", "suicide"})
	require.NoError(t, err)

	assert.InDelta(t, 5.0/7.0, ev.Accuracy, 1e-12)
	assert.Equal(t, [2][2]int{{3, 1}, {1, 2}}, ev.Confusion)

	pos := ev.Classes[1]
	assert.Equal(t, "suicide", pos.Name)
	assert.InDelta(t, 2.0/3.0, pos.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, pos.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, pos.F1, 1e-12)
	assert.Equal(t, 3, pos.Support)

	neg := ev.Classes[0]
	assert.InDelta(t, 0.75, neg.Precision, 1e-12)
	assert.InDelta(t, 0.75, neg.Recall, 1e-12)
	assert.Equal(t, 4, neg.Support)

	assert.Contains(t, ev.String(), "suicide")
}

func TestEvaluate_ZeroDivision(t *testing.T) {
	ev, err := Evaluate([]int{0, 0}, []int{0, 0}, [2]string{"neg", "pos"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, ev.Classes[1].Precision)
	assert.Equal(t, 0.0, ev.Classes[1].F1)
	assert.Equal(t, 1.0, ev.Accuracy)

	_, err = Evaluate([]int{0}, []int{0, 1}, [2]string{"neg", "pos"})
	assert.Error(t, err)
}

type memRecorder struct {
	runs []*models.TrainingRun
}

func (m *memRecorder) SaveRun(_ context.Context, run *models.TrainingRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	positive := []string{
		"I feel hopeless and want to disappear",
		"I want to end my life",
		"Nobody would miss me if I died",
		"I can't go on, everything is hopeless",
		"I am thinking about killing myself",
		"There is no reason to live anymore",
		"I just want to die tonight",
		"Life is pointless and I want it over",
		"I am a burden and want to disappear forever",
		"Everything hurts and I want to end it",
	}
	negative := []string{
		"Great day at the park with friends",
		"Just finished a wonderful book",
		"Lunch was delicious today",
		"The team won the match last night",
		"Going hiking this weekend, so excited",
		"My cat is sleeping in the sun",
		"Learning to bake bread is fun",
		"Had a relaxing walk by the river",
		"Watching a movie with my family",
		"The new coffee shop downtown is nice",
		"Planted tomatoes in the garden",
		"Enjoying the sunny weather outside",
	}

	path := filepath.Join(t.TempDir(), "corpus.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"", "text", "class"}))
	for i, s := range positive {
		require.NoError(t, w.Write([]string{string(rune('a' + i)), s, "suicide"}))
	}
	for i, s := range negative {
		require.NoError(t, w.Write([]string{string(rune('A' + i)), s, "non-suicide"}))
	}
	w.Flush()
	require.NoError(t, w.Error())
	require.NoError(t, f.Close())
	return path
}

func TestTrainer_Run(t *testing.T) {
	dataPath := writeCorpus(t)
	modelDir := filepath.Join(t.TempDir(), "model")
	rec := &memRecorder{}
	norm := textproc.NewNormalizer()

	trainer := NewTrainer(norm, rec, zap.NewNop())
	report, err := trainer.Run(context.Background(), Config{
		DataPath:      dataPath,
		PositiveClass: "suicide",
		TestFraction:  0.2,
		Seed:          42,
		ModelDir:      modelDir,
	})
	require.NoError(t, err)

	assert.Equal(t, 22, report.TotalSamples)
	assert.Equal(t, 10, report.PositiveSamples)
	assert.Equal(t, 22, report.TrainSamples+report.TestSamples)
	assert.Equal(t, 4, report.TestSamples)
	assert.Positive(t, report.VocabularySize)
	assert.Len(t, report.Evaluation.Classes, 2)
	assert.Equal(t, "non-suicide", report.Evaluation.Classes[0].Name)

	cm := report.Evaluation.Confusion
	assert.Equal(t, report.TestSamples, cm[0][0]+cm[0][1]+cm[1][0]+cm[1][1])

	model, err := artifact.Load(modelDir, norm)
	require.NoError(t, err)
	assert.Equal(t, report.Fingerprint, model.Info().Fingerprint)
	assert.Equal(t, report.RunID, model.Meta().RunID)
	assert.Equal(t, "suicide", model.Meta().PositiveClass)

	assert.Greater(t,
		model.Score("I want to end my life, everything is hopeless"),
		model.Score("Great walk in the park with friends"))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, report.RunID, rec.runs[0].ID)
	assert.Equal(t, report.Fingerprint, rec.runs[0].Fingerprint)
	assert.NotEmpty(t, rec.runs[0].Report)
}

func TestTrainer_Run_FailsBeforeFitting(t *testing.T) {
	modelDir := filepath.Join(t.TempDir(), "model")
	trainer := NewTrainer(textproc.NewNormalizer(), nil, zap.NewNop())

	_, err := trainer.Run(context.Background(), Config{
		DataPath:      filepath.Join(t.TempDir(), "missing.csv"),
		PositiveClass: "suicide",
		ModelDir:      modelDir,
	})
	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
	assert.NoDirExists(t, modelDir)

	_, err = trainer.Run(context.Background(), Config{
		DataPath:      writeCorpus(t),
		PositiveClass: "not-a-class",
		ModelDir:      modelDir,
	})
	require.ErrorAs(t, err, &dataErr)
	assert.NoDirExists(t, modelDir)
}
