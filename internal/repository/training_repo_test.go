package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"riskscan/internal/models"
)

func newTestRepo(t *testing.T) *TrainingRepository {
	t.Helper()
	repo, err := NewTrainingRepository(filepath.Join(t.TempDir(), "data", "ledger.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRun(id, fingerprint string, completed time.Time) *models.TrainingRun {
	return &models.TrainingRun{
		ID:              id,
		StartedAt:       completed.Add(-time.Minute),
		CompletedAt:     completed,
		DatasetPath:     "data/suicide_detection.csv",
		ModelDir:        "model",
		PositiveClass:   "suicide",
		TotalSamples:    100,
		PositiveSamples: 40,
		TrainSamples:    80,
		TestSamples:     20,
		VocabularySize:  321,
		Fingerprint:     fingerprint,
		Accuracy:        0.9,
		Report:          []byte(`{"accuracy":0.9}`),
	}
}

func TestTrainingRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveRun(ctx, sampleRun("a", "fp-1", base)))
	require.NoError(t, repo.SaveRun(ctx, sampleRun("b", "fp-2", base.Add(time.Hour))))
	require.NoError(t, repo.SaveRun(ctx, sampleRun("c", "fp-1", base.Add(2*time.Hour))))

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "a", runs[2].ID)

	limited, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	got := runs[0]
	assert.True(t, got.CompletedAt.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, 321, got.VocabularySize)
	assert.InDelta(t, 0.9, got.Accuracy, 1e-12)
	assert.JSONEq(t, `{"accuracy":0.9}`, string(got.Report))
}

func TestTrainingRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, repo.SaveRun(ctx, sampleRun("a", "fp-1", base)))
	require.NoError(t, repo.SaveRun(ctx, sampleRun("b", "fp-2", base.Add(time.Hour))))

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	byFP, err := repo.RunByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "a", byFP.ID)

	_, err = repo.RunByFingerprint(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestTrainingRepository_DuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	run := sampleRun("a", "fp", time.Now())

	require.NoError(t, repo.SaveRun(ctx, run))
	assert.Error(t, repo.SaveRun(ctx, run))
}
