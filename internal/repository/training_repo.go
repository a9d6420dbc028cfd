package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"riskscan/internal/models"
)

// ErrRunNotFound is returned when no training run matches a lookup.
var ErrRunNotFound = errors.New("training run not found")

// TrainingRepository is the SQLite ledger of completed training runs.
type TrainingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTrainingRepository opens (and creates if needed) the ledger database.
func NewTrainingRepository(dbPath string, logger *zap.Logger) (*TrainingRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite driver serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	repo := &TrainingRepository{
		db:     db,
		logger: logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Training ledger initialized", zap.String("db_path", dbPath))

	return repo, nil
}

func (r *TrainingRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		dataset_path TEXT NOT NULL,
		model_dir TEXT NOT NULL,
		positive_class TEXT NOT NULL,
		total_samples INTEGER NOT NULL,
		positive_samples INTEGER NOT NULL,
		train_samples INTEGER NOT NULL,
		test_samples INTEGER NOT NULL,
		vocabulary_size INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		accuracy REAL NOT NULL,
		report TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_training_runs_completed_at ON training_runs(completed_at);
	CREATE INDEX IF NOT EXISTS idx_training_runs_fingerprint ON training_runs(fingerprint);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveRun records a completed training run.
func (r *TrainingRepository) SaveRun(ctx context.Context, run *models.TrainingRun) error {
	query := `
		INSERT INTO training_runs (
			id, started_at, completed_at, dataset_path, model_dir, positive_class,
			total_samples, positive_samples, train_samples, test_samples,
			vocabulary_size, fingerprint, accuracy, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC(),
		run.CompletedAt.UTC(),
		run.DatasetPath,
		run.ModelDir,
		run.PositiveClass,
		run.TotalSamples,
		run.PositiveSamples,
		run.TrainSamples,
		run.TestSamples,
		run.VocabularySize,
		run.Fingerprint,
		run.Accuracy,
		string(run.Report),
	)
	if err != nil {
		return fmt.Errorf("failed to save training run: %w", err)
	}

	r.logger.Debug("Training run recorded", zap.String("id", run.ID), zap.String("fingerprint", run.Fingerprint))
	return nil
}

const selectRuns = `
	SELECT id, started_at, completed_at, dataset_path, model_dir, positive_class,
	       total_samples, positive_samples, train_samples, test_samples,
	       vocabulary_size, fingerprint, accuracy, report
	FROM training_runs
`

// ListRuns returns the most recent runs first. A non-positive limit returns all runs.
func (r *TrainingRepository) ListRuns(ctx context.Context, limit int) ([]*models.TrainingRun, error) {
	query := selectRuns + ` ORDER BY completed_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently completed run.
func (r *TrainingRepository) LatestRun(ctx context.Context) (*models.TrainingRun, error) {
	row := r.db.QueryRowContext(ctx, selectRuns+` ORDER BY completed_at DESC, id LIMIT 1`)
	return scanRun(row)
}

// RunByFingerprint returns the latest run that produced the given vocabulary.
func (r *TrainingRepository) RunByFingerprint(ctx context.Context, fingerprint string) (*models.TrainingRun, error) {
	row := r.db.QueryRowContext(ctx, selectRuns+` WHERE fingerprint = ? ORDER BY completed_at DESC, id LIMIT 1`, fingerprint)
	return scanRun(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.TrainingRun, error) {
	run := &models.TrainingRun{}
	var report sql.NullString
	var startedAt, completedAt time.Time
	err := s.Scan(
		&run.ID, &startedAt, &completedAt, &run.DatasetPath, &run.ModelDir, &run.PositiveClass,
		&run.TotalSamples, &run.PositiveSamples, &run.TrainSamples, &run.TestSamples,
		&run.VocabularySize, &run.Fingerprint, &run.Accuracy, &report,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan training run: %w", err)
	}
	run.StartedAt = startedAt
	run.CompletedAt = completedAt
	if report.Valid && report.String != "" {
		run.Report = []byte(report.String)
	}
	return run, nil
}

// Close closes the database.
func (r *TrainingRepository) Close() error {
	return r.db.Close()
}
