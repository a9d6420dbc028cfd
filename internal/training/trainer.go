package training

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"riskscan/internal/artifact"
	"riskscan/internal/models"
	"riskscan/internal/scorer"
	"riskscan/internal/textproc"
	"riskscan/internal/vectorizer"
)

// Config describes one training job.
type Config struct {
	DataPath      string
	Schema        Schema
	PositiveClass string
	NegativeClass string
	TestFraction  float64
	Seed          uint64
	ModelDir      string
	Vectorizer    vectorizer.Options
	Scorer        scorer.Options
}

// RunRecorder stores completed runs.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.TrainingRun) error
}

// Report summarises a completed training job.
type Report struct {
	RunID           string             `json:"run_id"`
	TotalSamples    int                `json:"total_samples"`
	PositiveSamples int                `json:"positive_samples"`
	TrainSamples    int                `json:"train_samples"`
	TestSamples     int                `json:"test_samples"`
	VocabularySize  int                `json:"vocabulary_size"`
	Fingerprint     string             `json:"fingerprint"`
	Iterations      int                `json:"iterations"`
	Vectorizer      vectorizer.Options `json:"vectorizer"`
	Scorer          scorer.Options     `json:"scorer"`
	Evaluation      Evaluation         `json:"evaluation"`
}

// Trainer runs the offline training procedure.
type Trainer struct {
	normalizer *textproc.Normalizer
	recorder   RunRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewTrainer creates a trainer. recorder may be nil.
func NewTrainer(normalizer *textproc.Normalizer, recorder RunRecorder, logger *zap.Logger) *Trainer {
	return &Trainer{
		normalizer: normalizer,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Run loads the dataset, fits the vectorizer and scorer on the train split,
// evaluates on the test split and persists the artifact pair.
func (t *Trainer) Run(ctx context.Context, cfg Config) (*Report, error) {
	started := t.now()
	runID := uuid.New().String()
	log := t.logger.With(zap.String("run_id", runID))

	if cfg.PositiveClass == "" {
		return nil, fmt.Errorf("positive class name is required")
	}
	if cfg.NegativeClass == "" {
		cfg.NegativeClass = "non-" + cfg.PositiveClass
	}
	if cfg.Schema.TextColumn == "" || cfg.Schema.ClassColumn == "" {
		cfg.Schema = DefaultSchema()
	}
	if cfg.TestFraction == 0 {
		cfg.TestFraction = 0.2
	}

	log.Info("Loading dataset", zap.String("path", cfg.DataPath))
	samples, err := LoadDataset(cfg.DataPath, cfg.Schema)
	if err != nil {
		return nil, err
	}
	labels := BinaryLabels(samples, cfg.PositiveClass)
	positives := 0
	for _, y := range labels {
		positives += y
	}
	log.Info("Dataset loaded",
		zap.Int("records", len(samples)),
		zap.Int("positive", positives),
		zap.String("positive_class", cfg.PositiveClass))
	if positives == 0 || positives == len(samples) {
		return nil, &DataError{
			Path:   cfg.DataPath,
			Reason: fmt.Sprintf("column %q must contain both %q and other labels", cfg.Schema.ClassColumn, cfg.PositiveClass),
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("Preprocessing text")
	texts := make([]string, len(samples))
	for i, s := range samples {
		texts[i] = t.normalizer.Normalize(s.Text)
	}

	trainIdx, testIdx, err := StratifiedSplit(labels, cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, &DataError{Path: cfg.DataPath, Reason: "cannot split dataset", Err: err}
	}
	trainTexts, testTexts := pick(texts, trainIdx), pick(texts, testIdx)
	trainLabels, testLabels := pick(labels, trainIdx), pick(labels, testIdx)
	log.Info("Dataset split", zap.Int("train", len(trainIdx)), zap.Int("test", len(testIdx)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("Vectorizing text")
	vec, trainVecs := vectorizer.Fit(trainTexts, cfg.Vectorizer)
	log.Info("Vocabulary built",
		zap.Int("terms", vec.Dim()),
		zap.String("fingerprint", vec.Fingerprint()))

	log.Info("Training logistic regression")
	sc, err := scorer.Fit(trainVecs, trainLabels, vec.Fingerprint(), cfg.Scorer)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scorer: %w", err)
	}
	log.Info("Scorer trained", zap.Int("iterations", sc.Iterations()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds := make([]int, len(testTexts))
	for i, fv := range vec.TransformAll(testTexts) {
		preds[i] = sc.Predict(fv)
	}
	eval, err := Evaluate(testLabels, preds, [2]string{cfg.NegativeClass, cfg.PositiveClass})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}
	log.Info("Evaluation complete", zap.Float64("accuracy", eval.Accuracy))
	log.Sugar().Infof("Classification report:\n%s", eval)

	model, err := artifact.New(t.normalizer, vec, sc, artifact.Meta{
		RunID:         runID,
		TrainedAt:     t.now().UTC(),
		PositiveClass: cfg.PositiveClass,
		NegativeClass: cfg.NegativeClass,
	})
	if err != nil {
		return nil, err
	}
	if err := artifact.Save(cfg.ModelDir, model); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}
	log.Info("Model saved", zap.String("dir", cfg.ModelDir))

	report := &Report{
		RunID:           runID,
		TotalSamples:    len(samples),
		PositiveSamples: positives,
		TrainSamples:    len(trainIdx),
		TestSamples:     len(testIdx),
		VocabularySize:  vec.Dim(),
		Fingerprint:     vec.Fingerprint(),
		Iterations:      sc.Iterations(),
		Vectorizer:      vec.Options(),
		Scorer:          cfg.Scorer,
		Evaluation:      eval,
	}

	if t.recorder != nil {
		if err := t.record(ctx, cfg, report, started); err != nil {
			// The artifact is already in place; a ledger failure does not undo it.
			log.Warn("Failed to record training run", zap.Error(err))
		}
	}

	return report, nil
}

func (t *Trainer) record(ctx context.Context, cfg Config, report *Report, started time.Time) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return t.recorder.SaveRun(ctx, &models.TrainingRun{
		ID:              report.RunID,
		StartedAt:       started,
		CompletedAt:     t.now(),
		DatasetPath:     cfg.DataPath,
		ModelDir:        cfg.ModelDir,
		PositiveClass:   cfg.PositiveClass,
		TotalSamples:    report.TotalSamples,
		PositiveSamples: report.PositiveSamples,
		TrainSamples:    report.TrainSamples,
		TestSamples:     report.TestSamples,
		VocabularySize:  report.VocabularySize,
		Fingerprint:     report.Fingerprint,
		Accuracy:        report.Evaluation.Accuracy,
		Report:          data,
	})
}
