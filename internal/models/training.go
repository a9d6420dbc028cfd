package models

import (
	"encoding/json"
	"time"
)

// TrainingRun is a ledger entry for one completed training job.
type TrainingRun struct {
	ID              string          `json:"id" db:"id"`
	StartedAt       time.Time       `json:"started_at" db:"started_at"`
	CompletedAt     time.Time       `json:"completed_at" db:"completed_at"`
	DatasetPath     string          `json:"dataset_path" db:"dataset_path"`
	ModelDir        string          `json:"model_dir" db:"model_dir"`
	PositiveClass   string          `json:"positive_class" db:"positive_class"`
	TotalSamples    int             `json:"total_samples" db:"total_samples"`
	PositiveSamples int             `json:"positive_samples" db:"positive_samples"`
	TrainSamples    int             `json:"train_samples" db:"train_samples"`
	TestSamples     int             `json:"test_samples" db:"test_samples"`
	VocabularySize  int             `json:"vocabulary_size" db:"vocabulary_size"`
	Fingerprint     string          `json:"fingerprint" db:"fingerprint"`
	Accuracy        float64         `json:"accuracy" db:"accuracy"`
	Report          json.RawMessage `json:"report,omitempty" db:"report"`
}
