package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"riskscan/internal/artifact"
	"riskscan/internal/models"
	"riskscan/internal/risk"
	"riskscan/internal/textproc"
)

// MalformedInputError rejects a request whose response items are missing
// required fields. The message is safe to return to the caller.
type MalformedInputError struct {
	Index int
	Field string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("responses[%d]: missing required field %q", e.Index, e.Field)
}

// ModelStatus reports whether a model is loaded.
type ModelStatus struct {
	Loaded bool           `json:"model_loaded"`
	Info   *artifact.Info `json:"model,omitempty"`
}

// Analyzer scores question sets against the currently loaded model. The
// model is swapped atomically on reload and is otherwise read-only, so
// Analyze may run concurrently without locks.
type Analyzer struct {
	modelDir   string
	normalizer *textproc.Normalizer
	model      atomic.Pointer[artifact.Model]
	logger     *zap.Logger
}

// NewAnalyzer creates an analyzer in the degraded (no model) state.
func NewAnalyzer(modelDir string, normalizer *textproc.Normalizer, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		modelDir:   modelDir,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Load reads the model artifact from disk and makes it current. On failure
// the previously loaded model, if any, stays in place.
func (a *Analyzer) Load() (*artifact.Info, error) {
	m, err := artifact.Load(a.modelDir, a.normalizer)
	if err != nil {
		a.logger.Warn("Model artifact not loaded", zap.String("dir", a.modelDir), zap.Error(err))
		return nil, err
	}
	a.model.Store(m)

	info := m.Info()
	a.logger.Info("Model artifact loaded",
		zap.String("dir", a.modelDir),
		zap.String("fingerprint", info.Fingerprint),
		zap.Int("vocabulary_size", info.VocabularySize),
		zap.String("run_id", info.RunID))
	return &info, nil
}

// SetModel installs an already built model.
func (a *Analyzer) SetModel(m *artifact.Model) {
	a.model.Store(m)
}

// Model returns the current model or nil.
func (a *Analyzer) Model() *artifact.Model {
	return a.model.Load()
}

// Status reports whether a model is loaded.
func (a *Analyzer) Status() ModelStatus {
	m := a.model.Load()
	if m == nil {
		return ModelStatus{}
	}
	info := m.Info()
	return ModelStatus{Loaded: true, Info: &info}
}

// Analyze scores every answer in the request. Either every item gets a result
// or the whole request fails.
func (a *Analyzer) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	m := a.model.Load()
	if m == nil {
		return nil, artifact.ErrModelUnavailable
	}

	texts := make([]string, len(req.Responses))
	for i, item := range req.Responses {
		if isMissing(item.ID) {
			return nil, &MalformedInputError{Index: i, Field: "id"}
		}
		if isMissing(item.AnswerText) {
			return nil, &MalformedInputError{Index: i, Field: "answer_text"}
		}
		texts[i] = coerceText(item.AnswerText)
	}

	results := make([]models.AnalysisResult, len(texts))
	tiers := make([]risk.Tier, len(texts))
	for i, text := range texts {
		p, tier := m.Assess(text)
		tiers[i] = tier
		results[i] = models.AnalysisResult{
			QuestionID:  req.Responses[i].ID,
			RiskLevel:   tier,
			Probability: p,
		}
	}

	counts := risk.Count(tiers)
	overall := counts.Overall()

	a.logger.Info("Question set analyzed",
		zap.ByteString("question_set_id", req.QuestionSetID),
		zap.Int("responses", len(results)),
		zap.Int("high", counts.High),
		zap.Int("medium", counts.Medium),
		zap.Stringer("overall", overall))

	return &models.AnalyzeResponse{
		QuestionSetID:    req.QuestionSetID,
		Results:          results,
		OverallRiskLevel: overall,
		RiskCounts:       counts,
		Status:           models.StatusSuccess,
	}, nil
}

var jsonNull = []byte("null")

func isMissing(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull)
}

// coerceText turns a JSON value into answer text. Strings decode as-is; any
// other value is used in its literal JSON form. Anything undecodable becomes
// the empty string.
func coerceText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	}
	if !json.Valid(trimmed) {
		return ""
	}
	return string(trimmed)
}
