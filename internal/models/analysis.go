package models

import (
	"encoding/json"

	"riskscan/internal/risk"
)

// AnalyzeRequest is one question set submitted for risk analysis.
type AnalyzeRequest struct {
	QuestionSetID json.RawMessage `json:"question_set_id"`
	Responses     []ResponseInput `json:"responses"`
}

// ResponseInput is a single survey answer. ID is opaque and echoed back;
// AnswerText is kept raw so non-string values can be coerced.
type ResponseInput struct {
	ID         json.RawMessage `json:"id"`
	AnswerText json.RawMessage `json:"answer_text"`
}

// AnalysisResult is the assessment of one answer.
type AnalysisResult struct {
	QuestionID  json.RawMessage `json:"question_id"`
	RiskLevel   risk.Tier       `json:"risk_level"`
	Probability float64         `json:"probability"`
}

// AnalyzeResponse is returned for a successfully analysed question set.
type AnalyzeResponse struct {
	QuestionSetID    json.RawMessage  `json:"question_set_id"`
	Results          []AnalysisResult `json:"results"`
	OverallRiskLevel risk.Tier        `json:"overall_risk_level"`
	RiskCounts       risk.Counts      `json:"risk_counts"`
	Status           string           `json:"status"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)
