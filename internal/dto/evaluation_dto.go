package dto

import (
	"encoding/json"

	"github.com/noah-isme/mock-interview-api/internal/models"
)

// EvaluateRequest asks for candidate code to be run against a problem's tests.
type EvaluateRequest struct {
	Code     string          `json:"code" validate:"required"`
	Problem  *models.Problem `json:"problem" validate:"required"`
	Language string          `json:"language" validate:"required"`
}

// TestOutcome reports a single test execution. Actual is null whenever Error is set.
type TestOutcome struct {
	Description string          `json:"description"`
	Input       json.RawMessage `json:"input"`
	Expected    json.RawMessage `json:"expected"`
	Actual      json.RawMessage `json:"actual"`
	Passed      bool            `json:"passed"`
	Error       *string         `json:"error"`
}

// EvaluationResult aggregates test outcomes into a percentage score.
type EvaluationResult struct {
	Results     []TestOutcome `json:"results"`
	PassedCount int           `json:"passedCount"`
	TotalTests  int           `json:"totalTests"`
	Score       int           `json:"score"`
}
