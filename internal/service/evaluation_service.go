package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/models"
	"github.com/noah-isme/mock-interview-api/pkg/sandbox"
)

const evaluationLanguage = "javascript"

var jsonNull = json.RawMessage("null")

// EvaluationService runs candidate code against a problem's tests.
type EvaluationService interface {
	Evaluate(ctx context.Context, req dto.EvaluateRequest) (dto.EvaluationResult, error)
}

type evaluationService struct {
	runner   sandbox.Runner
	validate *validator.Validate
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewEvaluationService constructs the evaluator. timeout bounds each test case; zero
// leaves the runner default in place.
func NewEvaluationService(runner sandbox.Runner, validate *validator.Validate, timeout time.Duration, logger zerolog.Logger) EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	return &evaluationService{
		runner:   runner,
		validate: validate,
		timeout:  timeout,
		logger:   logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, req dto.EvaluateRequest) (dto.EvaluationResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.EvaluationResult{}, validationError("Missing 'code', 'problem', or 'language' in request body")
	}
	if req.Problem.Tests == nil {
		return dto.EvaluationResult{}, validationError("Problem must have a 'tests' array")
	}

	tests := req.Problem.Tests
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language != evaluationLanguage {
		return dto.EvaluationResult{}, &UnsupportedLanguageError{Language: req.Language, TotalTests: len(tests)}
	}

	inputs := make([]json.RawMessage, 0, len(tests))
	expected := make([]json.RawMessage, 0, len(tests))
	for _, test := range tests {
		inputs = append(inputs, test.Input)
		expected = append(expected, orNull(test.Expected))
	}

	report, err := s.runner.Run(ctx, sandbox.Request{Source: req.Code, Inputs: inputs, Expected: expected, Timeout: s.timeout})
	if err != nil {
		var compileErr *sandbox.CompileError
		if errors.As(err, &compileErr) {
			return dto.EvaluationResult{}, &CompilationError{Message: compileErr.Message, TotalTests: len(tests)}
		}
		s.logger.Error().Err(err).Str("backend", s.runner.Name()).Str("problem_id", req.Problem.ID).Msg("code execution failed")
		return dto.EvaluationResult{}, fmt.Errorf("run tests: %w", err)
	}
	if len(report.Cases) != len(tests) {
		return dto.EvaluationResult{}, fmt.Errorf("run tests: got %d results for %d tests", len(report.Cases), len(tests))
	}

	result := dto.EvaluationResult{
		Results:    make([]dto.TestOutcome, 0, len(tests)),
		TotalTests: len(tests),
	}
	for i, test := range tests {
		outcome := buildOutcome(test, report.Cases[i])
		if outcome.Passed {
			result.PassedCount++
		}
		result.Results = append(result.Results, outcome)
	}
	result.Score = PercentScore(result.PassedCount, result.TotalTests)

	s.logger.Debug().
		Str("problem_id", req.Problem.ID).
		Int("passed", result.PassedCount).
		Int("total", result.TotalTests).
		Dur("duration", report.Duration).
		Msg("evaluation completed")

	return result, nil
}

func buildOutcome(test models.TestCase, run sandbox.CaseResult) dto.TestOutcome {
	outcome := dto.TestOutcome{
		Description: test.Description,
		Input:       orNull(test.Input),
		Expected:    orNull(test.Expected),
		Actual:      jsonNull,
	}

	if run.Failed() {
		message := run.Error
		outcome.Error = &message
		return outcome
	}
	if !run.Defined {
		return outcome
	}

	// The runner compares inside the JavaScript engine, where JSON number and string
	// semantics differ from encoding/json.
	outcome.Actual = run.Output
	outcome.Passed = run.Matched
	return outcome
}

// PercentScore is the share of passed tests as a whole percentage, rounded half up.
func PercentScore(passed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*passed + total) / (2 * total)
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return jsonNull
	}
	return raw
}
