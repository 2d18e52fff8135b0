package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/models"
	"github.com/noah-isme/mock-interview-api/internal/observability"
	"github.com/noah-isme/mock-interview-api/internal/repository"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
)

// Reasons reported when generated output cannot be used.
const (
	ReasonInvalidJSON     = "Model response was not valid JSON"
	ReasonMissingFields   = "Generated problem missing required fields"
	problemSystemPrompt   = "You ONLY respond with valid JSON exactly matching the requested schema. No explanations. No markdown. No code fences. No surrounding text."
	defaultProblemCompany = "generic"
	defaultProblemLevel   = models.DifficultyMedium
	defaultProblemRole    = "newgrad"
)

//go:embed schemas/generated_problem.schema.json
var generatedProblemSchemaSource string

var generatedProblemSchema = jsonschema.MustCompileString("generated_problem.schema.json", generatedProblemSchemaSource)

var openingFence = regexp.MustCompile("(?i)^```(?:json)?")

// ProblemService supplies interview problems from the catalog or the LLM.
type ProblemService interface {
	Random(ctx context.Context, query dto.ProblemQuery) (models.Problem, error)
	Generate(ctx context.Context, query dto.ProblemQuery) (models.Problem, error)
	Get(ctx context.Context, id string) (models.Problem, error)
}

type problemService struct {
	catalog   repository.ProblemCatalog
	store     repository.GeneratedProblemStore
	completer ai.Completer
	logger    zerolog.Logger
	pick      func(n int) int
}

// NewProblemService constructs the problem service. store may be nil, in which case
// generated problems are not remembered.
func NewProblemService(catalog repository.ProblemCatalog, store repository.GeneratedProblemStore, completer ai.Completer, logger zerolog.Logger) ProblemService {
	return &problemService{
		catalog:   catalog,
		store:     store,
		completer: completer,
		logger:    logger.With().Str("component", "problem_service").Logger(),
		pick:      rand.IntN,
	}
}

func (s *problemService) Random(ctx context.Context, query dto.ProblemQuery) (models.Problem, error) {
	candidates, err := s.catalog.Find(ctx, repository.ProblemFilter{
		Role:       strings.TrimSpace(query.Role),
		Company:    strings.TrimSpace(query.Company),
		Difficulty: strings.TrimSpace(query.Difficulty),
	})
	if err != nil {
		observability.ProblemRequests().WithLabelValues("catalog", "error").Inc()
		return models.Problem{}, fmt.Errorf("find problems: %w", err)
	}
	if len(candidates) == 0 {
		observability.ProblemRequests().WithLabelValues("catalog", "not_found").Inc()
		return models.Problem{}, ErrProblemNotFound
	}

	observability.ProblemRequests().WithLabelValues("catalog", "hit").Inc()
	return candidates[s.pick(len(candidates))], nil
}

func (s *problemService) Generate(ctx context.Context, query dto.ProblemQuery) (models.Problem, error) {
	company := lowerOr(query.Company, defaultProblemCompany)
	difficulty := lowerOr(query.Difficulty, defaultProblemLevel)
	role := lowerOr(query.Role, defaultProblemRole)

	content, err := s.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: problemSystemPrompt},
			{Role: ai.RoleUser, Content: problemPrompt(company, difficulty, role)},
		},
		Temperature: 0.4,
		JSON:        true,
	})
	if err != nil {
		observability.ProblemRequests().WithLabelValues("generated", "upstream_error").Inc()
		return models.Problem{}, classifyLLMError(err)
	}

	problem, err := parseGeneratedProblem(content)
	if err != nil {
		observability.ProblemRequests().WithLabelValues("generated", "invalid").Inc()
		s.logger.Warn().Err(err).Str("company", company).Str("difficulty", difficulty).Msg("generated problem rejected")
		return models.Problem{}, err
	}

	if s.store != nil {
		if err := s.store.Save(ctx, problem); err != nil {
			s.logger.Error().Err(err).Str("problem_id", problem.ID).Msg("failed to remember generated problem")
		}
	}

	observability.ProblemRequests().WithLabelValues("generated", "ok").Inc()
	return problem, nil
}

func (s *problemService) Get(ctx context.Context, id string) (models.Problem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Problem{}, ErrProblemNotFound
	}

	if s.store != nil {
		problem, err := s.store.Get(ctx, id)
		switch {
		case err == nil:
			observability.ProblemRequests().WithLabelValues("lookup", "generated").Inc()
			return problem, nil
		case !errors.Is(err, repository.ErrProblemNotFound):
			s.logger.Warn().Err(err).Str("problem_id", id).Msg("generated problem lookup failed")
		}
	}

	problem, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		observability.ProblemRequests().WithLabelValues("lookup", "not_found").Inc()
		return models.Problem{}, err
	}
	observability.ProblemRequests().WithLabelValues("lookup", "catalog").Inc()
	return problem, nil
}

// parseGeneratedProblem strips a Markdown fence if present, then checks the payload
// against the generated-problem schema before decoding it.
func parseGeneratedProblem(content string) (models.Problem, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = openingFence.ReplaceAllString(trimmed, "")
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	var document any
	if err := json.Unmarshal([]byte(trimmed), &document); err != nil {
		return models.Problem{}, &UpstreamFormatError{Reason: ReasonInvalidJSON, Raw: trimmed}
	}
	// Models often capitalise the difficulty; the catalog filters on lowercase values.
	if fields, ok := document.(map[string]any); ok {
		if difficulty, ok := fields["difficulty"].(string); ok {
			fields["difficulty"] = normalizeDifficulty(difficulty)
		}
	}
	if err := generatedProblemSchema.Validate(document); err != nil {
		return models.Problem{}, &UpstreamFormatError{Reason: ReasonMissingFields, Raw: trimmed}
	}

	var problem models.Problem
	if err := json.Unmarshal([]byte(trimmed), &problem); err != nil {
		return models.Problem{}, &UpstreamFormatError{Reason: ReasonMissingFields, Raw: trimmed}
	}
	problem.Difficulty = normalizeDifficulty(problem.Difficulty)
	return problem, nil
}

func normalizeDifficulty(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func problemPrompt(company, difficulty, role string) string {
	return fmt.Sprintf(`Generate ONE ORIGINAL coding interview problem as strict JSON.

Tailor it to:
- Company style: %[1]q
- Difficulty: %[2]q
- Role/seniority: %[3]q

Rules:
- Must be original. Do NOT copy or paraphrase LeetCode or any other site.
- It should feel like a realistic %[1]s-style interview question for a %[2]s %[3]s.
- Include 3-5 test cases that match the description.
- The solution is a JavaScript function named solve. Each test input is either an array of
  positional arguments or an object whose values are passed in order.
- Output ONLY valid JSON matching this schema (no markdown, no comments, no backticks):

{
  "id": "string-lowercase-with-dashes",
  "title": "Short descriptive title",
  "prompt": "Full problem statement, clear and self-contained.",
  "functionSignature": "Suggested function signature or description",
  "topics": ["arrays", "hashmap"],
  "difficulty": "easy|medium|hard",
  "roles": ["intern","newgrad","swe1"],
  "companyStyle": ["google","meta","amazon","generic"],
  "constraints": "Key constraints and input bounds.",
  "tests": [
    {
      "description": "what this test checks",
      "input": { "example": "shape depends on problem" },
      "expected": "expected output here"
    }
  ]
}`, company, difficulty, role)
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
