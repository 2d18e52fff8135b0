package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/config"
	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/models"
	"github.com/noah-isme/mock-interview-api/internal/observability"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
)

const (
	feedbackSystemPrompt = `You are a senior software engineer conducting a coding interview.
- Use ONLY the provided problem, candidate code, and test results as ground truth.
- Do NOT claim to be from any specific company.
- Be concise, clear, and structured.
- Do NOT invent tests or behavior that are not shown.
`
	solutionSystemPrompt   = "You are an expert software engineer. You write correct, idiomatic and optimal solutions to coding interview problems."
	comparisonSystemPrompt = "You are a senior software engineer reviewing a candidate's interview solution against an optimal reference. Be fair, specific and brief."
	defaultFeedbackLang    = "javascript"
)

// FeedbackService critiques evaluated submissions with the LLM.
type FeedbackService interface {
	Generate(ctx context.Context, req dto.FeedbackRequest) (dto.FeedbackResponse, error)
}

type feedbackService struct {
	completer   ai.Completer
	validate    *validator.Validate
	defaultMode string
	logger      zerolog.Logger
}

// NewFeedbackService constructs the feedback generator. defaultMode applies when a
// request does not name a mode.
func NewFeedbackService(completer ai.Completer, validate *validator.Validate, defaultMode string, logger zerolog.Logger) FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if defaultMode == "" {
		defaultMode = config.FeedbackModeReference
	}
	return &feedbackService{
		completer:   completer,
		validate:    validate,
		defaultMode: defaultMode,
		logger:      logger.With().Str("component", "feedback_service").Logger(),
	}
}

func (s *feedbackService) Generate(ctx context.Context, req dto.FeedbackRequest) (dto.FeedbackResponse, error) {
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	if err := s.validate.Struct(req); err != nil {
		if req.Problem == nil || req.Code == "" || req.EvalResult == nil {
			return dto.FeedbackResponse{}, validationError("Missing 'problem', 'code', or 'evalResult' in request body")
		}
		return dto.FeedbackResponse{}, validationError("Unsupported feedback mode '%s'", req.Mode)
	}

	mode := req.Mode
	if mode == "" {
		mode = s.defaultMode
	}

	var (
		resp dto.FeedbackResponse
		err  error
	)
	if mode == config.FeedbackModeSingle {
		resp, err = s.single(ctx, req)
	} else {
		resp, err = s.reference(ctx, req)
	}
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	observability.FeedbackScores().WithLabelValues(mode).Observe(float64(resp.Score))
	return resp, nil
}

func (s *feedbackService) single(ctx context.Context, req dto.FeedbackRequest) (dto.FeedbackResponse, error) {
	results, err := json.MarshalIndent(req.EvalResult, "", "  ")
	if err != nil {
		return dto.FeedbackResponse{}, fmt.Errorf("encode evaluation result: %w", err)
	}

	content, err := s.complete(ctx, "single", ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: feedbackSystemPrompt},
			{Role: ai.RoleUser, Content: singleFeedbackPrompt(req, string(results))},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	return dto.FeedbackResponse{Feedback: content, Score: req.EvalResult.Score}, nil
}

// reference asks for an optimal solution first, then for a comparison that ends in a score.
func (s *feedbackService) reference(ctx context.Context, req dto.FeedbackRequest) (dto.FeedbackResponse, error) {
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = defaultFeedbackLang
	}

	solution, err := s.complete(ctx, "solution", ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: solutionSystemPrompt},
			{Role: ai.RoleUser, Content: solutionPrompt(req.Problem, language)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	comparison, err := s.complete(ctx, "comparison", ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: comparisonSystemPrompt},
			{Role: ai.RoleUser, Content: comparisonPrompt(req, language, solution)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	testScore := req.EvalResult.Score
	aiScore, ok := ParseScore(comparison)
	if !ok {
		s.logger.Warn().Str("problem_id", req.Problem.ID).Msg("no score found in comparison, using test score")
		aiScore = testScore
	}

	return dto.FeedbackResponse{
		Feedback:  strings.TrimSpace(stripScoreLine(comparison)),
		Solution:  solution,
		Score:     BlendScore(testScore, aiScore),
		TestScore: &testScore,
		AIScore:   &aiScore,
	}, nil
}

func (s *feedbackService) complete(ctx context.Context, step string, req ai.CompletionRequest) (string, error) {
	content, err := s.completer.Complete(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("step", step).Msg("feedback completion failed")
		return "", classifyLLMError(err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyUpstreamResponse
	}
	return content, nil
}

func singleFeedbackPrompt(req dto.FeedbackRequest, results string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\n", valueOr(req.Role, "unspecified"))
	fmt.Fprintf(&b, "Target company style: %s\n\n", valueOr(req.Company, "generic"))
	writeProblem(&b, req.Problem)
	fmt.Fprintf(&b, "Candidate code:\n```\n%s\n```\n\n", req.Code)
	fmt.Fprintf(&b, "Test results (JSON):\n%s\n\n", results)
	b.WriteString(`Give feedback in this structure:

1. Correctness
- Did the solution pass the tests?
- If some tests failed or there was a runtime error, clearly explain why in 1-3 sentences.

2. Complexity
- Estimate the time and space complexity based on the code.

3. Code Quality & Communication
- Comment on readability, structure, edge cases, and how you'd feel about this in a real interview.

4. Next Steps
- 3 concrete, actionable suggestions to improve.

5. Score
- Overall rating from 1 to 5 for this round (1 = poor, 3 = borderline, 5 = strong pass).`)
	return b.String()
}

func solutionPrompt(problem *models.Problem, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an optimal solution in %s for the following interview problem.\n", language)
	b.WriteString("The entry point must be a function named solve. Return only the code with brief inline comments.\n\n")
	writeProblem(&b, problem)
	return b.String()
}

func comparisonPrompt(req dto.FeedbackRequest, language, solution string) string {
	var b strings.Builder
	writeProblem(&b, req.Problem)
	fmt.Fprintf(&b, "Candidate code (%s):\n```\n%s\n```\n\n", language, req.Code)
	fmt.Fprintf(&b, "Optimal solution:\n```\n%s\n```\n\n", solution)
	fmt.Fprintf(&b, "Tests passed: %d of %d (test score %d).\n\n", req.EvalResult.PassedCount, req.EvalResult.TotalTests, req.EvalResult.Score)
	b.WriteString(`Compare the candidate's code with the optimal solution in under 200 words.
Write exactly 3 short paragraphs and no bullet points: what the candidate did well, where the approach differs from the optimal one, and what to improve.
End with a final line in exactly this form:
SCORE: <integer from 0 to 100>`)
	return b.String()
}

func writeProblem(b *strings.Builder, problem *models.Problem) {
	fmt.Fprintf(b, "Problem title: %s\n", problem.Title)
	fmt.Fprintf(b, "Problem prompt:\n%s\n", problem.Prompt)
	fmt.Fprintf(b, "Constraints: %s\n", valueOr(problem.Constraints, "N/A"))
	if len(problem.Topics) > 0 {
		fmt.Fprintf(b, "Topics: %s\n", strings.Join(problem.Topics, ", "))
	}
	b.WriteString("\n")
}

func valueOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}
