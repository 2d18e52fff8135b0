package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/models"
	"github.com/noah-isme/mock-interview-api/internal/repository"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
)

const generatedProblemJSON = `{
  "id": "rotate-schedule",
  "title": "Rotate Schedule",
  "prompt": "Rotate the shifts by k.",
  "difficulty": "medium",
  "tests": [{"description": "basic", "input": {"shifts": [1,2,3], "k": 1}, "expected": [3,1,2]}]
}`

func testCatalog(t *testing.T) repository.ProblemCatalog {
	t.Helper()
	test := models.TestCase{Description: "d", Input: json.RawMessage(`[1]`), Expected: json.RawMessage(`1`)}
	catalog, err := repository.NewStaticCatalog([]models.Problem{
		{ID: "a", Title: "A", Difficulty: models.DifficultyEasy, Roles: []string{"intern"}, CompanyStyle: []string{"google"}, Tests: []models.TestCase{test}},
		{ID: "b", Title: "B", Difficulty: models.DifficultyMedium, Roles: []string{"newgrad"}, CompanyStyle: []string{"meta"}, Tests: []models.TestCase{test}},
		{ID: "c", Title: "C", Difficulty: models.DifficultyMedium, Roles: []string{"newgrad", "intern"}, CompanyStyle: []string{"google"}, Tests: []models.TestCase{test}},
	})
	require.NoError(t, err)
	return catalog
}

func newRedisStore(t *testing.T) repository.GeneratedProblemStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewRedisProblemStore(client, time.Hour)
}

func TestRandomFiltersCatalog(t *testing.T) {
	svc := NewProblemService(testCatalog(t), nil, newStubCompleter(), zerolog.Nop()).(*problemService)
	svc.pick = func(n int) int { return n - 1 }

	problem, err := svc.Random(context.Background(), dto.ProblemQuery{Company: "Google", Difficulty: "medium"})
	require.NoError(t, err)
	require.Equal(t, "c", problem.ID)

	problem, err = svc.Random(context.Background(), dto.ProblemQuery{Role: "intern", Company: "google", Difficulty: "easy"})
	require.NoError(t, err)
	require.Equal(t, "a", problem.ID)

	_, err = svc.Random(context.Background(), dto.ProblemQuery{Company: "amazon"})
	require.ErrorIs(t, err, ErrProblemNotFound)
}

func TestGenerateParsesFencedJSON(t *testing.T) {
	completer := newStubCompleter(completion{content: "```json\n" + generatedProblemJSON + "\n```"})
	store := newRedisStore(t)
	svc := NewProblemService(testCatalog(t), store, completer, zerolog.Nop())

	problem, err := svc.Generate(context.Background(), dto.ProblemQuery{Company: "Amazon"})
	require.NoError(t, err)
	require.Equal(t, "rotate-schedule", problem.ID)
	require.Len(t, problem.Tests, 1)
	require.JSONEq(t, `{"shifts":[1,2,3],"k":1}`, string(problem.Tests[0].Input))

	call := completer.calls()[0]
	require.True(t, call.JSON)
	require.InDelta(t, 0.4, call.Temperature, 0.0001)
	require.Contains(t, call.Messages[1].Content, `Company style: "amazon"`)
	require.Contains(t, call.Messages[1].Content, `Difficulty: "medium"`)
	require.Contains(t, call.Messages[1].Content, `Role/seniority: "newgrad"`)

	// Generated problems can be fetched again by id.
	loaded, err := svc.Get(context.Background(), "rotate-schedule")
	require.NoError(t, err)
	require.Equal(t, "Rotate Schedule", loaded.Title)
}

func TestGenerateRejectsUnusableOutput(t *testing.T) {
	cases := map[string]struct {
		content string
		reason  string
	}{
		"not json":       {content: "Here is a problem: two sum", reason: ReasonInvalidJSON},
		"missing tests":  {content: `{"id":"x","title":"X","prompt":"p"}`, reason: ReasonMissingFields},
		"tests not list": {content: `{"id":"x","title":"X","prompt":"p","tests":{}}`, reason: ReasonMissingFields},
		"unknown difficulty": {
			content: `{"id":"x","title":"X","prompt":"p","difficulty":"extreme","tests":[{"input":[1],"expected":1}]}`,
			reason:  ReasonMissingFields,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewProblemService(testCatalog(t), nil, newStubCompleter(completion{content: tc.content}), zerolog.Nop())

			_, err := svc.Generate(context.Background(), dto.ProblemQuery{})
			var formatErr *UpstreamFormatError
			require.True(t, errors.As(err, &formatErr))
			require.Equal(t, tc.reason, formatErr.Reason)
			require.Equal(t, tc.content, formatErr.Raw)
		})
	}
}

func TestGenerateLowercasesDifficulty(t *testing.T) {
	content := `{"id":"x","title":"X","prompt":"p","difficulty":" Hard ","tests":[{"input":[1],"expected":1}]}`
	svc := NewProblemService(testCatalog(t), nil, newStubCompleter(completion{content: content}), zerolog.Nop())

	problem, err := svc.Generate(context.Background(), dto.ProblemQuery{})
	require.NoError(t, err)
	require.Equal(t, models.DifficultyHard, problem.Difficulty)
}

func TestGenerateSurfacesProviderErrors(t *testing.T) {
	completer := newStubCompleter(completion{err: &ai.ProviderError{Provider: "OpenRouter", StatusCode: 429, Body: "rate limited"}})
	svc := NewProblemService(testCatalog(t), nil, completer, zerolog.Nop())

	_, err := svc.Generate(context.Background(), dto.ProblemQuery{})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, 429, upstream.Status)
	require.Equal(t, "rate limited", upstream.Body)

	svc = NewProblemService(testCatalog(t), nil, ai.Unconfigured{KeyName: "OPENROUTER_API_KEY"}, zerolog.Nop())
	_, err = svc.Generate(context.Background(), dto.ProblemQuery{})
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "OPENROUTER_API_KEY", cfgErr.Key)
}

func TestGetFallsBackToCatalog(t *testing.T) {
	svc := NewProblemService(testCatalog(t), newRedisStore(t), newStubCompleter(), zerolog.Nop())

	problem, err := svc.Get(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, "B", problem.Title)

	_, err = svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrProblemNotFound)

	_, err = svc.Get(context.Background(), " ")
	require.ErrorIs(t, err, ErrProblemNotFound)
}
