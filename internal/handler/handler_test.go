package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/handler"
	"github.com/noah-isme/mock-interview-api/internal/models"
	"github.com/noah-isme/mock-interview-api/internal/service"
)

type mockProblemService struct {
	problem models.Problem
	err     error
	query   dto.ProblemQuery
}

func (m *mockProblemService) Random(_ context.Context, query dto.ProblemQuery) (models.Problem, error) {
	m.query = query
	return m.problem, m.err
}

func (m *mockProblemService) Generate(_ context.Context, query dto.ProblemQuery) (models.Problem, error) {
	m.query = query
	return m.problem, m.err
}

func (m *mockProblemService) Get(context.Context, string) (models.Problem, error) {
	return m.problem, m.err
}

type mockEvaluationService struct {
	result dto.EvaluationResult
	err    error
	calls  int
}

func (m *mockEvaluationService) Evaluate(context.Context, dto.EvaluateRequest) (dto.EvaluationResult, error) {
	m.calls++
	return m.result, m.err
}

type mockFeedbackService struct {
	response dto.FeedbackResponse
	err      error
	calls    int
}

func (m *mockFeedbackService) Generate(context.Context, dto.FeedbackRequest) (dto.FeedbackResponse, error) {
	m.calls++
	return m.response, m.err
}

type mockInterviewerService struct {
	reply string
	err   error
	calls int
}

func (m *mockInterviewerService) Reply(context.Context, dto.InterviewerRequest) (string, error) {
	m.calls++
	return m.reply, m.err
}

func (m *mockInterviewerService) SpokenReply(context.Context, dto.InterviewerRequest) (string, error) {
	m.calls++
	return m.reply, m.err
}

type mockVoiceService struct {
	interview dto.VoiceInterviewerResponse
	feedback  dto.VoiceFeedbackResult
	err       error
}

func (m *mockVoiceService) Interview(context.Context, dto.InterviewerRequest) (dto.VoiceInterviewerResponse, error) {
	return m.interview, m.err
}

func (m *mockVoiceService) Feedback(context.Context, dto.VoiceFeedbackRequest) (dto.VoiceFeedbackResult, error) {
	return m.feedback, m.err
}

type registrar interface {
	Register(router fiber.Router)
}

func newApp(h registrar) *fiber.App {
	app := fiber.New()
	h.Register(app.Group("/api"))
	return app
}

func quietLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestPostEndpointsRejectMalformedJSON(t *testing.T) {
	evaluation := &mockEvaluationService{}
	feedback := &mockFeedbackService{}
	interviewer := &mockInterviewerService{}

	app := fiber.New()
	api := app.Group("/api")
	handler.NewEvaluationHandler(evaluation, quietLogger()).Register(api)
	handler.NewFeedbackHandler(feedback, quietLogger()).Register(api)
	handler.NewInterviewerHandler(interviewer, quietLogger()).Register(api)
	handler.NewVoiceHandler(&mockVoiceService{}, quietLogger()).Register(api)

	for _, path := range []string{"/api/evaluate", "/api/feedback", "/api/interviewer", "/api/voice-feedback", "/api/voice-interviewer"} {
		for _, body := range []string{"{not json", "", "null"} {
			resp := doRequest(t, app, http.MethodPost, path, body)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, path)
			require.Equal(t, map[string]interface{}{"error": "Invalid JSON body"}, decodeBody(t, resp))
		}
	}

	require.Zero(t, evaluation.calls)
	require.Zero(t, feedback.calls)
	require.Zero(t, interviewer.calls)
}

func TestProblemHandlerRandom(t *testing.T) {
	svc := &mockProblemService{problem: models.Problem{ID: "two-sum", Title: "Two Sum"}}
	app := newApp(handler.NewProblemHandler(svc, "openrouter", quietLogger()))

	resp := doRequest(t, app, http.MethodGet, "/api/problem?role=intern&company=google&difficulty=easy", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "two-sum", decodeBody(t, resp)["id"])
	require.Equal(t, dto.ProblemQuery{Role: "intern", Company: "google", Difficulty: "easy"}, svc.query)

	svc.err = service.ErrProblemNotFound
	resp = doRequest(t, app, http.MethodGet, "/api/problem?difficulty=impossible", "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "No matching problem", decodeBody(t, resp)["error"])
}

func TestProblemHandlerGenerateErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body map[string]interface{})
	}{
		{
			name:   "upstream status",
			err:    &service.UpstreamError{Service: "openrouter", Status: 429, Body: "rate limited"},
			status: fiber.StatusBadGateway,
			check: func(t *testing.T, body map[string]interface{}) {
				require.Equal(t, "OpenRouter request failed", body["error"])
				require.Equal(t, float64(429), body["status"])
				require.Equal(t, "rate limited", body["detail"])
			},
		},
		{
			name:   "invalid json",
			err:    &service.UpstreamFormatError{Reason: service.ReasonInvalidJSON, Raw: "not json"},
			status: fiber.StatusBadGateway,
			check: func(t *testing.T, body map[string]interface{}) {
				require.Equal(t, "Model response was not valid JSON", body["error"])
				require.Equal(t, "not json", body["raw"])
			},
		},
		{
			name:   "missing fields",
			err:    &service.UpstreamFormatError{Reason: service.ReasonMissingFields, Raw: `{"id":"x"}`},
			status: fiber.StatusBadGateway,
			check: func(t *testing.T, body map[string]interface{}) {
				require.Equal(t, "Generated problem missing required fields", body["error"])
				require.Equal(t, map[string]interface{}{"id": "x"}, body["raw"])
			},
		},
		{
			name:   "empty content",
			err:    service.ErrEmptyUpstreamResponse,
			status: fiber.StatusBadGateway,
			check: func(t *testing.T, body map[string]interface{}) {
				require.Equal(t, "No content from OpenRouter", body["error"])
			},
		},
		{
			name:   "missing key",
			err:    &service.ConfigurationError{Key: "OPENROUTER_API_KEY"},
			status: fiber.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				require.Equal(t, "Missing OPENROUTER_API_KEY on server", body["error"])
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp(handler.NewProblemHandler(&mockProblemService{err: tc.err}, "openrouter", quietLogger()))

			resp := doRequest(t, app, http.MethodGet, "/api/problems", "")
			require.Equal(t, tc.status, resp.StatusCode)
			tc.check(t, decodeBody(t, resp))
		})
	}
}

func TestProblemHandlerGetByID(t *testing.T) {
	app := newApp(handler.NewProblemHandler(&mockProblemService{err: service.ErrProblemNotFound}, "openrouter", quietLogger()))

	resp := doRequest(t, app, http.MethodGet, "/api/problems/unknown", "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Problem not found", decodeBody(t, resp)["error"])
}

func TestEvaluationHandlerShapes(t *testing.T) {
	body := `{"code":"function solve(){}","language":"javascript","problem":{"id":"p","tests":[]}}`

	svc := &mockEvaluationService{result: dto.EvaluationResult{Results: []dto.TestOutcome{}, PassedCount: 0, TotalTests: 0, Score: 0}}
	app := newApp(handler.NewEvaluationHandler(svc, quietLogger()))
	resp := doRequest(t, app, http.MethodPost, "/api/evaluate", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	payload := decodeBody(t, resp)
	require.Equal(t, []interface{}{}, payload["results"])
	require.Equal(t, float64(0), payload["score"])

	svc.err = &service.CompilationError{Message: "solve function not found. Please define a function named solve.", TotalTests: 3}
	resp = doRequest(t, app, http.MethodPost, "/api/evaluate", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	payload = decodeBody(t, resp)
	require.Equal(t, "Code compilation failed", payload["error"])
	require.Equal(t, "solve function not found. Please define a function named solve.", payload["message"])
	require.Equal(t, []interface{}{}, payload["results"])
	require.Equal(t, float64(0), payload["passedCount"])
	require.Equal(t, float64(3), payload["totalTests"])

	svc.err = &service.UnsupportedLanguageError{Language: "python", TotalTests: 2}
	resp = doRequest(t, app, http.MethodPost, "/api/evaluate", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	payload = decodeBody(t, resp)
	require.Equal(t, "Language python is not yet supported for evaluation", payload["error"])
	require.Equal(t, float64(2), payload["totalTests"])
}

func TestFeedbackHandlerUpstreamError(t *testing.T) {
	svc := &mockFeedbackService{err: &service.UpstreamError{Service: "openrouter", Status: 503, Body: "unavailable"}}
	app := newApp(handler.NewFeedbackHandler(svc, quietLogger()))

	resp := doRequest(t, app, http.MethodPost, "/api/feedback", `{"code":"x"}`)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	require.Equal(t, map[string]interface{}{
		"error":  "OpenRouter request failed",
		"status": float64(503),
		"body":   "unavailable",
	}, decodeBody(t, resp))

	svc.err = service.ErrEmptyUpstreamResponse
	resp = doRequest(t, app, http.MethodPost, "/api/feedback", `{"code":"x"}`)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "No feedback generated", decodeBody(t, resp)["error"])
}

func TestFeedbackHandlerSuccess(t *testing.T) {
	testScore, aiScore := 80, 60
	svc := &mockFeedbackService{response: dto.FeedbackResponse{Feedback: "ok", Solution: "code", Score: 72, TestScore: &testScore, AIScore: &aiScore}}
	app := newApp(handler.NewFeedbackHandler(svc, quietLogger()))

	resp := doRequest(t, app, http.MethodPost, "/api/feedback", `{"code":"x"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	payload := decodeBody(t, resp)
	require.Equal(t, float64(72), payload["score"])
	require.Equal(t, float64(80), payload["testScore"])
	require.Equal(t, float64(60), payload["aiScore"])
}

func TestInterviewerHandlerResponseShapes(t *testing.T) {
	svc := &mockInterviewerService{reply: "Why a hashmap?"}
	app := newApp(handler.NewInterviewerHandler(svc, quietLogger()))

	resp := doRequest(t, app, http.MethodPost, "/api/interviewer", `{"userMessage":"hi"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, map[string]interface{}{"reply": "Why a hashmap?"}, decodeBody(t, resp))

	resp = doRequest(t, app, http.MethodPost, "/api/interviewer", `{"message":"hi","action":"evaluate"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, map[string]interface{}{
		"response": "Why a hashmap?",
		"message":  map[string]interface{}{"role": "assistant", "content": "Why a hashmap?"},
	}, decodeBody(t, resp))

	svc.err = &service.ValidationError{Message: "Missing 'userMessage' in request body"}
	resp = doRequest(t, app, http.MethodPost, "/api/interviewer", `{}`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Missing 'userMessage' in request body", decodeBody(t, resp)["error"])
}

func TestVoiceInterviewerHandler(t *testing.T) {
	audio := "bXAz"
	svc := &mockVoiceService{interview: dto.VoiceInterviewerResponse{Reply: "Go on.", Audio: &audio}}
	app := newApp(handler.NewVoiceHandler(svc, quietLogger()))

	resp := doRequest(t, app, http.MethodPost, "/api/voice-interviewer", `{"userMessage":"hi"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, map[string]interface{}{"reply": "Go on.", "audio": "bXAz"}, decodeBody(t, resp))

	svc.interview = dto.VoiceInterviewerResponse{Reply: "Go on."}
	resp = doRequest(t, app, http.MethodPost, "/api/voice-interviewer", `{"userMessage":"hi"}`)
	require.Equal(t, map[string]interface{}{"reply": "Go on."}, decodeBody(t, resp))

	svc.interview = dto.VoiceInterviewerResponse{Reply: "Go on.", TTSError: "TTS failed: 401 bad key"}
	resp = doRequest(t, app, http.MethodPost, "/api/voice-interviewer", `{"userMessage":"hi"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	payload := decodeBody(t, resp)
	require.Contains(t, payload, "audio")
	require.Nil(t, payload["audio"])
	require.Equal(t, "TTS failed: 401 bad key", payload["ttsError"])
}

func TestVoiceFeedbackHandler(t *testing.T) {
	svc := &mockVoiceService{feedback: dto.VoiceFeedbackResult{Audio: []byte("ID3audio"), ContentType: "audio/mpeg", Text: "Nice."}}
	app := newApp(handler.NewVoiceHandler(svc, quietLogger()))

	resp := doRequest(t, app, http.MethodPost, "/api/voice-feedback", `{"answer":"x"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("ID3audio"), raw))

	svc.err = &service.VoiceFallbackError{Detail: "quota", FallbackText: service.FallbackVoiceFeedback}
	resp = doRequest(t, app, http.MethodPost, "/api/voice-feedback", `{"answer":"x"}`)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	require.Equal(t, map[string]interface{}{
		"error":        "ElevenLabs TTS request failed",
		"detail":       "quota",
		"fallbackText": service.FallbackVoiceFeedback,
	}, decodeBody(t, resp))

	svc.err = &service.UpstreamError{Service: "openrouter", Status: 500, Body: "down"}
	resp = doRequest(t, app, http.MethodPost, "/api/voice-feedback", `{"answer":"x"}`)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	require.Equal(t, map[string]interface{}{"error": "OpenRouter request failed", "detail": "down"}, decodeBody(t, resp))

	svc.err = &service.ConfigurationError{Key: "ELEVENLABS_API_KEY"}
	resp = doRequest(t, app, http.MethodPost, "/api/voice-feedback", `{"answer":"x"}`)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Missing ELEVENLABS_API_KEY on server", decodeBody(t, resp)["error"])
}
