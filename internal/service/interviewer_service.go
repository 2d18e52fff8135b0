package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/models"
	"github.com/noah-isme/mock-interview-api/internal/observability"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
)

// Interviewer actions.
const (
	ActionStart    = "start"
	ActionHint     = "hint"
	ActionEvaluate = "evaluate"
	ActionFollowup = "followup"
	ActionMessage  = "message"
)

// HistoryWindow is the number of prior turns forwarded to the model.
const HistoryWindow = 10

// FallbackInterviewerReply is used when the model answers with no content.
const FallbackInterviewerReply = "Let's continue. Can you walk me through your approach in more detail?"

const (
	defaultInterviewRole    = "newgrad"
	defaultInterviewCompany = "generic"
)

var interviewerLabel = regexp.MustCompile(`(?i)^\s*Interviewer:\s*`)

var defaultUtterances = map[string]string{
	ActionStart:    "I'm ready to start.",
	ActionHint:     "Can you give me a hint?",
	ActionFollowup: "Can you ask me a follow-up question?",
}

var actionInstructions = map[string]string{
	ActionStart: "This is the start of the interview. Greet the candidate in one sentence, restate the problem briefly " +
		"and ask how they would approach it before writing code.",
	ActionHint: "The candidate asked for a hint. Give one small nudge of at most two sentences. " +
		"Never reveal the full solution and never write code.",
	ActionEvaluate: "React to the candidate's latest statement. Say what is correct or missing in their reasoning " +
		"and ask a clarifying question if something is unclear.",
	ActionFollowup: "Ask exactly one follow-up question about time or space complexity, edge cases or an alternative approach.",
}

// InterviewerService produces one interviewer turn per call.
type InterviewerService interface {
	Reply(ctx context.Context, req dto.InterviewerRequest) (string, error)
	// SpokenReply is Reply with a persona tuned for text-to-speech.
	SpokenReply(ctx context.Context, req dto.InterviewerRequest) (string, error)
}

type interviewerService struct {
	completer ai.Completer
	logger    zerolog.Logger
}

// NewInterviewerService constructs the conversation manager.
func NewInterviewerService(completer ai.Completer, logger zerolog.Logger) InterviewerService {
	return &interviewerService{
		completer: completer,
		logger:    logger.With().Str("component", "interviewer_service").Logger(),
	}
}

func (s *interviewerService) Reply(ctx context.Context, req dto.InterviewerRequest) (string, error) {
	return s.turn(ctx, req, chatPersona)
}

func (s *interviewerService) SpokenReply(ctx context.Context, req dto.InterviewerRequest) (string, error) {
	return s.turn(ctx, req, voicePersona)
}

func (s *interviewerService) turn(ctx context.Context, req dto.InterviewerRequest, persona func(company, role string) string) (string, error) {
	if req.Problem == nil || strings.TrimSpace(req.Problem.Title) == "" || strings.TrimSpace(req.Problem.Prompt) == "" {
		return "", validationError("Missing or invalid 'problem' in request body")
	}

	action := normalizeAction(req.Action)
	utterance := req.Utterance()
	if utterance == "" {
		utterance = defaultUtterances[action]
	}
	if utterance == "" {
		return "", validationError("Missing 'userMessage' in request body")
	}

	role := valueOr(req.Role, defaultInterviewRole)
	company := valueOr(req.Company, defaultInterviewCompany)

	messages := []ai.Message{{Role: ai.RoleSystem, Content: persona(company, role)}}
	if instruction, ok := actionInstructions[action]; ok {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: instruction})
	}
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: problemContext(req, company, role)})
	messages = append(messages, historyMessages(req.Transcript())...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: "Latest candidate message: " + utterance})

	content, err := s.completer.Complete(ctx, ai.CompletionRequest{
		Messages:    messages,
		Temperature: 0.4,
		MaxTokens:   250,
	})
	if err != nil && !errors.Is(err, ai.ErrEmptyResponse) {
		s.logger.Error().Err(err).Str("action", action).Msg("interviewer completion failed")
		return "", classifyLLMError(err)
	}

	observability.InterviewerTurns().WithLabelValues(action).Inc()
	return cleanReply(content), nil
}

// historyMessages keeps the last HistoryWindow turns and tags each with its speaker.
func historyMessages(history []models.ConversationMessage) []ai.Message {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	messages := make([]ai.Message, 0, len(history))
	for _, turn := range history {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		if turn.Role == models.RoleCandidate {
			messages = append(messages, ai.Message{Role: ai.RoleUser, Content: "Candidate: " + turn.Text})
			continue
		}
		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: "Interviewer: " + turn.Text})
	}
	return messages
}

func problemContext(req dto.InterviewerRequest, company, role string) string {
	var b strings.Builder
	b.WriteString("Problem context:\n")
	fmt.Fprintf(&b, "Title: %s\n", req.Problem.Title)
	fmt.Fprintf(&b, "Prompt: %s\n", req.Problem.Prompt)
	fmt.Fprintf(&b, "Constraints: %s\n", valueOr(req.Problem.Constraints, "N/A"))
	fmt.Fprintf(&b, "Company style: %s\n", company)
	fmt.Fprintf(&b, "Role: %s", role)
	if language := strings.TrimSpace(req.Language); language != "" {
		fmt.Fprintf(&b, "\nLanguage: %s", language)
	}
	if code := strings.TrimSpace(req.Code); code != "" {
		fmt.Fprintf(&b, "\n\nCandidate's current code:\n```\n%s\n```", code)
	}
	return b.String()
}

func cleanReply(content string) string {
	reply := strings.TrimSpace(content)
	if reply == "" {
		reply = FallbackInterviewerReply
	}
	return strings.TrimSpace(interviewerLabel.ReplaceAllString(reply, ""))
}

func normalizeAction(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if _, ok := actionInstructions[action]; ok {
		return action
	}
	return ActionMessage
}

func chatPersona(company, _ string) string {
	return fmt.Sprintf(`You are a strict but fair senior software engineer acting as a live coding interviewer.
Guidelines:
- Talk as the INTERVIEWER only (never as the candidate).
- Style: concise, technical, professional, not cheesy.
- Use the given problem as the source of truth.
- Ask targeted follow-up questions.
- If the candidate seems stuck, nudge them with small hints, not full solutions.
- Do NOT mention that you are an AI or language model.
- Do NOT claim you represent %s.
- Only respond with ONE interviewer message per request.`, company)
}

func voicePersona(company, role string) string {
	return fmt.Sprintf(`You are a strict but fair senior software engineer acting as a live coding interviewer.

Rules:
- Speak ONLY as the interviewer (never as the candidate).
- Be concise, technical, and targeted.
- Use the given coding problem as the source of truth.
- Ask focused follow-ups, probe trade-offs, ask for complexity, edge cases, etc.
- If the candidate is stuck, give gentle hints but never the full solution.
- Tailor tone slightly to a %s-style %s interview.
- Do NOT say you are an AI or language model.
- One short response per turn.`, company, role)
}
