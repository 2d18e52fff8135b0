package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/observability"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
	"github.com/noah-isme/mock-interview-api/pkg/tts"
)

// FallbackVoiceFeedback is returned to the client when spoken feedback cannot be produced.
const FallbackVoiceFeedback = "Thanks for your attempt. I'd like to see more detail on your approach and edge cases."

const (
	ttsKeyName          = "ELEVENLABS_API_KEY"
	defaultAudioType    = "audio/mpeg"
	voiceFeedbackPrompt = `You are a senior engineer interviewer.
Given the coding problem and the candidate's answer, produce concise spoken feedback.
Rules:
- Max 4 sentences.
- Speak as if you're talking to the candidate.
- Focus on correctness, complexity, edge cases, and communication.
- Do NOT output code.
- Do NOT mention that you are an AI.
- This feedback will be read aloud with text-to-speech.`
)

var (
	interviewerVoice = tts.VoiceSettings{Stability: 0.5, SimilarityBoost: 0.7}
	feedbackVoice    = tts.VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
)

// VoiceFallbackError means speech synthesis failed after feedback text was produced.
type VoiceFallbackError struct {
	Detail       string
	FallbackText string
}

func (e *VoiceFallbackError) Error() string {
	return "ElevenLabs TTS request failed"
}

// VoiceService turns interviewer replies and feedback into speech.
type VoiceService interface {
	Interview(ctx context.Context, req dto.InterviewerRequest) (dto.VoiceInterviewerResponse, error)
	Feedback(ctx context.Context, req dto.VoiceFeedbackRequest) (dto.VoiceFeedbackResult, error)
}

type voiceService struct {
	interviewer InterviewerService
	completer   ai.Completer
	synthesizer tts.Synthesizer
	logger      zerolog.Logger
}

// NewVoiceService constructs the voice adapter.
func NewVoiceService(interviewer InterviewerService, completer ai.Completer, synthesizer tts.Synthesizer, logger zerolog.Logger) VoiceService {
	return &voiceService{
		interviewer: interviewer,
		completer:   completer,
		synthesizer: synthesizer,
		logger:      logger.With().Str("component", "voice_service").Logger(),
	}
}

// Interview produces an interviewer reply and, when TTS is configured, its audio. Speech
// failures degrade to a text-only response carrying TTSError.
func (s *voiceService) Interview(ctx context.Context, req dto.InterviewerRequest) (dto.VoiceInterviewerResponse, error) {
	req.Action = ""
	reply, err := s.interviewer.SpokenReply(ctx, req)
	if err != nil {
		return dto.VoiceInterviewerResponse{}, err
	}

	resp := dto.VoiceInterviewerResponse{Reply: reply}
	if s.synthesizer == nil || !s.synthesizer.Enabled() {
		return resp, nil
	}

	speech, err := s.synthesizer.Synthesize(ctx, tts.SpeechRequest{Text: reply, Settings: interviewerVoice})
	if err != nil {
		var providerErr *tts.ProviderError
		if errors.As(err, &providerErr) {
			resp.TTSError = strings.TrimSpace(fmt.Sprintf("TTS failed: %d %s", providerErr.StatusCode, providerErr.Body))
			observability.VoiceDegraded().WithLabelValues("voice-interviewer", "provider_status").Inc()
		} else {
			resp.TTSError = fmt.Sprintf("TTS exception: %s", err.Error())
			observability.VoiceDegraded().WithLabelValues("voice-interviewer", "transport").Inc()
		}
		s.logger.Warn().Err(err).Msg("returning interviewer reply without audio")
		return resp, nil
	}

	encoded := base64.StdEncoding.EncodeToString(speech.Audio)
	resp.Audio = &encoded
	return resp, nil
}

// Feedback asks the LLM for short spoken feedback and synthesizes it.
func (s *voiceService) Feedback(ctx context.Context, req dto.VoiceFeedbackRequest) (dto.VoiceFeedbackResult, error) {
	if req.Problem == nil || strings.TrimSpace(req.Problem.Title) == "" || strings.TrimSpace(req.Problem.Prompt) == "" {
		return dto.VoiceFeedbackResult{}, validationError("Missing or invalid 'problem' in request body")
	}
	if strings.TrimSpace(req.Answer) == "" {
		return dto.VoiceFeedbackResult{}, validationError("Missing 'answer' (candidate's code/thoughts) in request body")
	}
	if s.synthesizer == nil || !s.synthesizer.Enabled() {
		return dto.VoiceFeedbackResult{}, &ConfigurationError{Key: ttsKeyName}
	}

	company := valueOr(req.Company, defaultInterviewCompany)
	role := valueOr(req.Role, defaultInterviewRole)

	content, err := s.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: voiceFeedbackPrompt},
			{Role: ai.RoleUser, Content: fmt.Sprintf("Company style: %s, Role: %s\nProblem: %s\n%s\nCandidate answer:\n%s",
				company, role, req.Problem.Title, req.Problem.Prompt, req.Answer)},
		},
		Temperature: 0.4,
		MaxTokens:   250,
	})
	if err != nil && !errors.Is(err, ai.ErrEmptyResponse) {
		s.logger.Error().Err(err).Msg("voice feedback completion failed")
		return dto.VoiceFeedbackResult{}, classifyLLMError(err)
	}

	text := strings.TrimSpace(content)
	if text == "" {
		text = FallbackVoiceFeedback
	}

	speech, err := s.synthesizer.Synthesize(ctx, tts.SpeechRequest{Text: text, Settings: feedbackVoice})
	if err != nil {
		observability.VoiceDegraded().WithLabelValues("voice-feedback", "synthesis_failed").Inc()
		s.logger.Error().Err(err).Msg("voice feedback synthesis failed")
		return dto.VoiceFeedbackResult{}, &VoiceFallbackError{Detail: ttsDetail(err), FallbackText: text}
	}

	return dto.VoiceFeedbackResult{
		Audio:       speech.Audio,
		ContentType: audioContentType(speech),
		Text:        text,
	}, nil
}

func ttsDetail(err error) string {
	var providerErr *tts.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Body
	}
	return err.Error()
}

// audioContentType sniffs the audio bytes and falls back to what the provider claimed.
func audioContentType(speech tts.Speech) string {
	if len(speech.Audio) > 0 {
		if detected := mimetype.Detect(speech.Audio); strings.HasPrefix(detected.String(), "audio/") {
			return detected.String()
		}
	}
	if strings.HasPrefix(speech.ContentType, "audio/") {
		return speech.ContentType
	}
	return defaultAudioType
}
