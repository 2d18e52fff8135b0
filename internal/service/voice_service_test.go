package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
	"github.com/noah-isme/mock-interview-api/pkg/tts"
)

func newVoiceService(completer ai.Completer, synth tts.Synthesizer) VoiceService {
	return NewVoiceService(NewInterviewerService(completer, zerolog.Nop()), completer, synth, zerolog.Nop())
}

func voiceInterviewRequest() dto.InterviewerRequest {
	return dto.InterviewerRequest{Problem: interviewProblem(), UserMessage: "I'd sort first.", Action: ActionHint}
}

func TestVoiceInterviewWithoutTTS(t *testing.T) {
	completer := newStubCompleter(completion{content: "Interviewer: Why sort?"})
	svc := newVoiceService(completer, &stubSynthesizer{})

	resp, err := svc.Interview(context.Background(), voiceInterviewRequest())
	require.NoError(t, err)
	require.Equal(t, "Why sort?", resp.Reply)
	require.Nil(t, resp.Audio)
	require.Empty(t, resp.TTSError)

	// Voice turns always use the free-form instruction set.
	require.NotContains(t, completer.calls()[0].Messages[1].Content, "hint")
}

func TestVoiceInterviewEncodesAudio(t *testing.T) {
	synth := &stubSynthesizer{enabled: true, speech: tts.Speech{Audio: []byte("mp3-bytes"), ContentType: "audio/mpeg"}}
	svc := newVoiceService(newStubCompleter(completion{content: "Walk me through it."}), synth)

	resp, err := svc.Interview(context.Background(), voiceInterviewRequest())
	require.NoError(t, err)
	require.NotNil(t, resp.Audio)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3-bytes")), *resp.Audio)

	require.Len(t, synth.requests, 1)
	require.Equal(t, "Walk me through it.", synth.requests[0].Text)
	require.InDelta(t, 0.7, synth.requests[0].Settings.SimilarityBoost, 0.0001)
	require.InDelta(t, 0.5, synth.requests[0].Settings.Stability, 0.0001)
}

func TestVoiceInterviewDegradesOnTTSFailure(t *testing.T) {
	synth := &stubSynthesizer{enabled: true, err: &tts.ProviderError{StatusCode: 401, Body: "bad key"}}
	svc := newVoiceService(newStubCompleter(completion{content: "Continue."}), synth)

	resp, err := svc.Interview(context.Background(), voiceInterviewRequest())
	require.NoError(t, err)
	require.Equal(t, "Continue.", resp.Reply)
	require.Nil(t, resp.Audio)
	require.Equal(t, "TTS failed: 401 bad key", resp.TTSError)

	synth = &stubSynthesizer{enabled: true, err: errors.New("connection reset")}
	svc = newVoiceService(newStubCompleter(completion{content: "Continue."}), synth)

	resp, err = svc.Interview(context.Background(), voiceInterviewRequest())
	require.NoError(t, err)
	require.Equal(t, "TTS exception: connection reset", resp.TTSError)
}

func voiceFeedbackRequest() dto.VoiceFeedbackRequest {
	return dto.VoiceFeedbackRequest{Problem: interviewProblem(), Answer: "I used a hashmap for O(n)."}
}

func TestVoiceFeedbackSynthesizesText(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	synth := &stubSynthesizer{enabled: true, speech: tts.Speech{Audio: wav, ContentType: "audio/mpeg"}}
	completer := newStubCompleter(completion{content: "Nice use of a hashmap."})
	svc := newVoiceService(completer, synth)

	result, err := svc.Feedback(context.Background(), voiceFeedbackRequest())
	require.NoError(t, err)
	require.Equal(t, wav, result.Audio)
	require.Equal(t, "audio/wav", result.ContentType)
	require.Equal(t, "Nice use of a hashmap.", result.Text)
	require.InDelta(t, 0.75, synth.requests[0].Settings.SimilarityBoost, 0.0001)

	user := completer.calls()[0].Messages[1].Content
	require.Contains(t, user, "Company style: generic, Role: newgrad")
	require.Contains(t, user, "Candidate answer:\nI used a hashmap for O(n).")
}

func TestVoiceFeedbackFallbackText(t *testing.T) {
	synth := &stubSynthesizer{enabled: true, err: &tts.ProviderError{StatusCode: 500, Body: "quota exceeded"}}
	svc := newVoiceService(newStubCompleter(completion{err: ai.ErrEmptyResponse}), synth)

	_, err := svc.Feedback(context.Background(), voiceFeedbackRequest())
	var fallback *VoiceFallbackError
	require.True(t, errors.As(err, &fallback))
	require.Equal(t, "quota exceeded", fallback.Detail)
	require.Equal(t, FallbackVoiceFeedback, fallback.FallbackText)
	require.Equal(t, FallbackVoiceFeedback, synth.requests[0].Text)
}

func TestVoiceFeedbackRequiresTTSKey(t *testing.T) {
	completer := newStubCompleter()
	svc := newVoiceService(completer, &stubSynthesizer{})

	_, err := svc.Feedback(context.Background(), voiceFeedbackRequest())
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "Missing ELEVENLABS_API_KEY on server", cfgErr.Error())
	require.Empty(t, completer.calls())
}

func TestVoiceFeedbackValidation(t *testing.T) {
	svc := newVoiceService(newStubCompleter(), &stubSynthesizer{enabled: true})

	req := voiceFeedbackRequest()
	req.Answer = ""
	_, err := svc.Feedback(context.Background(), req)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Equal(t, "Missing 'answer' (candidate's code/thoughts) in request body", validationErr.Message)
}

func TestAudioContentTypeDefaults(t *testing.T) {
	require.Equal(t, "audio/mpeg", audioContentType(tts.Speech{Audio: []byte("????")}))
	require.Equal(t, "audio/ogg", audioContentType(tts.Speech{Audio: []byte("????"), ContentType: "audio/ogg"}))
}
