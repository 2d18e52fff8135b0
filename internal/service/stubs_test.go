package service

import (
	"context"
	"sync"

	"github.com/noah-isme/mock-interview-api/pkg/ai"
	"github.com/noah-isme/mock-interview-api/pkg/tts"
)

type completion struct {
	content string
	err     error
}

// stubCompleter replays queued completions and records every request it receives.
type stubCompleter struct {
	mu       sync.Mutex
	replies  []completion
	requests []ai.CompletionRequest
}

func newStubCompleter(replies ...completion) *stubCompleter {
	return &stubCompleter{replies: replies}
}

func (s *stubCompleter) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", nil
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next.content, next.err
}

func (s *stubCompleter) calls() []ai.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.CompletionRequest(nil), s.requests...)
}

type stubSynthesizer struct {
	enabled  bool
	speech   tts.Speech
	err      error
	requests []tts.SpeechRequest
}

func (s *stubSynthesizer) Enabled() bool {
	return s.enabled
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req tts.SpeechRequest) (tts.Speech, error) {
	s.requests = append(s.requests, req)
	return s.speech, s.err
}
