package ai

import (
	"context"
	"errors"
	"fmt"
)

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse indicates the provider answered successfully but without content.
var ErrEmptyResponse = errors.New("llm returned no content")

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest describes one chat completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSON asks the provider to constrain output to a JSON object when it supports that.
	JSON bool
}

// Completer produces a chat completion for the given conversation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ProviderError is a non-success response from the LLM provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// MissingCredentialError is returned when the provider has no API key configured.
type MissingCredentialError struct {
	Key string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("Missing %s on server", e.Key)
}

// Unconfigured is the Completer used when no credential is available. It fails every
// call before any network traffic happens.
type Unconfigured struct {
	KeyName string
}

// Complete always reports the missing credential.
func (u Unconfigured) Complete(context.Context, CompletionRequest) (string, error) {
	return "", &MissingCredentialError{Key: u.KeyName}
}
