package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/mock-interview-api/internal/repository"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
)

// ErrProblemNotFound indicates no problem matched the request.
var ErrProblemNotFound = repository.ErrProblemNotFound

// ErrEmptyUpstreamResponse indicates the LLM answered without any content.
var ErrEmptyUpstreamResponse = errors.New("Empty response from model")

// ValidationError describes a malformed or incomplete request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// UpstreamError is a non-success response from the LLM or TTS provider.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed with status %d", e.Service, e.Status)
}

// UpstreamFormatError means the LLM output could not be used as a problem.
type UpstreamFormatError struct {
	Reason string
	Raw    string
}

func (e *UpstreamFormatError) Error() string {
	return e.Reason
}

// CompilationError means the candidate code did not load or defines no solve function.
type CompilationError struct {
	Message    string
	TotalTests int
}

func (e *CompilationError) Error() string {
	return "Code compilation failed"
}

// UnsupportedLanguageError rejects evaluation requests for languages other than JavaScript.
type UnsupportedLanguageError struct {
	Language   string
	TotalTests int
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("Language %s is not yet supported for evaluation", e.Language)
}

// ConfigurationError reports a credential the server was started without.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("Missing %s on server", e.Key)
}

// classifyLLMError maps provider failures onto the service error taxonomy.
func classifyLLMError(err error) error {
	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		return &UpstreamError{Service: providerErr.Provider, Status: providerErr.StatusCode, Body: providerErr.Body}
	}

	var missing *ai.MissingCredentialError
	if errors.As(err, &missing) {
		return &ConfigurationError{Key: missing.Key}
	}

	if errors.Is(err, ai.ErrEmptyResponse) {
		return ErrEmptyUpstreamResponse
	}

	return err
}
