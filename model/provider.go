package model

import (
	"context"
	"errors"
)

// ProviderKind selects the wire protocol an adapter speaks.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderGemini ProviderKind = "gemini"
)

// ProviderConfig carries everything needed to construct an adapter.
type ProviderConfig struct {
	Kind     ProviderKind
	Endpoint string
	Model    string
	APIKey   string
}

// GenerationRequest is the normalized request handed to an adapter. It is
// ephemeral and never persisted.
//
// Messages is the bounded context window, oldest first, with the newest
// user message last. A request with no messages at all is a system-prompt
// only call (the live host loop); each adapter maps that onto its protocol
// however the protocol requires.
//
// Filler is substituted when the provider answers successfully but with
// empty text, so an empty reply never surfaces as an error.
type GenerationRequest struct {
	System   string
	Messages []Message
	Filler   string
}

// Provider is a single-shot text generation backend.
//
// Defined here rather than in the provider package so that engine, prompt
// and provider can all depend on it without an import cycle.
type Provider interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// ErrorKind classifies a failed generation for display and testing.
type ErrorKind string

const (
	ErrNoCredential          ErrorKind = "no_credential"
	ErrEndpointMisconfigured ErrorKind = "endpoint_misconfigured"
	ErrMalformedResponse     ErrorKind = "malformed_response"
	ErrProviderError         ErrorKind = "provider_error"
	ErrNetwork               ErrorKind = "network"
)

// GenerationError is the classified failure an adapter returns. Message is
// already user-presentable; the pipeline surfaces it verbatim.
type GenerationError struct {
	Kind    ErrorKind
	Message string
}

func (e *GenerationError) Error() string {
	return e.Message
}

// AsGenerationError unwraps err into a GenerationError, or wraps a plain
// error as a network failure so callers always get a classified result.
func AsGenerationError(err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	return &GenerationError{Kind: ErrNetwork, Message: err.Error()}
}
