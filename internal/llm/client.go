// Package llm wraps the Gemini generateContent API and turns its outcomes
// into the replies users see.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoCandidates is returned when the API answers successfully but offers
// no candidate text.
var ErrNoCandidates = errors.New("no candidates in response")

// APIError is a non-2xx answer from the generation API.
type APIError struct {
	StatusCode int
	Message    string // error.message from the body, may be empty
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model  string `json:"model,omitempty"` // overrides the client default
	Prompt string `json:"prompt"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content      string        `json:"content"`
	Model        string        `json:"model,omitempty"`
	FinishReason string        `json:"finishReason,omitempty"`
	Usage        Usage         `json:"usage"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface generation providers implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}
