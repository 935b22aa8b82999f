package core

import "context"

// ReasonRequest is the input to one reasoning step: the rendered context
// bundle as a system prompt, the ordered conversation history, and the
// capability descriptors the model may request.
type ReasonRequest struct {
	System  string
	History []Message
	Tools   []ToolDefinition
}

// ReasonResponse is the reasoning service's answer: either a final text
// response, or a non-empty set of requested tool calls (Text may still carry
// interstitial commentary alongside tool calls).
type ReasonResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// Reasoner is the black-box completion boundary. The production
// implementation calls the Anthropic Messages API; tests use scripted stubs.
type Reasoner interface {
	Complete(ctx context.Context, req *ReasonRequest) (*ReasonResponse, error)
}
