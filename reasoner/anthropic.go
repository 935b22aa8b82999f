// Package reasoner adapts external language model APIs to the core.Reasoner
// interface.
package reasoner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mnemolabs/mnemo/core"
)

const defaultMaxTokens = 4096

// Anthropic implements core.Reasoner on the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// Option configures the Anthropic reasoner.
type Option func(*Anthropic)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(a *Anthropic) { a.model = anthropic.Model(model) }
}

// WithMaxTokens overrides the per-response token cap.
func WithMaxTokens(n int64) Option {
	return func(a *Anthropic) { a.maxTokens = n }
}

// WithAPIKey sets an explicit API key instead of the ANTHROPIC_API_KEY
// environment variable.
func WithAPIKey(key string) Option {
	return func(a *Anthropic) {
		a.client = anthropic.NewClient(option.WithAPIKey(key))
	}
}

// New creates a reasoner backed by the Anthropic API. Without WithAPIKey the
// client reads ANTHROPIC_API_KEY from the environment.
func New(opts ...Option) *Anthropic {
	a := &Anthropic{
		client:    anthropic.NewClient(),
		model:     anthropic.Model("claude-sonnet-4-5"),
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Complete sends the assembled context to the model and returns its text
// and any requested tool calls.
func (a *Anthropic) Complete(ctx context.Context, req *core.ReasonRequest) (*core.ReasonResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  buildMessages(req.History),
		Tools:     buildTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrReasoningService, err)
	}

	out := &core.ReasonResponse{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}
	return out, nil
}

// buildMessages converts log messages to API message params. Tool results
// ride in user-role messages per the Messages API shape.
func buildMessages(history []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range history {
		switch msg.Role {
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case core.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input interface{}
				if err := json.Unmarshal(call.Arguments, &input); err != nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: input,
					},
				})
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}

		case core.RoleTool:
			messages = append(messages,
				anthropic.NewUserMessage(anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.ToolError)))
		}
	}
	return messages
}

func buildTools(defs []core.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := def.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		if required, ok := def.InputSchema["required"].([]string); ok {
			schema.Required = required
		}

		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: schema,
			},
		})
	}
	return tools
}
