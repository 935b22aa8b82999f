package core

import (
	"context"
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Fact is a durable user-scoped preference. Facts are unique per
// (UserID, Key) and overwritten with last-write-wins semantics.
type Fact struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// UserFact is a freeform fact learned about the user ("Works at Acme Corp").
// Unlike preferences, user facts are append-only rows, not keyed values.
type UserFact struct {
	ID        int64
	UserID    string
	FactType  string
	Content   string
	Source    string
	CreatedAt time.Time
}

// Message is one entry in a thread's conversation history.
// Messages are immutable once appended and strictly ordered by SequenceNo
// within their thread.
type Message struct {
	ThreadID   string
	Role       Role
	Content    string
	SequenceNo int

	// ToolCalls is set on assistant messages that requested tool use.
	ToolCalls []ToolCall

	// ToolCallID and ToolName link a tool-role message back to the
	// assistant request that produced it.
	ToolCallID string
	ToolName   string
	ToolError  bool
}

// ToolCall is a single tool invocation requested by the reasoning service.
// It exists only within one orchestrator step and is never persisted.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolStatus reports whether a tool invocation succeeded.
type ToolStatus string

const (
	ToolOK    ToolStatus = "ok"
	ToolError ToolStatus = "error"
)

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Status ToolStatus

	// Payload holds the tool output when Status is ToolOK.
	Payload string

	// ErrorKind classifies the failure when Status is ToolError.
	ErrorKind ToolErrorKind

	// ErrorMessage is the human-readable failure description fed back to
	// the reasoning service.
	ErrorMessage string
}

// OKResult builds a successful tool result.
func OKResult(payload string) *ToolResult {
	return &ToolResult{Status: ToolOK, Payload: payload}
}

// ErrResult builds a failed tool result.
func ErrResult(kind ToolErrorKind, msg string) *ToolResult {
	return &ToolResult{Status: ToolError, ErrorKind: kind, ErrorMessage: msg}
}

// Text returns the content to feed back to the reasoning service.
func (r *ToolResult) Text() string {
	if r.Status == ToolError {
		return "Error (" + string(r.ErrorKind) + "): " + r.ErrorMessage
	}
	return r.Payload
}

// ToolDefinition describes one capability exposed to the reasoning service.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ToolExecutor is the transport boundary for tool execution. Implementations
// may run tools in-process, over HTTP, or over gRPC; the orchestrator does
// not care which.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error)
}

// ToolExecution records one tool invocation made during a turn, for the
// turn's output and for episode summaries.
type ToolExecution struct {
	Name       string
	Arguments  json.RawMessage
	Result     *ToolResult
	DurationMs int64
}

// Summary renders the execution as a short action label, e.g.
// "get_weather(city=Miami)".
func (e ToolExecution) Summary() string {
	var args map[string]interface{}
	if err := json.Unmarshal(e.Arguments, &args); err != nil || len(args) == 0 {
		return e.Name + "()"
	}
	// Pick one representative argument to keep summaries short.
	for _, key := range []string{"city", "filename", "key", "operation", "query", "fact_type"} {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok {
				return e.Name + "(" + key + "=" + s + ")"
			}
		}
	}
	return e.Name + "()"
}
