package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/tools"
)

// Session holds the mutable state of one turn: the staged memory writes,
// the tools invoked so far, and the tool-iteration count. It lives only for
// the duration of Engine.Run.
type Session struct {
	ID       string
	UserID   string
	ThreadID string

	Staging    *tools.FactStaging
	Executions []core.ToolExecution
	Iterations int

	StartedAt time.Time
}

// NewSession creates a session for one turn.
func NewSession(userID, threadID string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ThreadID:  threadID,
		Staging:   &tools.FactStaging{},
		StartedAt: time.Now(),
	}
}

// RecordExecution appends a tool execution to the session.
func (s *Session) RecordExecution(exec core.ToolExecution) {
	s.Executions = append(s.Executions, exec)
}

// ActionSummaries renders the session's tool executions as short action
// labels for episode storage.
func (s *Session) ActionSummaries() []string {
	summaries := make([]string, 0, len(s.Executions))
	for _, exec := range s.Executions {
		summaries = append(summaries, exec.Summary())
	}
	return summaries
}

// Succeeded reports whether every tool invocation in the session came back
// with ok status.
func (s *Session) Succeeded() bool {
	for _, exec := range s.Executions {
		if exec.Result != nil && exec.Result.Status == core.ToolError {
			return false
		}
	}
	return true
}
