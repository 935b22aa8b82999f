// Package engine implements the turn orchestrator: it assembles memory
// context, drives the reasoning loop, dispatches tool calls through the
// gateway, and commits memory write-back when the turn finalizes.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory"
	"github.com/mnemolabs/mnemo/tools"
)

const defaultMaxToolIterations = 8

// Memory bundles the three memory tiers the engine reads and writes.
type Memory struct {
	Facts    memory.FactStore
	Episodes memory.EpisodeStore
	Log      memory.ConversationLog
}

// RecordPolicy decides whether a finished turn is stored as an episode.
type RecordPolicy func(input *Input, session *Session) bool

// DefaultRecordPolicy records turns that used tools, plus turns the caller
// marked memorable.
func DefaultRecordPolicy(input *Input, session *Session) bool {
	return len(session.Executions) > 0 || input.Memorable
}

// Engine runs one conversational turn at a time for any number of
// concurrent threads.
type Engine struct {
	reasoner  core.Reasoner
	gateway   *tools.Gateway
	memory    Memory
	assembler *Assembler

	systemPrompt      string
	maxToolIterations int
	recordPolicy      RecordPolicy
}

// Option configures the engine.
type Option func(*Engine)

// WithSystemPrompt overrides the default base system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) { e.systemPrompt = prompt }
}

// WithMaxToolIterations bounds the reason/execute loop per turn.
func WithMaxToolIterations(n int) Option {
	return func(e *Engine) { e.maxToolIterations = n }
}

// WithRecordPolicy overrides the episode recording decision.
func WithRecordPolicy(p RecordPolicy) Option {
	return func(e *Engine) { e.recordPolicy = p }
}

// WithAssembler overrides the default context assembler.
func WithAssembler(a *Assembler) Option {
	return func(e *Engine) { e.assembler = a }
}

// New creates an engine. All three memory tiers and the gateway are
// required.
func New(reasoner core.Reasoner, gateway *tools.Gateway, mem Memory, opts ...Option) (*Engine, error) {
	if reasoner == nil {
		return nil, fmt.Errorf("reasoner is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if mem.Facts == nil || mem.Episodes == nil || mem.Log == nil {
		return nil, fmt.Errorf("all memory tiers are required")
	}

	e := &Engine{
		reasoner:          reasoner,
		gateway:           gateway,
		memory:            mem,
		systemPrompt:      DefaultSystemPrompt,
		maxToolIterations: defaultMaxToolIterations,
		recordPolicy:      DefaultRecordPolicy,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.assembler == nil {
		e.assembler = NewAssembler(mem.Facts, mem.Episodes, mem.Log, 0, 0)
	}
	return e, nil
}

// Input is one user turn.
type Input struct {
	UserID   string
	ThreadID string
	Message  string

	// Memorable forces episode recording even if no tools ran.
	Memorable bool
}

// Output is the result of one completed turn.
type Output struct {
	Text      string
	ToolsUsed []core.ToolExecution

	// EpisodeID is set when the turn was recorded as an episode.
	EpisodeID string

	// Degraded is set when the tool-iteration budget forced finalization
	// while the reasoning service still wanted tools.
	Degraded bool
}

// Run executes one turn to completion. Tool failures are recoverable and
// fed back to the reasoning service; reasoning or storage failures abort
// the turn with nothing committed. A context cancelled before finalization
// likewise commits nothing.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.UserID == "" || input.ThreadID == "" || input.Message == "" {
		return nil, fmt.Errorf("user id, thread id, and message are required")
	}

	session := NewSession(input.UserID, input.ThreadID)
	log.Printf("[ENGINE] Turn start session=%s user=%s thread=%s", session.ID, input.UserID, input.ThreadID)

	if _, err := e.memory.Log.Append(ctx, input.ThreadID, core.Message{
		Role:    core.RoleUser,
		Content: input.Message,
	}); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	bundle := e.assembler.Build(ctx, input.UserID, input.ThreadID, input.Message)
	system := bundle.Render(e.systemPrompt)
	history := bundle.History

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("turn aborted: %w", err)
		}

		// Withhold tools once the iteration budget is spent so the
		// reasoning service has to produce a final answer.
		var defs []core.ToolDefinition
		budgetLeft := session.Iterations < e.maxToolIterations
		if budgetLeft {
			defs = e.gateway.Definitions()
		}

		resp, err := e.reasoner.Complete(ctx, &core.ReasonRequest{
			System:  system,
			History: history,
			Tools:   defs,
		})
		if err != nil {
			return nil, fmt.Errorf("reasoning step: %w", err)
		}

		if len(resp.ToolCalls) == 0 || !budgetLeft {
			degraded := len(resp.ToolCalls) > 0
			if degraded {
				log.Printf("[ENGINE] Dropping %d tool calls after budget of %d iterations",
					len(resp.ToolCalls), e.maxToolIterations)
			}
			return e.finalize(ctx, input, session, resp.Text, degraded)
		}

		if err := e.executeTools(ctx, input.ThreadID, session, resp); err != nil {
			return nil, err
		}
		session.Iterations++

		history, err = e.memory.Log.History(ctx, input.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
	}
}

// executeTools records the assistant's tool request in the log, runs each
// call in order, and appends one tool-result message per call.
func (e *Engine) executeTools(ctx context.Context, threadID string, session *Session, resp *core.ReasonResponse) error {
	if _, err := e.memory.Log.Append(ctx, threadID, core.Message{
		Role:      core.RoleAssistant,
		Content:   resp.Text,
		ToolCalls: resp.ToolCalls,
	}); err != nil {
		return fmt.Errorf("append tool request: %w", err)
	}

	for _, call := range resp.ToolCalls {
		start := time.Now()
		result := e.gateway.Invoke(ctx, call, session.Staging)

		session.RecordExecution(core.ToolExecution{
			Name:       call.Name,
			Arguments:  call.Arguments,
			Result:     result,
			DurationMs: time.Since(start).Milliseconds(),
		})
		log.Printf("[ENGINE] Tool %s status=%s", call.Name, result.Status)

		if _, err := e.memory.Log.Append(ctx, threadID, core.Message{
			Role:       core.RoleTool,
			Content:    result.Text(),
			ToolCallID: call.ID,
			ToolName:   call.Name,
			ToolError:  result.Status == core.ToolError,
		}); err != nil {
			return fmt.Errorf("append tool result: %w", err)
		}
	}
	return nil
}

// finalize is the turn's commit point: the final assistant message is
// appended, staged fact writes are applied, and the episode is recorded.
// Nothing here runs if the context was cancelled earlier in the turn.
func (e *Engine) finalize(ctx context.Context, input *Input, session *Session, text string, degraded bool) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("turn aborted before finalization: %w", err)
	}

	if _, err := e.memory.Log.Append(ctx, input.ThreadID, core.Message{
		Role:    core.RoleAssistant,
		Content: text,
	}); err != nil {
		return nil, fmt.Errorf("append final response: %w", err)
	}

	out := &Output{Text: text, ToolsUsed: session.Executions, Degraded: degraded}

	// Write-back failures surface to the caller, but the response text is
	// already committed to the log and returned alongside the error.
	for _, pref := range session.Staging.Preferences {
		if err := e.memory.Facts.PutPreference(ctx, input.UserID, pref.Key, pref.Value); err != nil {
			return out, fmt.Errorf("commit preference %q: %w", pref.Key, err)
		}
		log.Printf("[MEMORY] Stored preference user=%s %s=%s", input.UserID, pref.Key, pref.Value)
	}
	for _, fact := range session.Staging.Facts {
		if err := e.memory.Facts.AddFact(ctx, input.UserID, fact.FactType, fact.Content, "conversation"); err != nil {
			return out, fmt.Errorf("commit fact: %w", err)
		}
		log.Printf("[MEMORY] Stored fact user=%s %q", input.UserID, fact.Content)
	}

	if e.recordPolicy(input, session) {
		ep := memory.NewEpisode(input.UserID, input.Message, session.ActionSummaries(),
			truncate(text, 300), session.Succeeded())
		id, err := e.memory.Episodes.Add(ctx, ep)
		if err != nil {
			return out, fmt.Errorf("record episode: %w", err)
		}
		out.EpisodeID = id
	}

	log.Printf("[ENGINE] Turn done session=%s tools=%d duration=%s",
		session.ID, len(session.Executions), time.Since(session.StartedAt).Round(time.Millisecond))
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// DefaultSystemPrompt is the base system prompt before memory enrichment.
const DefaultSystemPrompt = `You are a helpful assistant with persistent memory.

GUIDELINES:
- Be conversational and concise.
- Use tools when you need computation, files, or weather data.
- When the user states a durable preference (units, style), store it with store_user_preference.
- When you learn something lasting about the user, store it with store_user_fact.
- Honor stored preferences without being asked again.`
