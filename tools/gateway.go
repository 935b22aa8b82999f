// Package tools defines the tool surface exposed to the reasoning service
// and the gateway that validates and dispatches tool calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mnemolabs/mnemo/core"
)

// StagedPreference is a preference write buffered during a turn.
type StagedPreference struct {
	Key   string
	Value string
}

// StagedFact is a fact write buffered during a turn.
type StagedFact struct {
	FactType string
	Content  string
}

// FactStaging buffers memory-tool writes for one turn. The engine applies
// the buffer when the turn finalizes, so an aborted turn leaves the fact
// store untouched.
type FactStaging struct {
	Preferences []StagedPreference
	Facts       []StagedFact
}

// Empty reports whether the staging buffer holds no writes.
func (s *FactStaging) Empty() bool {
	return len(s.Preferences) == 0 && len(s.Facts) == 0
}

// Gateway validates tool calls against the registry and dispatches them.
// Memory tools are routed into the staging buffer; everything else goes to
// the executor. A failed call never returns a Go error to the caller: it
// becomes an error-status result the reasoning service can react to.
type Gateway struct {
	registry *Registry
	executor core.ToolExecutor
}

// NewGateway creates a gateway over the given registry and executor.
func NewGateway(registry *Registry, executor core.ToolExecutor) (*Gateway, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	return &Gateway{registry: registry, executor: executor}, nil
}

// Definitions returns the definitions of every tool the gateway will accept.
func (g *Gateway) Definitions() []core.ToolDefinition {
	return g.registry.Definitions()
}

// Invoke executes a single tool call and returns its result. staging
// receives the writes of memory tools; it must not be nil when memory tools
// are registered.
func (g *Gateway) Invoke(ctx context.Context, call core.ToolCall, staging *FactStaging) *core.ToolResult {
	if _, ok := g.registry.Lookup(call.Name); !ok {
		log.Printf("[GATEWAY] Rejected unknown tool %q", call.Name)
		return core.ErrResult(core.ToolErrUnknownTool,
			fmt.Sprintf("unknown tool %q; available tools: %s", call.Name, strings.Join(g.registry.Names(), ", ")))
	}

	switch call.Name {
	case ToolStorePreference:
		return stagePreference(call.Arguments, staging)
	case ToolStoreFact:
		return stageFact(call.Arguments, staging)
	}

	start := time.Now()
	result, err := g.executor.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		log.Printf("[GATEWAY] Tool %s failed after %dms: %v", call.Name, time.Since(start).Milliseconds(), err)
		return core.ErrResult(core.ToolErrExecutionFailed, err.Error())
	}
	return result
}

func stagePreference(args json.RawMessage, staging *FactStaging) *core.ToolResult {
	var in struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("invalid arguments: %v", err))
	}
	if in.Key == "" || in.Value == "" {
		return core.ErrResult(core.ToolErrExecutionFailed, "both key and value are required")
	}
	if staging == nil {
		return core.ErrResult(core.ToolErrExecutionFailed, "memory writes are not available in this session")
	}

	staging.Preferences = append(staging.Preferences, StagedPreference{Key: in.Key, Value: in.Value})
	return core.OKResult(fmt.Sprintf("Preference noted: %s = %s", in.Key, in.Value))
}

func stageFact(args json.RawMessage, staging *FactStaging) *core.ToolResult {
	var in struct {
		FactType string `json:"fact_type"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("invalid arguments: %v", err))
	}
	if in.Content == "" {
		return core.ErrResult(core.ToolErrExecutionFailed, "content is required")
	}
	if in.FactType == "" {
		in.FactType = "general"
	}
	if staging == nil {
		return core.ErrResult(core.ToolErrExecutionFailed, "memory writes are not available in this session")
	}

	staging.Facts = append(staging.Facts, StagedFact{FactType: in.FactType, Content: in.Content})
	return core.OKResult(fmt.Sprintf("Fact noted: %s", in.Content))
}
