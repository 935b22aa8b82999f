package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/engine"
	"github.com/mnemolabs/mnemo/executor"
	"github.com/mnemolabs/mnemo/memory"
	"github.com/mnemolabs/mnemo/memory/embedder/mock"
	chromemstore "github.com/mnemolabs/mnemo/memory/store/chromem"
	"github.com/mnemolabs/mnemo/memory/store/sqlite"
	"github.com/mnemolabs/mnemo/tools"
)

// scriptedReasoner plays back a fixed sequence of responses and records
// every request it sees.
type scriptedReasoner struct {
	steps    []func(req *core.ReasonRequest) (*core.ReasonResponse, error)
	requests []*core.ReasonRequest
}

func (s *scriptedReasoner) Complete(ctx context.Context, req *core.ReasonRequest) (*core.ReasonResponse, error) {
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step(req)
}

func answer(text string) func(*core.ReasonRequest) (*core.ReasonResponse, error) {
	return func(*core.ReasonRequest) (*core.ReasonResponse, error) {
		return &core.ReasonResponse{Text: text}, nil
	}
}

func callTool(id, name, args string) func(*core.ReasonRequest) (*core.ReasonResponse, error) {
	return func(*core.ReasonRequest) (*core.ReasonResponse, error) {
		return &core.ReasonResponse{ToolCalls: []core.ToolCall{
			{ID: id, Name: name, Arguments: json.RawMessage(args)},
		}}, nil
	}
}

type fixture struct {
	engine   *engine.Engine
	facts    memory.FactStore
	episodes memory.EpisodeStore
	log      memory.ConversationLog
}

func newFixture(t *testing.T, reasoner core.Reasoner, opts ...engine.Option) *fixture {
	t.Helper()

	facts, err := sqlite.New(filepath.Join(t.TempDir(), "facts.db"))
	if err != nil {
		t.Fatalf("failed to create fact store: %v", err)
	}
	t.Cleanup(func() { facts.Close() })

	episodes, err := chromemstore.New(mock.New())
	if err != nil {
		t.Fatalf("failed to create episode store: %v", err)
	}

	local, err := executor.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	registry, err := tools.NewRegistry(tools.BuiltinDefinitions())
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	gateway, err := tools.NewGateway(registry, local)
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}

	conversation := memory.NewLog()
	eng, err := engine.New(reasoner, gateway, engine.Memory{
		Facts:    facts,
		Episodes: episodes,
		Log:      conversation,
	}, opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	return &fixture{engine: eng, facts: facts, episodes: episodes, log: conversation}
}

func TestEngine_PlainAnswer(t *testing.T) {
	ctx := context.Background()
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		answer("Hello! How can I help?"),
	}}
	f := newFixture(t, reasoner)

	out, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Text != "Hello! How can I help?" {
		t.Errorf("unexpected text: %q", out.Text)
	}
	if out.EpisodeID != "" {
		t.Errorf("plain answer should not record an episode, got id %q", out.EpisodeID)
	}

	history, err := f.log.History(ctx, "t1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(history))
	}
	if history[0].Role != core.RoleUser || history[1].Role != core.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", history[0].Role, history[1].Role)
	}
}

func TestEngine_PreferenceStoredThenRecalledAcrossThreads(t *testing.T) {
	ctx := context.Background()

	// Turn 1: the user states a preference; the model stores it.
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		callTool("c1", "store_user_preference", `{"key":"temperature_units","value":"celsius"}`),
		answer("Got it, I'll use Celsius from now on."),
	}}
	f := newFixture(t, reasoner)

	if _, err := f.engine.Run(ctx, &engine.Input{
		UserID: "alex", ThreadID: "t1", Message: "I prefer Celsius",
	}); err != nil {
		t.Fatalf("turn 1 failed: %v", err)
	}

	prefs, err := f.facts.Preferences(ctx, "alex")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if prefs["temperature_units"] != "celsius" {
		t.Fatalf("preference not committed: %v", prefs)
	}

	// Turn 2, new thread: the preference must reach the system prompt and
	// the weather tool must run.
	reasoner.steps = []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		callTool("c2", "get_weather", `{"city":"Miami"}`),
		answer("It's 31°C and sunny in Miami."),
	}

	out, err := f.engine.Run(ctx, &engine.Input{
		UserID: "alex", ThreadID: "t2", Message: "weather in Miami?",
	})
	if err != nil {
		t.Fatalf("turn 2 failed: %v", err)
	}

	firstReq := reasoner.requests[2]
	if !strings.Contains(firstReq.System, "temperature_units: celsius") {
		t.Errorf("system prompt missing stored preference:\n%s", firstReq.System)
	}
	if len(firstReq.History) != 1 {
		t.Errorf("new thread should start with only its own user message, got %d messages", len(firstReq.History))
	}

	if len(out.ToolsUsed) != 1 || out.ToolsUsed[0].Name != "get_weather" {
		t.Fatalf("expected one get_weather execution, got %+v", out.ToolsUsed)
	}
	if out.ToolsUsed[0].Result.Status != core.ToolOK {
		t.Errorf("weather call failed: %s", out.ToolsUsed[0].Result.ErrorMessage)
	}
	if out.EpisodeID == "" {
		t.Errorf("tool-using turn should record an episode")
	}

	episodes, err := f.episodes.FindSimilar(ctx, "alex", "Miami weather", 3)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 recorded episode, got %d", len(episodes))
	}
	if episodes[0].Actions[0] != "get_weather(city=Miami)" {
		t.Errorf("unexpected action summary: %q", episodes[0].Actions[0])
	}
	if !episodes[0].Success {
		t.Errorf("episode should be marked successful")
	}
}

func TestEngine_ToolResultsFedBackInOrder(t *testing.T) {
	ctx := context.Background()
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		func(*core.ReasonRequest) (*core.ReasonResponse, error) {
			return &core.ReasonResponse{ToolCalls: []core.ToolCall{
				{ID: "c1", Name: "calculator", Arguments: json.RawMessage(`{"operation":"add","a":1,"b":2}`)},
				{ID: "c2", Name: "calculator", Arguments: json.RawMessage(`{"operation":"multiply","a":3,"b":4}`)},
			}}, nil
		},
		answer("3 and 12."),
	}}
	f := newFixture(t, reasoner)

	if _, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "do math"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The second reasoning request must contain both tool results, in call
	// order, linked to their call ids.
	second := reasoner.requests[1]
	var toolMsgs []core.Message
	for _, msg := range second.History {
		if msg.Role == core.RoleTool {
			toolMsgs = append(toolMsgs, msg)
		}
	}
	if len(toolMsgs) != 2 {
		t.Fatalf("expected 2 tool messages, got %d", len(toolMsgs))
	}
	if toolMsgs[0].ToolCallID != "c1" || toolMsgs[1].ToolCallID != "c2" {
		t.Errorf("tool results out of order: %s, %s", toolMsgs[0].ToolCallID, toolMsgs[1].ToolCallID)
	}
	if toolMsgs[0].Content != "3" || toolMsgs[1].Content != "12" {
		t.Errorf("unexpected tool payloads: %q, %q", toolMsgs[0].Content, toolMsgs[1].Content)
	}
}

func TestEngine_ToolErrorIsRecoverable(t *testing.T) {
	ctx := context.Background()
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		callTool("c1", "read_file", `{"path":"../secrets.txt"}`),
		answer("I can't read files outside the workspace."),
	}}
	f := newFixture(t, reasoner)

	out, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "read ../secrets.txt"})
	if err != nil {
		t.Fatalf("a tool error must not abort the turn: %v", err)
	}
	if out.Text == "" {
		t.Errorf("turn should finalize with a response")
	}

	second := reasoner.requests[1]
	var toolMsg *core.Message
	for i := range second.History {
		if second.History[i].Role == core.RoleTool {
			toolMsg = &second.History[i]
		}
	}
	if toolMsg == nil {
		t.Fatalf("tool result never reached the reasoning service")
	}
	if !toolMsg.ToolError || !strings.Contains(toolMsg.Content, "path_escape") {
		t.Errorf("expected a path_escape error result, got %q", toolMsg.Content)
	}

	episodes, err := f.episodes.FindSimilar(ctx, "alex", "secrets", 3)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Success {
		t.Errorf("turn with a failed tool should record an unsuccessful episode")
	}
}

func TestEngine_UnknownToolIsRecoverable(t *testing.T) {
	ctx := context.Background()
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		callTool("c1", "teleport", `{}`),
		answer("I don't have that ability."),
	}}
	f := newFixture(t, reasoner)

	out, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "teleport me"})
	if err != nil {
		t.Fatalf("unknown tool must not abort the turn: %v", err)
	}
	if out.Text != "I don't have that ability." {
		t.Errorf("unexpected text: %q", out.Text)
	}
}

func TestEngine_IterationBudgetTerminates(t *testing.T) {
	ctx := context.Background()

	// A reasoner that always wants another tool call.
	var reasoner *scriptedReasoner
	loop := func(req *core.ReasonRequest) (*core.ReasonResponse, error) {
		if len(req.Tools) == 0 {
			return &core.ReasonResponse{Text: "final answer"}, nil
		}
		return &core.ReasonResponse{ToolCalls: []core.ToolCall{
			{ID: "c", Name: "calculator", Arguments: json.RawMessage(`{"operation":"add","a":1,"b":1}`)},
		}}, nil
	}
	reasoner = &scriptedReasoner{}
	for i := 0; i < 10; i++ {
		reasoner.steps = append(reasoner.steps, loop)
	}

	f := newFixture(t, reasoner, engine.WithMaxToolIterations(3))

	out, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "loop forever"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Text != "final answer" {
		t.Errorf("unexpected text: %q", out.Text)
	}
	if len(out.ToolsUsed) != 3 {
		t.Errorf("expected exactly 3 tool executions, got %d", len(out.ToolsUsed))
	}
	// 3 tool rounds plus the forced tool-less finalization call.
	if len(reasoner.requests) != 4 {
		t.Errorf("expected 4 reasoning calls, got %d", len(reasoner.requests))
	}
	if len(reasoner.requests[3].Tools) != 0 {
		t.Errorf("final reasoning call should offer no tools")
	}
	if out.Degraded {
		t.Errorf("a turn that answered once tools were withheld is not degraded")
	}
}

func TestEngine_DropsToolCallsAfterBudget(t *testing.T) {
	ctx := context.Background()

	// Keeps requesting tools even when none are offered.
	stubborn := func(req *core.ReasonRequest) (*core.ReasonResponse, error) {
		return &core.ReasonResponse{
			Text: "trying anyway",
			ToolCalls: []core.ToolCall{
				{ID: "c", Name: "calculator", Arguments: json.RawMessage(`{"operation":"add","a":1,"b":1}`)},
			},
		}, nil
	}
	reasoner := &scriptedReasoner{}
	for i := 0; i < 5; i++ {
		reasoner.steps = append(reasoner.steps, stubborn)
	}

	f := newFixture(t, reasoner, engine.WithMaxToolIterations(2))

	out, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "loop"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !out.Degraded {
		t.Errorf("dropped tool calls should mark the output degraded")
	}
	if len(out.ToolsUsed) != 2 {
		t.Errorf("expected 2 tool executions before the budget, got %d", len(out.ToolsUsed))
	}
}

func TestEngine_CancelledTurnCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Stage a preference, then cancel before the loop can continue.
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		func(*core.ReasonRequest) (*core.ReasonResponse, error) {
			resp := &core.ReasonResponse{ToolCalls: []core.ToolCall{
				{ID: "c1", Name: "store_user_preference", Arguments: json.RawMessage(`{"key":"units","value":"celsius"}`)},
			}}
			cancel()
			return resp, nil
		},
		answer("never reached"),
	}}
	f := newFixture(t, reasoner)

	_, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "I prefer Celsius"})
	if err == nil {
		t.Fatalf("cancelled turn should return an error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	prefs, err := f.facts.Preferences(context.Background(), "alex")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if len(prefs) != 0 {
		t.Errorf("aborted turn must not commit staged writes, got %v", prefs)
	}
	episodes, err := f.episodes.Recent(context.Background(), "alex", 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(episodes) != 0 {
		t.Errorf("aborted turn must not record an episode")
	}
}

func TestEngine_ReasonerFailureAbortsTurn(t *testing.T) {
	ctx := context.Background()
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		func(*core.ReasonRequest) (*core.ReasonResponse, error) {
			return nil, core.ErrReasoningService
		},
	}}
	f := newFixture(t, reasoner)

	_, err := f.engine.Run(ctx, &engine.Input{UserID: "alex", ThreadID: "t1", Message: "hi"})
	if !errors.Is(err, core.ErrReasoningService) {
		t.Fatalf("expected ErrReasoningService, got %v", err)
	}
}

func TestEngine_MemorableInputRecordsEpisodeWithoutTools(t *testing.T) {
	ctx := context.Background()
	reasoner := &scriptedReasoner{steps: []func(*core.ReasonRequest) (*core.ReasonResponse, error){
		answer("Noted."),
	}}
	f := newFixture(t, reasoner)

	out, err := f.engine.Run(ctx, &engine.Input{
		UserID: "alex", ThreadID: "t1", Message: "remember this moment", Memorable: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.EpisodeID == "" {
		t.Errorf("memorable turn should record an episode even without tools")
	}
}
