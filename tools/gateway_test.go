package tools_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/tools"
)

// stubExecutor records calls and returns a canned result.
type stubExecutor struct {
	calls  []string
	result *core.ToolResult
	err    error
}

func (s *stubExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (*core.ToolResult, error) {
	s.calls = append(s.calls, name)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newGateway(t *testing.T, exec core.ToolExecutor) *tools.Gateway {
	t.Helper()
	registry, err := tools.NewRegistry(tools.BuiltinDefinitions())
	require.NoError(t, err)
	gw, err := tools.NewGateway(registry, exec)
	require.NoError(t, err)
	return gw
}

func TestGateway_UnknownToolIsRecoverable(t *testing.T) {
	exec := &stubExecutor{}
	gw := newGateway(t, exec)

	result := gw.Invoke(context.Background(),
		core.ToolCall{ID: "t1", Name: "launch_rocket", Arguments: json.RawMessage(`{}`)},
		&tools.FactStaging{})

	require.NotNil(t, result)
	assert.Equal(t, core.ToolError, result.Status)
	assert.Equal(t, core.ToolErrUnknownTool, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "launch_rocket")
	assert.Empty(t, exec.calls, "unknown tools must not reach the executor")
}

func TestGateway_DispatchesToExecutor(t *testing.T) {
	exec := &stubExecutor{result: core.OKResult("4")}
	gw := newGateway(t, exec)

	result := gw.Invoke(context.Background(),
		core.ToolCall{ID: "t1", Name: "calculator", Arguments: json.RawMessage(`{"operation":"add","a":2,"b":2}`)},
		&tools.FactStaging{})

	require.NotNil(t, result)
	assert.Equal(t, core.ToolOK, result.Status)
	assert.Equal(t, []string{"calculator"}, exec.calls)
}

func TestGateway_ExecutorErrorBecomesResult(t *testing.T) {
	exec := &stubExecutor{err: fmt.Errorf("disk on fire")}
	gw := newGateway(t, exec)

	result := gw.Invoke(context.Background(),
		core.ToolCall{ID: "t1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.txt"}`)},
		&tools.FactStaging{})

	require.NotNil(t, result)
	assert.Equal(t, core.ToolError, result.Status)
	assert.Equal(t, core.ToolErrExecutionFailed, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "disk on fire")
}

func TestGateway_MemoryToolsStageInsteadOfExecute(t *testing.T) {
	exec := &stubExecutor{}
	gw := newGateway(t, exec)
	staging := &tools.FactStaging{}

	result := gw.Invoke(context.Background(), core.ToolCall{
		ID: "t1", Name: tools.ToolStorePreference,
		Arguments: json.RawMessage(`{"key":"temperature_units","value":"celsius"}`),
	}, staging)
	require.NotNil(t, result)
	assert.Equal(t, core.ToolOK, result.Status)

	result = gw.Invoke(context.Background(), core.ToolCall{
		ID: "t2", Name: tools.ToolStoreFact,
		Arguments: json.RawMessage(`{"content":"lives in Miami"}`),
	}, staging)
	require.NotNil(t, result)
	assert.Equal(t, core.ToolOK, result.Status)

	assert.Empty(t, exec.calls, "memory tools must not reach the executor")
	require.Len(t, staging.Preferences, 1)
	assert.Equal(t, "temperature_units", staging.Preferences[0].Key)
	assert.Equal(t, "celsius", staging.Preferences[0].Value)
	require.Len(t, staging.Facts, 1)
	assert.Equal(t, "general", staging.Facts[0].FactType, "fact_type defaults when omitted")
	assert.Equal(t, "lives in Miami", staging.Facts[0].Content)
}

func TestGateway_StagePreferenceValidatesArguments(t *testing.T) {
	gw := newGateway(t, &stubExecutor{})
	staging := &tools.FactStaging{}

	result := gw.Invoke(context.Background(), core.ToolCall{
		ID: "t1", Name: tools.ToolStorePreference,
		Arguments: json.RawMessage(`{"key":"units"}`),
	}, staging)

	require.NotNil(t, result)
	assert.Equal(t, core.ToolError, result.Status)
	assert.True(t, staging.Empty())
}
