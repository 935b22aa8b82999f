// Package executor provides tool executors: an in-process sandboxed
// implementation of the builtin tools, plus HTTP and gRPC executors for
// delegating execution to a remote service.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mnemolabs/mnemo/core"
)

// Local executes the builtin tools in-process. File operations are
// sandboxed to a workspace directory; any path resolving outside it is
// rejected before touching the filesystem.
type Local struct {
	workspace string
}

// NewLocal creates a local executor rooted at workspace, creating the
// directory if needed.
func NewLocal(workspace string) (*Local, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Local{workspace: abs}, nil
}

// Execute runs the named tool. Tool-level failures come back as
// error-status results, not Go errors.
func (l *Local) Execute(ctx context.Context, name string, args json.RawMessage) (*core.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch name {
	case "calculator":
		return l.calculator(args), nil
	case "read_file":
		return l.readFile(args), nil
	case "write_file":
		return l.writeFile(args), nil
	case "list_files":
		return l.listFiles(args), nil
	case "get_weather":
		return l.getWeather(args), nil
	default:
		return core.ErrResult(core.ToolErrUnknownTool, fmt.Sprintf("tool %q is not implemented locally", name)), nil
	}
}

func (l *Local) calculator(args json.RawMessage) *core.ToolResult {
	var in struct {
		Operation string  `json:"operation"`
		A         float64 `json:"a"`
		B         float64 `json:"b"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("invalid arguments: %v", err))
	}

	var result float64
	switch in.Operation {
	case "add":
		result = in.A + in.B
	case "subtract":
		result = in.A - in.B
	case "multiply":
		result = in.A * in.B
	case "divide":
		if in.B == 0 {
			return core.ErrResult(core.ToolErrExecutionFailed, "division by zero")
		}
		result = in.A / in.B
	default:
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("unsupported operation %q", in.Operation))
	}

	return core.OKResult(strconv.FormatFloat(result, 'f', -1, 64))
}

// resolve maps a relative tool path into the workspace, rejecting anything
// that escapes it.
func (l *Local) resolve(path string) (string, *core.ToolResult) {
	if path == "" {
		path = "."
	}
	if filepath.IsAbs(path) {
		return "", core.ErrResult(core.ToolErrPathEscape, fmt.Sprintf("absolute paths are not allowed: %s", path))
	}

	full := filepath.Clean(filepath.Join(l.workspace, path))
	if full != l.workspace && !strings.HasPrefix(full, l.workspace+string(filepath.Separator)) {
		return "", core.ErrResult(core.ToolErrPathEscape, fmt.Sprintf("path escapes the workspace: %s", path))
	}
	return full, nil
}

func (l *Local) readFile(args json.RawMessage) *core.ToolResult {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("invalid arguments: %v", err))
	}

	full, errResult := l.resolve(in.Path)
	if errResult != nil {
		return errResult
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("read %s: %v", in.Path, err))
	}
	return core.OKResult(string(data))
}

func (l *Local) writeFile(args json.RawMessage) *core.ToolResult {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("invalid arguments: %v", err))
	}
	if in.Path == "" {
		return core.ErrResult(core.ToolErrExecutionFailed, "path is required")
	}

	full, errResult := l.resolve(in.Path)
	if errResult != nil {
		return errResult
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("create parent dirs: %v", err))
	}
	if err := os.WriteFile(full, []byte(in.Content), 0o644); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("write %s: %v", in.Path, err))
	}
	return core.OKResult(fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.Path))
}

func (l *Local) listFiles(args json.RawMessage) *core.ToolResult {
	var in struct {
		Path string `json:"path"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	full, errResult := l.resolve(in.Path)
	if errResult != nil {
		return errResult
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("list %s: %v", in.Path, err))
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return core.OKResult("(empty)")
	}
	return core.OKResult(strings.Join(names, "\n"))
}

// cityWeather is a canned forecast table; this is a demo data source, not a
// live weather API.
var cityWeather = map[string]struct {
	TempC     float64
	Condition string
}{
	"miami":    {31, "sunny"},
	"boston":   {18, "partly cloudy"},
	"london":   {14, "rainy"},
	"tokyo":    {22, "clear"},
	"seattle":  {12, "drizzle"},
	"new york": {24, "cloudy"},
}

func (l *Local) getWeather(args json.RawMessage) *core.ToolResult {
	var in struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("invalid arguments: %v", err))
	}

	w, ok := cityWeather[strings.ToLower(strings.TrimSpace(in.City))]
	if !ok {
		return core.ErrResult(core.ToolErrExecutionFailed, fmt.Sprintf("no weather data for %q", in.City))
	}
	return core.OKResult(fmt.Sprintf("%s: %.0f°C, %s", in.City, w.TempC, w.Condition))
}
