package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mnemolabs/mnemo/core"
)

// HTTP delegates tool execution to a remote service speaking a small JSON
// protocol: POST {name, arguments} to the endpoint, receive
// {status, payload} or {status, error_kind, error_message}.
type HTTP struct {
	endpoint string
	client   *http.Client
}

// HTTPOption configures the HTTP executor.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = client }
}

// NewHTTP creates an executor that POSTs tool calls to endpoint.
func NewHTTP(endpoint string, opts ...HTTPOption) (*HTTP, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	h := &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type httpRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type httpResponse struct {
	Status       string `json:"status"`
	Payload      string `json:"payload,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Execute sends the call to the remote executor. Transport failures are Go
// errors; tool-level failures come back as error-status results.
func (h *HTTP) Execute(ctx context.Context, name string, args json.RawMessage) (*core.ToolResult, error) {
	body, err := json.Marshal(httpRequest{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call executor: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned HTTP %d: %s", resp.StatusCode, data)
	}

	var out httpResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if out.Status == "error" {
		kind := core.ToolErrorKind(out.ErrorKind)
		if kind == "" {
			kind = core.ToolErrExecutionFailed
		}
		return core.ErrResult(kind, out.ErrorMessage), nil
	}
	return core.OKResult(out.Payload), nil
}
