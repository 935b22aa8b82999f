package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mnemolabs/mnemo/core"
)

const grpcInvokeMethod = "/mnemo.v1.ToolExecutor/Invoke"

// GRPC delegates tool execution to a remote gRPC service. The wire shape
// mirrors the HTTP executor: a struct carrying {name, arguments} in, a
// struct carrying {status, payload, error_kind, error_message} out. Using
// structpb keeps the client free of generated stubs.
type GRPC struct {
	conn *grpc.ClientConn
}

// NewGRPC dials target (e.g. "localhost:50051") without transport
// security. Connection establishment is lazy; the first Execute call
// surfaces dial failures.
func NewGRPC(target string) (*GRPC, error) {
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create grpc client: %w", err)
	}
	return &GRPC{conn: conn}, nil
}

// Execute sends the call over gRPC. Transport failures are Go errors;
// tool-level failures come back as error-status results.
func (g *GRPC) Execute(ctx context.Context, name string, args json.RawMessage) (*core.ToolResult, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"name":      name,
		"arguments": string(args),
	})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, grpcInvokeMethod, in, out); err != nil {
		return nil, fmt.Errorf("call executor: %w", err)
	}

	fields := out.AsMap()
	status, _ := fields["status"].(string)
	if status == "error" {
		kind, _ := fields["error_kind"].(string)
		message, _ := fields["error_message"].(string)
		errKind := core.ToolErrorKind(kind)
		if errKind == "" {
			errKind = core.ToolErrExecutionFailed
		}
		return core.ErrResult(errKind, message), nil
	}

	payload, _ := fields["payload"].(string)
	return core.OKResult(payload), nil
}

// Close tears down the client connection.
func (g *GRPC) Close() error {
	return g.conn.Close()
}
