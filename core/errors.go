package core

import "errors"

// Sentinel errors for the failure taxonomy. Stores and adapters wrap these
// with fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrStorageUnavailable marks a fact or episode store failure. Fatal to
	// the current operation; the orchestrator aborts the turn without
	// partial writes.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrReasoningService marks a reasoning-service failure. Fatal to the
	// turn, surfaced to the caller, not retried at this layer.
	ErrReasoningService = errors.New("reasoning service error")

	// ErrEmbeddingService marks an embedding failure. Write paths fail
	// explicitly; read paths degrade to empty results.
	ErrEmbeddingService = errors.New("embedding service error")
)

// ToolErrorKind classifies recoverable tool failures. These are fed back to
// the reasoning service as tool-result messages, never raised as turn-fatal
// errors.
type ToolErrorKind string

const (
	ToolErrUnknownTool     ToolErrorKind = "unknown_tool"
	ToolErrPathEscape      ToolErrorKind = "path_escape"
	ToolErrExecutionFailed ToolErrorKind = "execution_failed"
)
