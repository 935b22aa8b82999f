package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Episode is one stored record of a past completed task: what was asked,
// which tools were used, and how it turned out. Episodes are immutable once
// written; the embedding is computed once at creation and never mutated.
type Episode struct {
	ID          string
	UserID      string
	TaskSummary string
	Actions     []string
	Outcome     string
	Success     bool
	CreatedAt   time.Time

	// Embedding is the vector for similarity search. Set by the store at
	// Add time; populated on results returned from FindSimilar.
	Embedding []float32

	// Similarity is the query match score on FindSimilar results, in
	// [0, 1]. Zero elsewhere.
	Similarity float32
}

// NewEpisode creates an episode for a completed turn.
func NewEpisode(userID, taskSummary string, actions []string, outcome string, success bool) *Episode {
	return &Episode{
		ID:          uuid.New().String(),
		UserID:      userID,
		TaskSummary: taskSummary,
		Actions:     actions,
		Outcome:     outcome,
		Success:     success,
		CreatedAt:   time.Now().UTC(),
	}
}

// EmbeddingText returns the text representation the store embeds. Task and
// outcome both contribute so that similar goals and similar results cluster.
func (e *Episode) EmbeddingText() string {
	return fmt.Sprintf("Task: %s\nActions: %s\nOutcome: %s",
		e.TaskSummary, strings.Join(e.Actions, ", "), e.Outcome)
}

// Format renders the episode for prompt injection, truncated to maxLen.
func (e *Episode) Format(maxLen int) string {
	status := "Success"
	if !e.Success {
		status = "Failed"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", status, truncate(e.TaskSummary, maxLen/2)))
	if len(e.Actions) > 0 {
		parts = append(parts, fmt.Sprintf("  Actions: %s", truncate(strings.Join(e.Actions, ", "), maxLen/4)))
	}
	if e.Outcome != "" {
		parts = append(parts, fmt.Sprintf("  Outcome: %s", truncate(e.Outcome, maxLen/4)))
	}
	return strings.Join(parts, "\n")
}

// truncate shortens s to maxLen, adding "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
