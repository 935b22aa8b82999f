package memory

import (
	"context"

	"github.com/mnemolabs/mnemo/core"
)

// FactStore is the long-term memory tier: durable, user-scoped preferences
// and freeform facts that persist across threads.
//
// Preferences are keyed values with last-write-wins semantics per
// (user, key). Facts are append-only rows. Both survive restarts and are
// shared by all of a user's threads.
//
// Implementations: sqlite.Store (embedded, production default).
type FactStore interface {
	// PutPreference inserts or overwrites a preference. Concurrent writes
	// to the same (user, key) serialize to last-write-wins.
	PutPreference(ctx context.Context, userID, key, value string) error

	// Preferences returns all preference keys and values for the user.
	// The map may be empty, never nil.
	Preferences(ctx context.Context, userID string) (map[string]string, error)

	// AddFact appends a freeform fact about the user.
	AddFact(ctx context.Context, userID, factType, content, source string) error

	// Facts returns the most recent facts for the user, newest first.
	Facts(ctx context.Context, userID string, limit int) ([]core.UserFact, error)

	// Clear removes all preferences and facts for the user. Other users'
	// data is untouched.
	Clear(ctx context.Context, userID string) error

	// Close releases resources.
	Close() error
}

// EpisodeStore is the episodic memory tier: an append-only store of past
// task executions, each embedded into a vector and retrievable by semantic
// similarity. Similarity search, not keyword match, is what lets the agent
// recall analogous past tasks rather than textually identical ones.
//
// Implementations: chromem.Store (embedded vector DB).
type EpisodeStore interface {
	// Add embeds the episode and persists it, returning an opaque episode
	// id. An embedding failure fails the write explicitly.
	Add(ctx context.Context, ep *Episode) (string, error)

	// FindSimilar embeds queryText with the store's embedder and returns
	// up to k of the user's episodes ranked by descending similarity,
	// ties broken by more recent CreatedAt. Returns fewer than k (zero
	// included) when the store holds fewer episodes. Never returns
	// another user's episodes. Embedder failure on the read path degrades
	// to an empty result rather than an error.
	FindSimilar(ctx context.Context, userID, queryText string, k int) ([]*Episode, error)

	// Recent returns the user's most recent episodes, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]*Episode, error)

	// Clear removes all episodes for the user.
	Clear(ctx context.Context, userID string) error

	// Close releases resources.
	Close() error
}

// ConversationLog is the short-term memory tier: per-thread ordered message
// history. Threads have no cross-thread visibility; that is the designed
// boundary between short-term and long-term memory.
type ConversationLog interface {
	// Append assigns the next sequence number and stores the message.
	// The returned message carries the assigned SequenceNo.
	Append(ctx context.Context, threadID string, msg core.Message) (core.Message, error)

	// History returns the full ordered message list for the thread. An
	// unknown thread yields an empty history, not an error.
	History(ctx context.Context, threadID string) ([]core.Message, error)

	// Reset clears the thread's history. Other threads and the long-term
	// tiers are untouched.
	Reset(ctx context.Context, threadID string) error
}

// Embedder converts text to vector embeddings. Embedding is the one
// latency-significant step in the memory system; treat Embed as a
// potentially-blocking external call.
//
// Implementations: mock.Embedder (deterministic, tests), onnx.Embedder
// (all-MiniLM-L6-v2, offline, behind the onnx build tag).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size. Fixed system-wide;
	// stores reject embedders whose dimensionality differs from the
	// vectors already held.
	Dimensions() int
}
