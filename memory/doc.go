// Package memory defines the agent's three memory tiers.
//
// Short-term memory is the per-thread conversation history, held by the
// ConversationLog for the lifetime of a thread and cleared on reset.
//
// Long-term memory is the FactStore: durable user-scoped preferences and
// facts, keyed or append-only, shared across all of a user's threads.
//
// Episodic memory is the EpisodeStore: past task executions embedded into
// vectors and recalled by semantic similarity, so the agent can lean on
// analogous past work rather than exact-match lookups.
//
// Architecture:
//   - FactStore: key/value + fact rows (sqlite for production)
//   - EpisodeStore: vector storage (chromem-go embedded DB)
//   - ConversationLog: in-memory ordered message lists, thread-scoped
//   - Embedder: text-to-vector conversion (ONNX local model, or mock)
//
// Integration with the engine:
//   - Context assembly reads all three tiers before each reasoning step
//   - Finalization writes facts and a new episode after the turn commits
package memory
