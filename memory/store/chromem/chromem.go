// Package chromem implements the episode store on chromem-go, a pure Go
// embedded vector database.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory"
)

// Store keeps episodes in per-user chromem collections so similarity
// queries are namespace-isolated by construction.
type Store struct {
	db       *chromem.DB
	embedder memory.Embedder
	dims     int

	mu          sync.RWMutex
	collections map[string]*chromem.Collection

	// recent indexes episode ids per user in insertion order; chromem has
	// no listing API, so Recent and Clear work off this.
	recent map[string][]*memory.Episode
}

// New creates an in-memory episode store using the given embedder. The
// embedder's dimensionality becomes the fixed system-wide vector size.
func New(embedder memory.Embedder) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &Store{
		db:          chromem.NewDB(),
		embedder:    embedder,
		dims:        embedder.Dimensions(),
		collections: make(map[string]*chromem.Collection),
		recent:      make(map[string][]*memory.Episode),
	}, nil
}

func collectionName(userID string) string {
	if userID == "" {
		return "episodes_global"
	}
	return "episodes_" + userID
}

func (s *Store) getOrCreateCollection(userID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[userID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[userID]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection(collectionName(userID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection: %v", core.ErrStorageUnavailable, err)
	}
	s.collections[userID] = col
	return col, nil
}

// Add embeds the episode and persists it. An embedding failure fails the
// write explicitly; the caller decides whether that aborts its turn.
func (s *Store) Add(ctx context.Context, ep *memory.Episode) (string, error) {
	embedding, err := s.embedder.Embed(ctx, ep.EmbeddingText())
	if err != nil {
		return "", fmt.Errorf("%w: embed episode: %v", core.ErrEmbeddingService, err)
	}
	if len(embedding) != s.dims {
		return "", fmt.Errorf("%w: embedding dimension %d, store requires %d",
			core.ErrEmbeddingService, len(embedding), s.dims)
	}
	ep.Embedding = embedding

	col, err := s.getOrCreateCollection(ep.UserID)
	if err != nil {
		return "", err
	}

	actions, err := json.Marshal(ep.Actions)
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}

	doc := chromem.Document{
		ID:        ep.ID,
		Content:   ep.EmbeddingText(),
		Embedding: embedding,
		Metadata: map[string]string{
			"user_id":    ep.UserID,
			"task":       ep.TaskSummary,
			"actions":    string(actions),
			"outcome":    ep.Outcome,
			"success":    strconv.FormatBool(ep.Success),
			"created_at": ep.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: add document: %v", core.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	s.recent[ep.UserID] = append(s.recent[ep.UserID], ep)
	s.mu.Unlock()

	log.Printf("[CHROMEM] Stored episode id=%s user=%s actions=%d", ep.ID, ep.UserID, len(ep.Actions))
	return ep.ID, nil
}

// FindSimilar returns up to k of the user's episodes ranked by descending
// cosine similarity, ties broken by recency. Embedding failures on the read
// path degrade to an empty result so context assembly never aborts a turn.
func (s *Store) FindSimilar(ctx context.Context, userID, queryText string, k int) ([]*memory.Episode, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	col, ok := s.collections[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	embedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		log.Printf("[CHROMEM] Query embedding failed, degrading to empty result: %v", err)
		return nil, nil
	}

	// chromem rejects nResults larger than the collection.
	if count := col.Count(); k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, map[string]string{"user_id": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", core.ErrStorageUnavailable, err)
	}

	episodes := make([]*memory.Episode, 0, len(results))
	for _, result := range results {
		ep, err := episodeFromResult(result)
		if err != nil {
			log.Printf("[CHROMEM] Skipping malformed episode %s: %v", result.ID, err)
			continue
		}
		episodes = append(episodes, ep)
	}

	// chromem sorts by similarity; break exact ties by recency.
	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].Similarity != episodes[j].Similarity {
			return episodes[i].Similarity > episodes[j].Similarity
		}
		return episodes[i].CreatedAt.After(episodes[j].CreatedAt)
	})

	return episodes, nil
}

// Recent returns the user's most recent episodes, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]*memory.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.recent[userID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]*memory.Episode, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Clear removes all episodes for the user, leaving other users' collections
// intact.
func (s *Store) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[userID]; ok {
		if err := s.db.DeleteCollection(collectionName(userID)); err != nil {
			return fmt.Errorf("%w: delete collection: %v", core.ErrStorageUnavailable, err)
		}
		delete(s.collections, userID)
	}
	delete(s.recent, userID)
	return nil
}

// Close releases resources. chromem keeps everything in memory.
func (s *Store) Close() error {
	return nil
}

func episodeFromResult(result chromem.Result) (*memory.Episode, error) {
	var actions []string
	if raw := result.Metadata["actions"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &actions); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	success, _ := strconv.ParseBool(result.Metadata["success"])

	return &memory.Episode{
		ID:          result.ID,
		UserID:      result.Metadata["user_id"],
		TaskSummary: result.Metadata["task"],
		Actions:     actions,
		Outcome:     result.Metadata["outcome"],
		Success:     success,
		Embedding:   result.Embedding,
		Similarity:  result.Similarity,
		CreatedAt:   createdAt,
	}, nil
}
