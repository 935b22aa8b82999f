package memory

import (
	"context"
	"sync"

	"github.com/mnemolabs/mnemo/core"
)

// Log is the in-memory ConversationLog implementation. Each thread owns its
// message list exclusively; there is no cross-thread visibility. Turns on
// different threads may append concurrently.
type Log struct {
	mu      sync.RWMutex
	threads map[string]*thread
}

type thread struct {
	messages []core.Message
	nextSeq  int
}

// NewLog creates an empty conversation log.
func NewLog() *Log {
	return &Log{threads: make(map[string]*thread)}
}

// Append assigns the next sequence number in the thread and stores the
// message. Messages are append-only; sequence numbers are gapless.
func (l *Log) Append(ctx context.Context, threadID string, msg core.Message) (core.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.threads[threadID]
	if !ok {
		t = &thread{}
		l.threads[threadID] = t
	}

	msg.ThreadID = threadID
	msg.SequenceNo = t.nextSeq
	t.nextSeq++
	t.messages = append(t.messages, msg)
	return msg, nil
}

// History returns a copy of the thread's ordered message list. Unknown
// threads yield an empty history.
func (l *Log) History(ctx context.Context, threadID string) ([]core.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.threads[threadID]
	if !ok {
		return nil, nil
	}
	out := make([]core.Message, len(t.messages))
	copy(out, t.messages)
	return out, nil
}

// Reset clears the thread's own history without touching other threads.
func (l *Log) Reset(ctx context.Context, threadID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.threads, threadID)
	return nil
}
