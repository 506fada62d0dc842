package history

import (
	"sync"

	"uplink/pkg/types"
)

// Buffer is a bounded FIFO of recently broadcast messages, replayed to newly
// joined sessions. A single instance is owned and mutated by the broker.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	messages []types.Message
}

// NewBuffer creates an empty buffer holding at most capacity messages.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		capacity: capacity,
		messages: make([]types.Message, 0, capacity),
	}
}

// Append pushes msg to the back, evicting the oldest entry when the buffer
// is full.
func (b *Buffer) Append(msg types.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == b.capacity {
		copy(b.messages, b.messages[1:])
		b.messages = b.messages[:b.capacity-1]
	}
	b.messages = append(b.messages, msg)
}

// Snapshot returns the retained messages oldest-first. The returned slice is
// a copy; later appends or purges do not affect it.
func (b *Buffer) Snapshot() []types.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Clear empties the buffer. It produces no notification; announcing a purge
// is the broker's responsibility.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = b.messages[:0]
}

// Len returns the number of retained messages.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}
