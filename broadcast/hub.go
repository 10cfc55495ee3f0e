package broadcast

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

const DefaultBuffer = 64

// Hub fans every published envelope out to all subscribers in process.
// Each subscriber drains its own buffered channel; when that buffer is full
// the envelope is dropped for that subscriber rather than holding up the
// publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Envelope
	nextID int
	buffer int
	logger *log.Logger
}

func NewHub(buffer int, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{subs: make(map[int]chan Envelope), buffer: buffer, logger: logger}
}

func (h *Hub) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		if !TrySend(ch, env) {
			h.logger.Debug("subscriber is behind, dropping envelope", "subscriber", id, "event", env.Event)
		}
	}
	return nil
}

// Subscribe runs handler on its own goroutine for every envelope published
// after it returns. Envelopes already buffered when cancel is called are
// still delivered.
func (h *Hub) Subscribe(handler func(Envelope)) func() {
	ch := make(chan Envelope, h.buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		for env := range ch {
			handler(env)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// TrySend sends v on c if there is room and reports whether it did.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}
