package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is one live delivery channel to a connected user.
type Conn struct {
	UID int64
	// Handle identifies this particular connection. Disconnects carry it so
	// a superseded connection cannot evict its replacement.
	Handle string
	// bounded outbound queue (backpressure)
	Out chan []byte
	// Done is closed when the connection is torn down.
	Done chan struct{}

	closeOnce sync.Once
}

func NewConn(uid int64, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 256
	}
	return &Conn{
		UID:    uid,
		Handle: uuid.NewString(),
		Out:    make(chan []byte, buffer),
		Done:   make(chan struct{}),
	}
}

// Close signals the write loop to exit. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.Done) })
}

// Hub is the presence registry: at most one live connection per user,
// most recent connection wins.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]*Conn
}

func New() *Hub {
	return &Hub{conns: make(map[int64]*Conn)}
}

// Set registers c as the user's connection, replacing any previous one.
// The replaced connection, if any, is closed and returned.
func (h *Hub) Set(c *Conn) *Conn {
	h.mu.Lock()
	old := h.conns[c.UID]
	h.conns[c.UID] = c
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return old
}

func (h *Hub) Get(uid int64) (*Conn, bool) {
	h.mu.RLock()
	c, ok := h.conns[uid]
	h.mu.RUnlock()
	return c, ok
}

// Del removes the user's entry only when handle matches the registered
// connection. A stale disconnect from a superseded connection is a no-op.
func (h *Hub) Del(uid int64, handle string) bool {
	h.mu.Lock()
	c, ok := h.conns[uid]
	if !ok || c.Handle != handle {
		h.mu.Unlock()
		return false
	}
	delete(h.conns, uid)
	h.mu.Unlock()
	c.Close()
	return true
}

func (h *Hub) Len() int {
	h.mu.RLock()
	n := len(h.conns)
	h.mu.RUnlock()
	return n
}

// Online returns the ids of all currently connected users.
func (h *Hub) Online() []int64 {
	h.mu.RLock()
	out := make([]int64, 0, len(h.conns))
	for uid := range h.conns {
		out = append(out, uid)
	}
	h.mu.RUnlock()
	return out
}
