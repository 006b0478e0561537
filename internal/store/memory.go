package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store and UserDirectory. It backs tests and the
// single-node dev mode; production uses the MySQL implementation.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	msgs   []Message
	users  map[int64]User
}

func NewMemory() *Memory {
	return &Memory{users: make(map[int64]User)}
}

// AddUser registers a user in the directory.
func (m *Memory) AddUser(u User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *Memory) Create(ctx context.Context, senderID, receiverID int64, text, imageURL string) (Message, error) {
	if text == "" && imageURL == "" {
		return Message{}, ErrEmptyMessage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg := Message{
		ID:         m.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		ImageURL:   imageURL,
		Read:       false,
		CreatedAt:  time.Now().UTC(),
	}
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

func (m *Memory) ListBetween(ctx context.Context, userA, userB int64) ([]Message, error) {
	m.mu.RLock()
	out := make([]Message, 0, 16)
	for _, msg := range m.msgs {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			out = append(out, msg)
		}
	}
	m.mu.RUnlock()
	// Appends happen in creation order, but concurrent creators may race
	// between timestamping and appending; sort to hold the ordering contract.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CountUnread(ctx context.Context, senderID, receiverID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.SenderID == senderID && msg.ReceiverID == receiverID && !msg.Read {
			n++
		}
	}
	return n, nil
}

func (m *Memory) MarkAllRead(ctx context.Context, senderID, receiverID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.msgs {
		if m.msgs[i].SenderID == senderID && m.msgs[i].ReceiverID == receiverID {
			m.msgs[i].Read = true
		}
	}
	return nil
}

func (m *Memory) ListOthers(ctx context.Context, userID int64) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for id, u := range m.users {
		if id == userID {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Exists(ctx context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[userID]
	return ok, nil
}
