package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyMessage is returned when a message carries neither text nor an image.
	ErrEmptyMessage = errors.New("message requires text or image")
	// ErrUnknownUser is returned when a referenced user id does not exist.
	ErrUnknownUser = errors.New("unknown user")
)

// Message is a single one-to-one chat message. Immutable after creation
// except for the Read flag, which only ever flips false -> true.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is a contact entry. Credential columns live with the auth service
// and are never loaded here.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Store persists messages between user pairs.
//
// Implementations must be safe for concurrent use. MarkAllRead must be
// atomic against concurrent Create so that a message persisted during the
// sweep is either marked read or left unread in full, never half-applied.
type Store interface {
	// Create persists a new unread message. Returns ErrEmptyMessage when
	// both text and imageURL are empty.
	Create(ctx context.Context, senderID, receiverID int64, text, imageURL string) (Message, error)

	// ListBetween returns every message exchanged between the two users,
	// in either direction, ordered oldest first by creation time.
	ListBetween(ctx context.Context, userA, userB int64) ([]Message, error)

	// CountUnread returns how many messages from senderID to receiverID
	// are still unread.
	CountUnread(ctx context.Context, senderID, receiverID int64) (int, error)

	// MarkAllRead flips every unread message from senderID to receiverID
	// to read. Idempotent.
	MarkAllRead(ctx context.Context, senderID, receiverID int64) error
}

// UserDirectory resolves contacts for the sidebar and validates peers.
type UserDirectory interface {
	// ListOthers returns every user except the given one.
	ListOthers(ctx context.Context, userID int64) ([]User, error)

	// Exists reports whether the user id is known.
	Exists(ctx context.Context, userID int64) (bool, error)
}
