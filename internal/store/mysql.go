package store

import (
	"context"
	"database/sql"
	"time"

	"pairchat/internal/ident"
)

// MySQL is the production Store and UserDirectory.
//
// Schema:
//
//	CREATE TABLE chat_msg (
//	  msg_id      BIGINT PRIMARY KEY,
//	  sender_id   BIGINT NOT NULL,
//	  receiver_id BIGINT NOT NULL,
//	  text        TEXT,
//	  image_url   VARCHAR(512),
//	  is_read     TINYINT(1) NOT NULL DEFAULT 0,
//	  create_time DATETIME(3) NOT NULL,
//	  KEY idx_pair (sender_id, receiver_id, is_read),
//	  KEY idx_time (create_time)
//	);
//
//	CREATE TABLE chat_user (
//	  user_id  BIGINT PRIMARY KEY,
//	  username VARCHAR(64) NOT NULL
//	);
type MySQL struct {
	db  *sql.DB
	gen ident.Generator
}

func NewMySQL(db *sql.DB, gen ident.Generator) *MySQL {
	return &MySQL{db: db, gen: gen}
}

func (s *MySQL) Create(ctx context.Context, senderID, receiverID int64, text, imageURL string) (Message, error) {
	if text == "" && imageURL == "" {
		return Message{}, ErrEmptyMessage
	}
	id, err := s.gen.NextID()
	if err != nil {
		return Message{}, err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO chat_msg (msg_id, sender_id, receiver_id, text, image_url, is_read, create_time)
VALUES (?, ?, ?, ?, ?, 0, ?)
`, id, senderID, receiverID, text, imageURL, now)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		ImageURL:   imageURL,
		Read:       false,
		CreatedAt:  now,
	}, nil
}

func (s *MySQL) ListBetween(ctx context.Context, userA, userB int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT msg_id, sender_id, receiver_id, text, image_url, is_read, create_time
FROM chat_msg
WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
ORDER BY create_time ASC, msg_id ASC
`, userA, userB, userB, userA)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, 64)
	for rows.Next() {
		var m Message
		var text, imageURL sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &text, &imageURL, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Text = text.String
		m.ImageURL = imageURL.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MySQL) CountUnread(ctx context.Context, senderID, receiverID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM chat_msg
WHERE sender_id = ? AND receiver_id = ? AND is_read = 0
`, senderID, receiverID).Scan(&n)
	return n, err
}

// MarkAllRead is a single UPDATE, so it is atomic against concurrent
// Create: a row either commits before the sweep and is flipped, or after
// and stays unread.
func (s *MySQL) MarkAllRead(ctx context.Context, senderID, receiverID int64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE chat_msg SET is_read = 1
WHERE sender_id = ? AND receiver_id = ? AND is_read = 0
`, senderID, receiverID)
	return err
}

func (s *MySQL) ListOthers(ctx context.Context, userID int64) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, username FROM chat_user WHERE user_id <> ? ORDER BY user_id ASC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0, 16)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *MySQL) Exists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chat_user WHERE user_id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
