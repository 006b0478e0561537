package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Message mirrors the server's wire shape.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Transport is the REST surface the reconciliation layer talks to.
type Transport interface {
	Contacts(ctx context.Context) ([]User, error)
	Messages(ctx context.Context, peerID int64) ([]Message, error)
	Send(ctx context.Context, peerID int64, text, image string) (Message, error)
	UnreadCount(ctx context.Context, peerID int64) (int, error)
	MarkRead(ctx context.Context, peerID int64) error
}

// HTTPTransport talks to a pairchat server with a bearer session token.
type HTTPTransport struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&e)
		if e.Message != "" {
			return fmt.Errorf("server %d: %s", res.StatusCode, e.Message)
		}
		return errors.New("server " + strconv.Itoa(res.StatusCode))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func (t *HTTPTransport) Contacts(ctx context.Context) ([]User, error) {
	var out []User
	err := t.do(ctx, http.MethodGet, "/api/contacts", nil, &out)
	return out, err
}

func (t *HTTPTransport) Messages(ctx context.Context, peerID int64) ([]Message, error) {
	var out []Message
	err := t.do(ctx, http.MethodGet, "/api/messages/"+strconv.FormatInt(peerID, 10), nil, &out)
	return out, err
}

func (t *HTTPTransport) Send(ctx context.Context, peerID int64, text, image string) (Message, error) {
	var out Message
	body := map[string]string{}
	if text != "" {
		body["text"] = text
	}
	if image != "" {
		body["image"] = image
	}
	err := t.do(ctx, http.MethodPost, "/api/messages/"+strconv.FormatInt(peerID, 10), body, &out)
	return out, err
}

func (t *HTTPTransport) UnreadCount(ctx context.Context, peerID int64) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := t.do(ctx, http.MethodGet, "/api/messages/"+strconv.FormatInt(peerID, 10)+"/unread", nil, &out)
	return out.Count, err
}

func (t *HTTPTransport) MarkRead(ctx context.Context, peerID int64) error {
	return t.do(ctx, http.MethodPatch, "/api/messages/"+strconv.FormatInt(peerID, 10)+"/read", nil, nil)
}
