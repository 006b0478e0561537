package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pairchat/internal/auth"
	"pairchat/internal/dispatch"
	"pairchat/internal/hub"
	"pairchat/internal/media"
	"pairchat/internal/store"
	"pairchat/internal/unread"
)

type testEnv struct {
	srv *httptest.Server
	mem *store.Memory
	hub *hub.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	mem := store.NewMemory()
	mem.AddUser(store.User{ID: 1, Username: "alice"})
	mem.AddUser(store.User{ID: 2, Username: "bob"})
	mem.AddUser(store.User{ID: 3, Username: "carol"})

	h := hub.New()
	uploads := t.TempDir()
	disk, err := media.NewDisk(uploads, "/uploads", 1<<20)
	require.NoError(t, err)

	s := NewServer(Options{
		Store:      mem,
		Users:      mem,
		Unread:     unread.New(mem, log),
		Dispatch:   dispatch.New(h, log),
		Hub:        h,
		Media:      disk,
		Authn:      auth.Static{"tok-alice": 1, "tok-bob": 2, "tok-carol": 3},
		AuthOpt:    auth.Options{Header: "Authorization", BearerPrefix: "Bearer ", QueryKey: "token"},
		Log:        log,
		SendRPS:    1000,
		UploadsDir: uploads,
		UploadsURL: "/uploads",
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, mem: mem, hub: h}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	res := e.do(t, http.MethodGet, "/api/contacts", "", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = e.do(t, http.MethodGet, "/api/contacts", "bogus", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestContactsExcludeCaller(t *testing.T) {
	e := newTestEnv(t)
	res := e.do(t, http.MethodGet, "/api/contacts", "tok-alice", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	users := decode[[]store.User](t, res)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, int64(1), u.ID)
	}
}

func TestSendAndListMessages(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(t, http.MethodPost, "/api/messages/2", "tok-alice", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	sent := decode[store.Message](t, res)
	assert.Equal(t, int64(1), sent.SenderID)
	assert.Equal(t, int64(2), sent.ReceiverID)
	assert.False(t, sent.Read)

	res = e.do(t, http.MethodGet, "/api/messages/1", "tok-bob", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	msgs := decode[[]store.Message](t, res)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)
}

func TestSendValidation(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(t, http.MethodPost, "/api/messages/2", "tok-alice", map[string]string{})
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/messages/99", "tok-alice", map[string]string{"text": "hi"})
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/messages/abc", "tok-alice", map[string]string{"text": "hi"})
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSendImageMessage(t *testing.T) {
	e := newTestEnv(t)
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fakepng"))

	res := e.do(t, http.MethodPost, "/api/messages/2", "tok-alice", map[string]string{"image": img})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	sent := decode[store.Message](t, res)
	require.NotEmpty(t, sent.ImageURL)
	assert.True(t, strings.HasPrefix(sent.ImageURL, "/uploads/"))

	// The stored reference comes back unmodified on fetch.
	res = e.do(t, http.MethodGet, "/api/messages/2", "tok-alice", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	msgs := decode[[]store.Message](t, res)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ImageURL, msgs[0].ImageURL)

	// And the upload is actually served.
	got, err := http.Get(e.srv.URL + sent.ImageURL)
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, "fakepng", string(body))
}

func TestOversizedImageRejected(t *testing.T) {
	e := newTestEnv(t)
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString(make([]byte, 2<<20))

	res := e.do(t, http.MethodPost, "/api/messages/2", "tok-alice", map[string]string{"image": img})
	res.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestUnreadFlow(t *testing.T) {
	e := newTestEnv(t)

	for _, text := range []string{"a", "b", "c"} {
		res := e.do(t, http.MethodPost, "/api/messages/2", "tok-alice", map[string]string{"text": text})
		require.Equal(t, http.StatusCreated, res.StatusCode)
		res.Body.Close()
	}

	// Bob asks how many unread from alice.
	res := e.do(t, http.MethodGet, "/api/messages/1/unread", "tok-bob", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	count := decode[map[string]int](t, res)
	assert.Equal(t, 3, count["count"])

	// Alice's own view of the pair is zero unread from bob.
	res = e.do(t, http.MethodGet, "/api/messages/2/unread", "tok-alice", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	count = decode[map[string]int](t, res)
	assert.Equal(t, 0, count["count"])

	// Bob opens the conversation.
	res = e.do(t, http.MethodPatch, "/api/messages/1/read", "tok-bob", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	okBody := decode[map[string]bool](t, res)
	assert.True(t, okBody["success"])

	res = e.do(t, http.MethodGet, "/api/messages/1/unread", "tok-bob", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	count = decode[map[string]int](t, res)
	assert.Equal(t, 0, count["count"])

	// Messages now come back marked read.
	res = e.do(t, http.MethodGet, "/api/messages/1", "tok-bob", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	msgs := decode[[]store.Message](t, res)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.True(t, m.Read)
	}
}

func dialWS(t *testing.T, e *testEnv, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	// Greeting frame.
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := ws.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(b))
	return ws
}

func TestLivePushToOnlineReceiver(t *testing.T) {
	e := newTestEnv(t)
	ws := dialWS(t, e, "tok-bob")

	res := e.do(t, http.MethodPost, "/api/messages/2", "tok-alice", map[string]string{"text": "ping"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res.Body.Close()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := ws.ReadMessage()
	require.NoError(t, err)

	var env dispatch.Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, dispatch.EventNewMessage, env.Event)
	assert.Equal(t, "ping", env.Data.Text)
	assert.Equal(t, int64(1), env.Data.SenderID)
	assert.False(t, env.Data.Read)
}

func TestWSRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestReconnectSupersedesOldChannel(t *testing.T) {
	e := newTestEnv(t)
	dialWS(t, e, "tok-bob")
	second := dialWS(t, e, "tok-bob")

	// Give the server a beat to settle both registrations.
	require.Eventually(t, func() bool { return e.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	res := e.do(t, http.MethodPost, "/api/messages/2", "tok-alice", map[string]string{"text": "to the new conn"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res.Body.Close()

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := second.ReadMessage()
	require.NoError(t, err)
	var env dispatch.Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, "to the new conn", env.Data.Text)
}

func TestPushToOfflineReceiverStillPersists(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(t, http.MethodPost, "/api/messages/3", "tok-alice", map[string]string{"text": "offline"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res.Body.Close()

	res = e.do(t, http.MethodGet, "/api/messages/1/unread", "tok-carol", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	count := decode[map[string]int](t, res)
	assert.Equal(t, 1, count["count"])
}
