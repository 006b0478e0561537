package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pairchat/internal/auth"
	"pairchat/internal/dispatch"
	"pairchat/internal/media"
	"pairchat/internal/metrics"
	"pairchat/internal/store"
	"pairchat/internal/unread"
)

type Handler struct {
	store    store.Store
	users    store.UserDirectory
	unread   *unread.Service
	dispatch *dispatch.Dispatcher
	media    media.Store
	limiter  *sendLimiter
	log      *zap.Logger
}

type sendReq struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // data URL, uploaded to media storage
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// peerID parses and validates the peer route parameter. Writes the error
// response itself and reports ok=false on failure.
func (h *Handler) peerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "peerID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return 0, false
	}
	ok, err := h.users.Exists(r.Context(), id)
	if err != nil {
		h.log.Error("peer lookup failed", zap.Int64("peer", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return 0, false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown user")
		return 0, false
	}
	return id, true
}

// GET /api/contacts
func (h *Handler) listContacts(w http.ResponseWriter, r *http.Request) {
	me := auth.UID(r.Context())
	users, err := h.users.ListOthers(r.Context(), me)
	if err != nil {
		h.log.Error("list contacts failed", zap.Int64("uid", me), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GET /api/messages/{peerID}
func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	me := auth.UID(r.Context())
	peer, ok := h.peerID(w, r)
	if !ok {
		return
	}
	msgs, err := h.store.ListBetween(r.Context(), me, peer)
	if err != nil {
		h.log.Error("list messages failed", zap.Int64("uid", me), zap.Int64("peer", peer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// POST /api/messages/{peerID}
func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	me := auth.UID(r.Context())
	peer, ok := h.peerID(w, r)
	if !ok {
		return
	}
	var req sendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Text == "" && req.Image == "" {
		writeError(w, http.StatusBadRequest, "message requires text or image")
		return
	}
	if !h.limiter.Allow(me) {
		writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var imageURL string
	if req.Image != "" {
		url, err := h.media.Put(r.Context(), req.Image)
		switch {
		case errors.Is(err, media.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "please select an image under 10MB")
			return
		case errors.Is(err, media.ErrBadImage):
			writeError(w, http.StatusBadRequest, "invalid image")
			return
		case err != nil:
			h.log.Error("media upload failed", zap.Int64("uid", me), zap.Error(err))
			writeError(w, http.StatusBadGateway, "image upload failed")
			return
		}
		imageURL = url
	}

	msg, err := h.store.Create(r.Context(), me, peer, req.Text, imageURL)
	if err != nil {
		if errors.Is(err, store.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("create message failed", zap.Int64("uid", me), zap.Int64("peer", peer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	metrics.MessagesCreated.Inc()

	// Delivery is best-effort; a failed push degrades to pull on next fetch
	// and must never fail the write.
	h.dispatch.Dispatch(msg)

	writeJSON(w, http.StatusCreated, msg)
}

// GET /api/messages/{peerID}/unread
func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	me := auth.UID(r.Context())
	peer, ok := h.peerID(w, r)
	if !ok {
		return
	}
	n, err := h.unread.Count(r.Context(), peer, me)
	if err != nil {
		h.log.Error("unread count failed", zap.Int64("uid", me), zap.Int64("peer", peer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// PATCH /api/messages/{peerID}/read
func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	me := auth.UID(r.Context())
	peer, ok := h.peerID(w, r)
	if !ok {
		return
	}
	if err := h.unread.MarkRead(r.Context(), peer, me); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark messages as read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
