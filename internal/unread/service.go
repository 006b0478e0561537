package unread

import (
	"context"

	"go.uber.org/zap"

	"pairchat/internal/metrics"
	"pairchat/internal/store"
)

// Service owns per-sender unread accounting for a receiver. Read state is
// tied to the viewing action: a conversation being opened (or already open
// when a push lands) marks everything from that sender read; delivery alone
// never does.
type Service struct {
	store store.Store
	log   *zap.Logger
}

func New(s store.Store, log *zap.Logger) *Service {
	return &Service{store: s, log: log}
}

// Count returns the authoritative unread count from sender to receiver.
func (s *Service) Count(ctx context.Context, senderID, receiverID int64) (int, error) {
	metrics.UnreadQueries.Inc()
	return s.store.CountUnread(ctx, senderID, receiverID)
}

// MarkRead flips every message from sender to receiver to read.
func (s *Service) MarkRead(ctx context.Context, senderID, receiverID int64) error {
	metrics.ReadSweeps.Inc()
	if err := s.store.MarkAllRead(ctx, senderID, receiverID); err != nil {
		s.log.Error("mark read failed",
			zap.Int64("sender", senderID), zap.Int64("receiver", receiverID), zap.Error(err))
		return err
	}
	return nil
}
