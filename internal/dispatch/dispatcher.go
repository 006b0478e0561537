package dispatch

import (
	"encoding/json"

	"go.uber.org/zap"

	"pairchat/internal/hub"
	"pairchat/internal/metrics"
	"pairchat/internal/store"
)

// EventNewMessage is the live channel event kind for a freshly created
// message.
const EventNewMessage = "newMessage"

// Envelope is the wire frame pushed over a live channel.
type Envelope struct {
	Event string        `json:"event"`
	Data  store.Message `json:"data"`
}

// Dispatcher pushes freshly persisted messages to online receivers.
// Delivery is fire-and-forget: an offline receiver, a full queue or a
// just-closed channel degrade to pull-based delivery on the next fetch and
// never surface to the sender's write path.
type Dispatcher struct {
	hub *hub.Hub
	log *zap.Logger
}

func New(h *hub.Hub, log *zap.Logger) *Dispatcher {
	return &Dispatcher{hub: h, log: log}
}

func (d *Dispatcher) Dispatch(m store.Message) {
	c, ok := d.hub.Get(m.ReceiverID)
	if !ok {
		metrics.PushOffline.Inc()
		return
	}
	b, err := json.Marshal(Envelope{Event: EventNewMessage, Data: m})
	if err != nil {
		d.log.Error("encode push failed", zap.Int64("msg_id", m.ID), zap.Error(err))
		return
	}
	select {
	case c.Out <- b:
		metrics.PushOK.Inc()
	case <-c.Done:
		// Channel closed between lookup and send; receiver fetches later.
		metrics.PushOffline.Inc()
	default:
		metrics.PushBackpressure.Inc()
		d.log.Warn("push dropped on backpressure",
			zap.Int64("receiver", m.ReceiverID), zap.Int64("msg_id", m.ID))
	}
}
