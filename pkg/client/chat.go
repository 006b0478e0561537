package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoSelection is returned by Send when no conversation is open.
var ErrNoSelection = errors.New("no conversation selected")

// Chat is the client-side reconciliation layer: it renders conversation
// and unread-badge state from optimistic local updates and overwrites them
// with server-confirmed values as results arrive.
//
// Every update is two-phase: phase 1 applies a tentative value
// synchronously under the lock; phase 2 fetches the authoritative value in
// the background and unconditionally replaces the tentative one. Counts
// are never merged. Live pushes carry no durability guarantee, so the
// periodic refresh and the refresh after every action are the correctness
// backstop.
type Chat struct {
	me  int64
	tr  Transport
	ev  Events
	log *zap.Logger

	mu       sync.Mutex
	contacts []User
	unread   map[int64]int
	selected int64 // 0 = no open conversation
	// epoch tags in-flight rounds with the selection they were issued
	// for; completions for a stale epoch are discarded.
	epoch    uint64
	messages []Message
	seen     map[int64]struct{}

	sub          *Subscription
	refreshEvery time.Duration

	// bg tracks background reconciliations so tests can settle.
	bg sync.WaitGroup
}

type Option func(*Chat)

// WithRefreshInterval overrides the periodic self-heal interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Chat) { c.refreshEvery = d }
}

func New(me int64, tr Transport, ev Events, log *zap.Logger, opts ...Option) *Chat {
	c := &Chat{
		me:           me,
		tr:           tr,
		ev:           ev,
		log:          log,
		unread:       make(map[int64]int),
		seen:         make(map[int64]struct{}),
		refreshEvery: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start subscribes to live pushes. Re-subscribing drops the previous
// subscription first, so redundant Starts never double-deliver.
func (c *Chat) Start() {
	c.mu.Lock()
	old := c.sub
	c.mu.Unlock()
	if old != nil {
		old.Unsubscribe()
	}
	sub := c.ev.Subscribe(EventNewMessage, c.handleNewMessage)
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
}

// Stop is idempotent.
func (c *Chat) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Run drives the periodic unread refresh until ctx is cancelled.
func (c *Chat) Run(ctx context.Context) {
	t := time.NewTicker(c.refreshEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.RefreshUnread(ctx)
		}
	}
}

// LoadContacts fetches the contact list and primes every badge with the
// server count.
func (c *Chat) LoadContacts(ctx context.Context) error {
	users, err := c.tr.Contacts(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.contacts = users
	c.mu.Unlock()
	c.RefreshUnread(ctx)
	return nil
}

// Select opens the conversation with peer: the badge is zeroed
// optimistically, mark-read and the message list run concurrently, and
// once they settle every badge is re-fetched so the server's values win
// over the optimistic zero. Re-fetching after the mark lands keeps the
// refresh from resurrecting the count it just cleared. An error from the
// mark-read or list (the action the user just took) is returned; badge
// refresh failures are only logged.
func (c *Chat) Select(ctx context.Context, peer int64) error {
	c.mu.Lock()
	c.selected = peer
	c.epoch++
	e := c.epoch
	c.messages = nil
	c.seen = make(map[int64]struct{})
	c.unread[peer] = 0 // phase 1: optimistic
	c.mu.Unlock()

	var (
		wg      sync.WaitGroup
		markErr error
		listErr error
		fetched []Message
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		markErr = c.tr.MarkRead(ctx, peer)
	}()
	go func() {
		defer wg.Done()
		fetched, listErr = c.tr.Messages(ctx, peer)
	}()
	wg.Wait()

	c.mu.Lock()
	stale := c.epoch != e
	if !stale && markErr == nil && listErr == nil {
		for _, m := range fetched {
			if _, dup := c.seen[m.ID]; dup {
				continue
			}
			c.seen[m.ID] = struct{}{}
			c.messages = append(c.messages, m)
		}
	}
	c.mu.Unlock()

	if stale {
		// Selection changed while the round was in flight; the newer
		// round owns the state now.
		return nil
	}
	if markErr != nil {
		return markErr
	}
	if listErr != nil {
		return listErr
	}

	// phase 2: authoritative re-sync for every contact.
	c.RefreshUnread(ctx)
	return nil
}

// ClearSelection closes the open conversation and refreshes every badge
// once more.
func (c *Chat) ClearSelection(ctx context.Context) {
	c.mu.Lock()
	c.selected = 0
	c.epoch++
	c.messages = nil
	c.seen = make(map[int64]struct{})
	c.mu.Unlock()
	c.RefreshUnread(ctx)
}

// Send posts to the open conversation and appends the confirmed message.
func (c *Chat) Send(ctx context.Context, text, image string) (Message, error) {
	c.mu.Lock()
	peer := c.selected
	e := c.epoch
	c.mu.Unlock()
	if peer == 0 {
		return Message{}, ErrNoSelection
	}
	msg, err := c.tr.Send(ctx, peer, text, image)
	if err != nil {
		return Message{}, err
	}
	c.mu.Lock()
	if c.epoch == e {
		if _, dup := c.seen[msg.ID]; !dup {
			c.seen[msg.ID] = struct{}{}
			c.messages = append(c.messages, msg)
		}
	}
	c.mu.Unlock()
	return msg, nil
}

// RefreshUnread re-fetches the unread count for every contact and
// overwrites the local values with the server's. Lookups run concurrently;
// one contact failing does not abort the others.
func (c *Chat) RefreshUnread(ctx context.Context) {
	c.mu.Lock()
	ids := make([]int64, 0, len(c.contacts))
	for _, u := range c.contacts {
		ids = append(ids, u.ID)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			n, err := c.tr.UnreadCount(ctx, id)
			if err != nil {
				c.log.Warn("unread refresh failed", zap.Int64("peer", id), zap.Error(err))
				return
			}
			c.mu.Lock()
			c.unread[id] = n
			c.mu.Unlock()
		}(id)
	}
	wg.Wait()
}

// handleNewMessage is the live-push entry point.
//
// Open conversation: append, keep the badge at zero, and mark read on the
// server (viewing implies read). Any other sender: bump the badge
// optimistically, then replace it with the authoritative count.
func (c *Chat) handleNewMessage(m Message) {
	if m.ReceiverID != c.me {
		// The server only pushes messages addressed to this user; anything
		// else is a misrouted frame.
		return
	}
	c.mu.Lock()
	if _, dup := c.seen[m.ID]; dup {
		// Already rendered from a fetch that raced the push.
		c.mu.Unlock()
		return
	}
	open := c.selected != 0 && c.selected == m.SenderID
	if open {
		c.seen[m.ID] = struct{}{}
		c.messages = append(c.messages, m)
		c.unread[m.SenderID] = 0
	} else {
		c.unread[m.SenderID]++ // phase 1
	}
	c.mu.Unlock()

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if open {
			if err := c.tr.MarkRead(ctx, m.SenderID); err != nil {
				c.log.Warn("mark read after push failed", zap.Int64("peer", m.SenderID), zap.Error(err))
			}
		} else {
			// phase 2: authoritative overwrite, reconciling any
			// double-count or miss.
			n, err := c.tr.UnreadCount(ctx, m.SenderID)
			if err != nil {
				c.log.Warn("unread verify failed", zap.Int64("peer", m.SenderID), zap.Error(err))
			} else {
				c.mu.Lock()
				c.unread[m.SenderID] = n
				c.mu.Unlock()
			}
		}
		c.RefreshUnread(ctx)
	}()
}

// Unread returns the current badge value for one contact.
func (c *Chat) Unread(peer int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread[peer]
}

// Selected returns the open conversation's peer id, or 0.
func (c *Chat) Selected() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Messages returns a snapshot of the open conversation.
func (c *Chat) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Contacts returns a snapshot of the contact list.
func (c *Chat) Contacts() []User {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]User, len(c.contacts))
	copy(out, c.contacts)
	return out
}
