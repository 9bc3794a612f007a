// Package broadcast fans auction state deltas out to subscribers.
//
// All events for one auction flow through that auction's channel under a
// single lock, so every subscriber observes them in the order the admission
// pipeline produced them (BidSeq order). Delivery is best-effort: a
// subscriber that stops draining has events dropped and reconciles with a
// snapshot fetch on reconnect.
package broadcast

import (
	"sync"

	model "auction-coordinator/internal/models"
	"auction-coordinator/utils"
)

const defaultBufferSize = 64

// Broker routes auction events to per-auction subscriber sets and user
// notifications to per-user channels.
type Broker struct {
	mu       sync.RWMutex
	auctions map[string]*channel
	users    map[string]*userChannel
	bufSize  int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		auctions: make(map[string]*channel),
		users:    make(map[string]*userChannel),
		bufSize:  defaultBufferSize,
	}
}

type channel struct {
	mu   sync.Mutex
	subs map[string]chan model.AuctionEvent
}

type userChannel struct {
	mu   sync.Mutex
	subs map[string]chan model.UserNotification
}

// Subscription is a live auction-event subscription. Events arrive on C
// until Unsubscribe is called; Unsubscribe is idempotent and closes C.
type Subscription struct {
	C    <-chan model.AuctionEvent
	id   string
	once sync.Once
	drop func()
}

// Unsubscribe detaches the subscriber and closes C.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.drop)
}

// Subscribe attaches a new subscriber to an auction's event feed.
func (b *Broker) Subscribe(auctionID string) *Subscription {
	b.mu.Lock()
	ch, ok := b.auctions[auctionID]
	if !ok {
		ch = &channel{subs: make(map[string]chan model.AuctionEvent)}
		b.auctions[auctionID] = ch
	}
	b.mu.Unlock()

	id := utils.GenerateID()
	c := make(chan model.AuctionEvent, b.bufSize)

	ch.mu.Lock()
	ch.subs[id] = c
	ch.mu.Unlock()

	return &Subscription{
		C:  c,
		id: id,
		drop: func() {
			ch.mu.Lock()
			if cur, ok := ch.subs[id]; ok && cur == c {
				delete(ch.subs, id)
				close(c)
			}
			ch.mu.Unlock()
		},
	}
}

// Publish delivers an event to every subscriber of the event's auction.
// Subscribers with full buffers are skipped, never blocked on.
func (b *Broker) Publish(event model.AuctionEvent) {
	b.mu.RLock()
	ch, ok := b.auctions[event.AuctionID]
	b.mu.RUnlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for id, c := range ch.subs {
		select {
		case c <- event:
		default:
			utils.Warn("broadcast: subscriber buffer full, dropping event", map[string]any{
				"auction_id": event.AuctionID,
				"subscriber": id,
				"event_type": string(event.Type),
				"seq":        event.Seq,
			})
		}
	}
}

// UserSubscription is a live per-user notification subscription.
type UserSubscription struct {
	C    <-chan model.UserNotification
	id   string
	once sync.Once
	drop func()
}

// Unsubscribe detaches the subscriber and closes C.
func (s *UserSubscription) Unsubscribe() {
	s.once.Do(s.drop)
}

// SubscribeUser attaches a subscriber to a user's notification channel.
func (b *Broker) SubscribeUser(userID string) *UserSubscription {
	b.mu.Lock()
	ch, ok := b.users[userID]
	if !ok {
		ch = &userChannel{subs: make(map[string]chan model.UserNotification)}
		b.users[userID] = ch
	}
	b.mu.Unlock()

	id := utils.GenerateID()
	c := make(chan model.UserNotification, b.bufSize)

	ch.mu.Lock()
	ch.subs[id] = c
	ch.mu.Unlock()

	return &UserSubscription{
		C:  c,
		id: id,
		drop: func() {
			ch.mu.Lock()
			if cur, ok := ch.subs[id]; ok && cur == c {
				delete(ch.subs, id)
				close(c)
			}
			ch.mu.Unlock()
		},
	}
}

// NotifyUser delivers a notification to every subscriber of the user's
// channel, dropping when buffers are full.
func (b *Broker) NotifyUser(n model.UserNotification) {
	b.mu.RLock()
	ch, ok := b.users[n.UserID]
	b.mu.RUnlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for _, c := range ch.subs {
		select {
		case c <- n:
		default:
		}
	}
}
