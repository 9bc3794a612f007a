// Package scheduler drives auctions through their lifecycle:
// Created -> Active at start time, Active|Ending -> Closed at the deadline,
// or Cancelled by an administrator. Closure is claimed through the same
// compare-and-swap discipline the admission pipeline uses, so a duplicate
// timer fire or a buy-now racing the deadline resolves to exactly one
// closure and at most one settlement.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"auction-coordinator/internal/auctionerrors"
	"auction-coordinator/internal/broadcast"
	"auction-coordinator/internal/clock"
	"auction-coordinator/internal/config"
	"auction-coordinator/internal/ledger"
	model "auction-coordinator/internal/models"
	"auction-coordinator/internal/statestore"
	"auction-coordinator/utils"
)

// Gate is the admission pipeline's per-auction serialization. Deadline
// closure and cancellation run under it, so the event feed never carries a
// terminal event ahead of an acceptance that already committed.
type Gate interface {
	LockAuction(auctionID string) (unlock func())
}

// Scheduler owns the Created->Active and ->Closed/Cancelled transitions.
type Scheduler struct {
	store   statestore.AuctionStateStore
	gateway ledger.Gateway
	broker  *broadcast.Broker
	clk     clock.Clock
	cfg     config.Config
	gate    Gate

	mu     sync.Mutex
	timers map[string]clock.Timer
}

// New creates a Scheduler.
func New(store statestore.AuctionStateStore, gateway ledger.Gateway, broker *broadcast.Broker, clk clock.Clock, cfg config.Config) *Scheduler {
	return &Scheduler{
		store:   store,
		gateway: gateway,
		broker:  broker,
		clk:     clk,
		cfg:     cfg,
		timers:  make(map[string]clock.Timer),
	}
}

// SetGate wires the admission pipeline's per-auction lock. CloseNow skips
// it: the pipeline calls CloseNow while already holding that lock.
func (s *Scheduler) SetGate(g Gate) {
	s.gate = g
}

func (s *Scheduler) lockAuction(auctionID string) func() {
	if s.gate == nil {
		return func() {}
	}
	return s.gate.LockAuction(auctionID)
}

// Register stores a new auction record and schedules its lifecycle. The
// record arrives from the auction-creation workflow in Created status; an
// auction whose start time has already passed activates immediately.
func (s *Scheduler) Register(ctx context.Context, auction model.Auction) error {
	if auction.AuctionID == "" || auction.SellerID == "" {
		return fmt.Errorf("scheduler: register: missing auction or seller id")
	}
	if !auction.EndTime.After(auction.StartTime) {
		return fmt.Errorf("scheduler: register %s: end time not after start time", auction.AuctionID)
	}

	auction.Status = model.StatusCreated
	auction.CurrentPrice = auction.StartingPrice
	auction.LeaderID = ""
	auction.LeaderLockID = ""
	if err := s.store.Create(ctx, auction); err != nil {
		return fmt.Errorf("scheduler: register %s: %w", auction.AuctionID, err)
	}

	s.schedule(auction)
	return nil
}

// Resume re-schedules lifecycle timers for every open auction, e.g. after a
// restart against a durable store.
func (s *Scheduler) Resume(ctx context.Context) error {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: resume: %w", err)
	}
	for _, a := range open {
		s.schedule(a)
	}
	return nil
}

func (s *Scheduler) schedule(auction model.Auction) {
	now := s.clk.Now()
	id := auction.AuctionID

	if auction.Status == model.StatusCreated {
		if auction.StartTime.After(now) {
			s.clk.AfterFunc(auction.StartTime.Sub(now), func() { s.activate(id) })
		} else {
			s.activate(id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[id]; !ok {
		delay := auction.EndTime.Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.timers[id] = s.clk.AfterFunc(delay, func() { s.onDeadline(id) })
	}
}

// activate flips Created -> Active. A conflict means someone else already
// moved the auction on; re-read and only retry while it is still Created.
func (s *Scheduler) activate(auctionID string) {
	ctx := context.Background()
	for {
		snap, err := s.store.Read(ctx, auctionID)
		if err != nil || snap.Status != model.StatusCreated {
			return
		}
		next := snap
		next.Status = model.StatusActive
		err = s.store.CompareAndSwap(ctx, auctionID, snap.BidSeq, next)
		if err == nil {
			utils.Info("scheduler: auction active", map[string]any{"auction_id": auctionID})
			return
		}
		if !errors.Is(err, auctionerrors.ErrConflict) {
			utils.Error("scheduler: activation failed", map[string]any{
				"auction_id": auctionID,
				"error":      err.Error(),
			})
			return
		}
	}
}

// onDeadline fires at the recorded end time. Anti-snipe extensions move the
// deadline while the timer is pending, so re-read before closing and chase
// the new deadline when it has moved.
func (s *Scheduler) onDeadline(auctionID string) {
	unlock := s.lockAuction(auctionID)
	defer unlock()

	ctx := context.Background()
	snap, err := s.store.Read(ctx, auctionID)
	if err != nil {
		utils.Error("scheduler: deadline read failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}
	if snap.Status == model.StatusClosed || snap.Status == model.StatusCancelled {
		return
	}

	now := s.clk.Now()
	if snap.EndTime.After(now) {
		s.mu.Lock()
		if t, ok := s.timers[auctionID]; ok {
			t.Reset(snap.EndTime.Sub(now))
		}
		s.mu.Unlock()
		return
	}

	if err := s.close(ctx, auctionID); err != nil {
		utils.Error("scheduler: closure failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
	}
}

// CloseNow closes an auction immediately; used by the pipeline when a
// buy-now bid lands, with the admission lock already held. Safe to race the
// deadline timer.
func (s *Scheduler) CloseNow(ctx context.Context, auctionID string) error {
	s.stopTimer(auctionID)
	return s.close(ctx, auctionID)
}

// close claims the Closed transition via compare-and-swap and performs
// settlement or release. A lost claim means another closure won; that is a
// no-op, not an error.
func (s *Scheduler) close(ctx context.Context, auctionID string) error {
	for attempt := 0; attempt <= s.cfg.CASMaxRetries; attempt++ {
		snap, err := s.store.Read(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("scheduler: close %s: %w", auctionID, err)
		}
		if snap.Status == model.StatusClosed || snap.Status == model.StatusCancelled {
			return nil
		}

		next := snap
		next.Status = model.StatusClosed
		if err := s.store.CompareAndSwap(ctx, auctionID, snap.BidSeq, next); err != nil {
			if errors.Is(err, auctionerrors.ErrConflict) {
				continue
			}
			return fmt.Errorf("scheduler: close %s: %w", auctionID, err)
		}

		s.stopTimer(auctionID)
		s.settleOrRelease(ctx, next, snap.BidSeq+1)
		return nil
	}
	return fmt.Errorf("scheduler: close %s: %w", auctionID, auctionerrors.ErrContention)
}

// settleOrRelease runs after the closure swap committed: settle when a
// leader exists and the reserve is satisfied, otherwise release the
// outstanding hold.
func (s *Scheduler) settleOrRelease(ctx context.Context, snap model.Auction, seq uint64) {
	now := s.clk.Now()
	won := snap.LeaderID != "" && !snap.Frozen && snap.ReserveMet()

	if won {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
		settlementID, err := s.gateway.Settle(callCtx, snap.LeaderID, snap.SellerID, snap.CurrentPrice)
		cancel()
		if err != nil {
			// Closure stands; the hold stays in place for manual settlement.
			utils.Error("scheduler: settlement failed", map[string]any{
				"auction_id": snap.AuctionID,
				"buyer_id":   snap.LeaderID,
				"seller_id":  snap.SellerID,
				"amount":     snap.CurrentPrice.String(),
				"error":      err.Error(),
			})
		} else {
			utils.Info("scheduler: auction settled", map[string]any{
				"auction_id":    snap.AuctionID,
				"settlement_id": settlementID,
				"amount":        snap.CurrentPrice.String(),
			})
		}
	} else if snap.LeaderLockID != "" {
		s.release(snap.AuctionID, snap.LeaderLockID)
	}

	event := model.AuctionEvent{
		Type:       model.EventAuctionEnded,
		AuctionID:  snap.AuctionID,
		Seq:        seq,
		Price:      snap.CurrentPrice,
		Won:        won,
		EndTime:    snap.EndTime,
		OccurredAt: now,
	}
	if won {
		event.WinnerID = snap.LeaderID
		event.FinalPrice = snap.CurrentPrice
	}
	s.broker.Publish(event)

	if won {
		s.broker.NotifyUser(model.UserNotification{
			UserID:     snap.LeaderID,
			AuctionID:  snap.AuctionID,
			Kind:       "won",
			Price:      snap.CurrentPrice,
			OccurredAt: now,
		})
	}
}

// Cancel administratively cancels an auction before its deadline: timers
// stop, the leader's hold is released, and no settlement happens.
func (s *Scheduler) Cancel(ctx context.Context, auctionID string) error {
	unlock := s.lockAuction(auctionID)
	defer unlock()

	for attempt := 0; attempt <= s.cfg.CASMaxRetries; attempt++ {
		snap, err := s.store.Read(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("scheduler: cancel %s: %w", auctionID, err)
		}
		if snap.Status == model.StatusCancelled {
			return nil
		}
		if snap.Status == model.StatusClosed {
			return fmt.Errorf("scheduler: cancel %s: %w", auctionID, auctionerrors.ErrAuctionNotActive)
		}

		next := snap
		next.Status = model.StatusCancelled
		if err := s.store.CompareAndSwap(ctx, auctionID, snap.BidSeq, next); err != nil {
			if errors.Is(err, auctionerrors.ErrConflict) {
				continue
			}
			return fmt.Errorf("scheduler: cancel %s: %w", auctionID, err)
		}

		s.stopTimer(auctionID)
		if snap.LeaderLockID != "" {
			s.release(auctionID, snap.LeaderLockID)
		}

		s.broker.Publish(model.AuctionEvent{
			Type:       model.EventAuctionCancelled,
			AuctionID:  auctionID,
			Seq:        snap.BidSeq + 1,
			Price:      snap.CurrentPrice,
			EndTime:    snap.EndTime,
			OccurredAt: s.clk.Now(),
		})
		return nil
	}
	return fmt.Errorf("scheduler: cancel %s: %w", auctionID, auctionerrors.ErrContention)
}

func (s *Scheduler) release(auctionID, lockID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LedgerTimeout)
	defer cancel()

	err := s.gateway.Unlock(ctx, lockID)
	if err != nil && !errors.Is(err, auctionerrors.ErrLockNotFound) {
		utils.Error("scheduler: hold release failed", map[string]any{
			"auction_id": auctionID,
			"lock_id":    lockID,
			"error":      err.Error(),
		})
	}
}

func (s *Scheduler) stopTimer(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[auctionID]; ok {
		t.Stop()
		delete(s.timers, auctionID)
	}
}
