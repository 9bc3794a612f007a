package pipeline

import (
	"context"
	"errors"
	"fmt"

	"auction-coordinator/internal/auctionerrors"
	model "auction-coordinator/internal/models"
	"auction-coordinator/utils"
)

// WithdrawBid flips an accepted bid to withdrawn. Withdrawing the leading
// bid releases its fund hold and promotes the best earlier live bid whose
// bidder can still cover it; when none qualifies the auction reverts to no
// leader at the starting price.
func (p *Pipeline) WithdrawBid(ctx context.Context, auctionID, bidID, bidderID string) error {
	if auctionID == "" || bidID == "" || bidderID == "" {
		return fmt.Errorf("pipeline: %w - missing identifiers", auctionerrors.ErrBidNotFound)
	}

	lock := p.admissionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()

	bid, err := p.store.GetBid(ctx, bidID)
	if err != nil {
		return fmt.Errorf("pipeline: withdraw %s: %w", bidID, err)
	}
	if bid.AuctionID != auctionID {
		return fmt.Errorf("pipeline: withdraw %s: bid belongs to auction %s: %w",
			bidID, bid.AuctionID, auctionerrors.ErrBidNotFound)
	}
	if bid.BidderID != bidderID {
		return fmt.Errorf("pipeline: withdraw %s: %w", bidID, auctionerrors.ErrNotBidOwner)
	}
	if bid.Status == model.BidWithdrawn {
		return nil // idempotent
	}

	for attempt := 0; attempt <= p.cfg.CASMaxRetries; attempt++ {
		snap, err := p.store.Read(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("pipeline: withdraw %s: %w", bidID, err)
		}
		if snap.Frozen {
			return fmt.Errorf("pipeline: withdraw %s: %w", bidID, auctionerrors.ErrAuctionFrozen)
		}
		if snap.Status != model.StatusActive && snap.Status != model.StatusEnding {
			return fmt.Errorf("pipeline: withdraw %s: auction %s: %w", bidID, snap.Status, auctionerrors.ErrAuctionNotActive)
		}

		leading := snap.LeaderID == bid.BidderID && snap.CurrentPrice.Equal(bid.Amount)

		var done bool
		if leading {
			done, err = p.withdrawLeading(ctx, snap, bid)
		} else {
			done, err = p.withdrawTrailing(ctx, snap, bid)
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		// swap conflict, re-read and retry
	}
	return fmt.Errorf("pipeline: withdraw %s: %w", bidID, auctionerrors.ErrContention)
}

// withdrawTrailing handles a non-leading bid: no hold to release, but the
// withdrawal still claims a sequence number so the event feed stays ordered.
// Returns done=false on a swap conflict.
func (p *Pipeline) withdrawTrailing(ctx context.Context, snap model.Auction, bid model.Bid) (bool, error) {
	next := snap
	next.BidCount--
	if err := p.store.CompareAndSwap(ctx, snap.AuctionID, snap.BidSeq, next); err != nil {
		if errors.Is(err, auctionerrors.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("pipeline: withdraw %s: %w", bid.BidID, err)
	}
	return true, p.finishWithdrawal(ctx, bid, snap.BidSeq+1, next)
}

// withdrawLeading releases the leader's hold, promotes a successor, and
// swaps the new state in. Returns done=false on a swap conflict.
func (p *Pipeline) withdrawLeading(ctx context.Context, snap model.Auction, bid model.Bid) (bool, error) {
	successor, successorLock, err := p.pickSuccessor(ctx, snap, bid)
	if err != nil {
		return false, err
	}

	next := snap
	next.BidCount--
	if successor != nil {
		next.LeaderID = successor.BidderID
		next.CurrentPrice = successor.Amount
		next.LeaderLockID = successorLock
	} else {
		next.LeaderID = ""
		next.LeaderLockID = ""
		next.CurrentPrice = snap.StartingPrice
	}

	if err := p.store.CompareAndSwap(ctx, snap.AuctionID, snap.BidSeq, next); err != nil {
		if successorLock != "" {
			p.releaseQuietly(snap.AuctionID, successorLock)
		}
		if errors.Is(err, auctionerrors.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("pipeline: withdraw %s: %w", bid.BidID, err)
	}

	// The withdrawn leader's hold is released only after the swap commits,
	// so a failed withdrawal never leaves the leading bid unbacked.
	if snap.LeaderLockID != "" {
		if err := p.unlockFunds(ctx, snap.LeaderLockID); err != nil {
			utils.Error("pipeline: withdrawn leader hold not released", map[string]any{
				"auction_id": snap.AuctionID,
				"lock_id":    snap.LeaderLockID,
				"error":      err.Error(),
			})
		}
	}

	if err := p.finishWithdrawal(ctx, bid, snap.BidSeq+1, next); err != nil {
		return true, err
	}

	p.broker.NotifyUser(model.UserNotification{
		UserID:     bid.BidderID,
		AuctionID:  snap.AuctionID,
		Kind:       "refunded",
		Price:      bid.Amount,
		OccurredAt: p.clk.Now(),
	})
	if successor != nil {
		p.broker.NotifyUser(model.UserNotification{
			UserID:     successor.BidderID,
			AuctionID:  snap.AuctionID,
			Kind:       "leading",
			Price:      successor.Amount,
			OccurredAt: p.clk.Now(),
		})
	}
	return true, nil
}

// pickSuccessor finds the best earlier live bid and re-locks its bidder's
// funds. Bidders whose balance no longer covers their bid are skipped.
func (p *Pipeline) pickSuccessor(ctx context.Context, snap model.Auction, withdrawing model.Bid) (*model.Bid, string, error) {
	bids, err := p.store.BidsByAuction(ctx, snap.AuctionID)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: withdraw %s: %w", withdrawing.BidID, err)
	}

	// Prices improve strictly per accepted bid, so the best remaining bid
	// is the latest live one. Walk newest to oldest.
	for i := len(bids) - 1; i >= 0; i-- {
		candidate := bids[i]
		if candidate.BidID == withdrawing.BidID || candidate.Status != model.BidAccepted {
			continue
		}
		if candidate.BidderID == withdrawing.BidderID {
			// The withdrawer's older bids do not retain the lead.
			continue
		}

		lockID, err := p.lockFunds(ctx, candidate.BidderID, candidate.Amount)
		if err == nil {
			return &candidate, lockID, nil
		}
		if errors.Is(err, auctionerrors.ErrInsufficientFunds) {
			utils.Warn("pipeline: successor bid skipped, funds gone", map[string]any{
				"auction_id": snap.AuctionID,
				"bid_id":     candidate.BidID,
				"bidder_id":  candidate.BidderID,
			})
			continue
		}
		return nil, "", err
	}
	return nil, "", nil
}

func (p *Pipeline) finishWithdrawal(ctx context.Context, bid model.Bid, seq uint64, next model.Auction) error {
	if err := p.store.SetBidStatus(ctx, bid.BidID, model.BidWithdrawn); err != nil {
		return fmt.Errorf("pipeline: withdraw %s: %w", bid.BidID, err)
	}

	now := p.clk.Now()
	p.broker.Publish(model.AuctionEvent{
		Type:       model.EventBidWithdrawn,
		AuctionID:  bid.AuctionID,
		Seq:        seq,
		BidID:      bid.BidID,
		BidderID:   bid.BidderID,
		Price:      next.CurrentPrice,
		EndTime:    next.EndTime,
		OccurredAt: now,
	})
	return nil
}
