package pipeline

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"auction-coordinator/internal/auctionerrors"
	model "auction-coordinator/internal/models"
	"auction-coordinator/utils"
)

// autoBidRounds caps the counter-bidding loop per admission as a backstop;
// the loop already terminates because every round moves the price at least
// one increment toward a registered ceiling.
const autoBidRounds = 1000

// registerAutoBid records a proxy-bid ceiling (floor for reverse auctions)
// for a bidder. Re-registering replaces the previous bound.
func (p *Pipeline) registerAutoBid(auctionID, bidderID string, bound decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries, ok := p.autoBids[auctionID]
	if !ok {
		entries = make(map[string]decimal.Decimal)
		p.autoBids[auctionID] = entries
	}
	entries[bidderID] = bound
}

// CancelAutoBid removes a bidder's proxy registration. Idempotent.
func (p *Pipeline) CancelAutoBid(auctionID, bidderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.autoBids[auctionID], bidderID)
}

// runAutoBids re-enters the admission sequence on behalf of displaced proxy
// bidders, raising by the minimum increment until either a proxy holds the
// lead or every remaining bound is exhausted. Runs under the auction's
// admission mutex, so proxy rounds and the triggering bid form one serial
// history.
func (p *Pipeline) runAutoBids(ctx context.Context, auctionID string) {
	for round := 0; round < autoBidRounds; round++ {
		snap, err := p.store.Read(ctx, auctionID)
		if err != nil {
			return
		}
		if snap.Status != model.StatusActive && snap.Status != model.StatusEnding {
			return
		}

		bidderID, target, ok := p.nextAutoBid(snap)
		if !ok {
			return
		}

		result, err := p.admit(ctx, BidRequest{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    target,
		}, true)
		if err != nil {
			if errors.Is(err, auctionerrors.ErrInsufficientFunds) {
				// The registered bound is no longer backed by funds.
				p.CancelAutoBid(auctionID, bidderID)
				utils.Warn("pipeline: auto-bid dropped, funds gone", map[string]any{
					"auction_id": auctionID,
					"bidder_id":  bidderID,
				})
				continue
			}
			utils.Warn("pipeline: auto-bid rejected", map[string]any{
				"auction_id": auctionID,
				"bidder_id":  bidderID,
				"reason":     auctionerrors.ReasonCode(err),
			})
			return
		}
		if result.BuyNow {
			p.closeForBuyNow(ctx, auctionID)
			return
		}
	}
}

// nextAutoBid picks the proxy bidder to counter with, if any: the one with
// the strongest remaining bound that is not already leading, bidding the
// minimum improving step capped at their bound.
func (p *Pipeline) nextAutoBid(snap model.Auction) (string, decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.autoBids[snap.AuctionID]
	var (
		bestID    string
		bestBound decimal.Decimal
	)
	for bidderID, bound := range entries {
		if bidderID == snap.LeaderID {
			continue
		}
		if !withinBound(snap.Kind, minimalStep(snap, p.cfg.MinIncrement), bound) {
			continue
		}
		if bestID == "" || stronger(snap.Kind, bound, bestBound) ||
			(bound.Equal(bestBound) && bidderID < bestID) {
			bestID = bidderID
			bestBound = bound
		}
	}
	if bestID == "" {
		return "", decimal.Decimal{}, false
	}
	return bestID, minimalStep(snap, p.cfg.MinIncrement), true
}

// minimalStep is the least amount that still improves the current price.
func minimalStep(snap model.Auction, increment decimal.Decimal) decimal.Decimal {
	if snap.Kind == model.KindReverse {
		return snap.CurrentPrice.Sub(increment)
	}
	return snap.CurrentPrice.Add(increment)
}

func withinBound(kind model.AuctionKind, target, bound decimal.Decimal) bool {
	if kind == model.KindReverse {
		return target.GreaterThanOrEqual(bound) && target.GreaterThan(decimal.Zero)
	}
	return target.LessThanOrEqual(bound)
}

func stronger(kind model.AuctionKind, a, b decimal.Decimal) bool {
	if kind == model.KindReverse {
		return a.LessThan(b)
	}
	return a.GreaterThan(b)
}
