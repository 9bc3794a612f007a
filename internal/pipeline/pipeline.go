// Package pipeline decides accept/reject for every incoming bid.
//
// All mutating work for one auction runs under that auction's admission
// mutex, so no two admissions for the same auction are in flight past the
// read-validate step at once. The state store's compare-and-swap is kept as
// the second line of defense against the lifecycle scheduler, which mutates
// the same record through the same primitive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auction-coordinator/internal/auctionerrors"
	"auction-coordinator/internal/broadcast"
	"auction-coordinator/internal/clock"
	"auction-coordinator/internal/config"
	"auction-coordinator/internal/ledger"
	model "auction-coordinator/internal/models"
	"auction-coordinator/internal/statestore"
	"auction-coordinator/utils"
)

// Closer is the slice of the lifecycle scheduler the pipeline needs for
// buy-now: an immediate, exactly-once closure of an auction.
type Closer interface {
	CloseNow(ctx context.Context, auctionID string) error
}

// BidRequest is an incoming bid. AutoBidMax, when non-zero, registers a
// proxy bid: the pipeline re-bids on the caller's behalf up to that ceiling
// (floor, for reverse auctions) whenever the caller is displaced.
type BidRequest struct {
	AuctionID  string
	BidderID   string
	Amount     decimal.Decimal
	AutoBidMax decimal.Decimal
}

// BidResult reports the outcome of an admission. Rejections carry the
// reason code plus the authoritative price at decision time so clients can
// immediately re-bid at the right threshold.
type BidResult struct {
	Accepted     bool            `json:"accepted"`
	Bid          model.Bid       `json:"bid,omitempty"`
	ReasonCode   string          `json:"reason_code,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	EndTime      time.Time       `json:"end_time"`
	Extended     bool            `json:"extended,omitempty"`
	BuyNow       bool            `json:"buy_now,omitempty"`
}

// Pipeline is the bid admission pipeline.
type Pipeline struct {
	store   statestore.AuctionStateStore
	gateway ledger.Gateway
	broker  *broadcast.Broker
	clk     clock.Clock
	cfg     config.Config
	closer  Closer

	mu        sync.Mutex
	admission map[string]*sync.Mutex
	autoBids  map[string]map[string]decimal.Decimal // auctionID -> bidderID -> ceiling/floor
}

// New creates a Pipeline. The Closer is wired afterwards via SetCloser
// because the scheduler is constructed with a reference to the same store.
func New(store statestore.AuctionStateStore, gateway ledger.Gateway, broker *broadcast.Broker, clk clock.Clock, cfg config.Config) *Pipeline {
	return &Pipeline{
		store:     store,
		gateway:   gateway,
		broker:    broker,
		clk:       clk,
		cfg:       cfg,
		admission: make(map[string]*sync.Mutex),
		autoBids:  make(map[string]map[string]decimal.Decimal),
	}
}

// SetCloser wires the lifecycle scheduler's buy-now closure entry point.
func (p *Pipeline) SetCloser(c Closer) {
	p.closer = c
}

// PlaceBid validates and applies a bid, running auto-bids it unleashes and
// triggering buy-now closure when applicable.
func (p *Pipeline) PlaceBid(ctx context.Context, req BidRequest) (BidResult, error) {
	if req.AuctionID == "" || req.BidderID == "" {
		return BidResult{}, fmt.Errorf("pipeline: %w - missing auctionID or bidderID", auctionerrors.ErrInvalidAmount)
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		return BidResult{}, fmt.Errorf("pipeline: %w - non-positive amount", auctionerrors.ErrInvalidAmount)
	}

	lock := p.admissionLock(req.AuctionID)
	lock.Lock()
	defer lock.Unlock()

	result, err := p.admit(ctx, req, false)
	if err != nil {
		return result, err
	}

	if !req.AutoBidMax.IsZero() {
		p.registerAutoBid(req.AuctionID, req.BidderID, req.AutoBidMax)
	}

	if result.BuyNow {
		p.closeForBuyNow(ctx, req.AuctionID)
		return result, nil
	}

	p.runAutoBids(ctx, req.AuctionID)
	return result, nil
}

// LockAuction acquires the auction's admission mutex and returns its
// release. The scheduler serializes deadline closure and cancellation
// through it, so subscribers never see a terminal event ahead of an
// acceptance that already committed.
func (p *Pipeline) LockAuction(auctionID string) func() {
	lock := p.admissionLock(auctionID)
	lock.Lock()
	return lock.Unlock
}

// Snapshot returns the authoritative auction record.
func (p *Pipeline) Snapshot(ctx context.Context, auctionID string) (model.Auction, error) {
	if auctionID == "" {
		return model.Auction{}, fmt.Errorf("pipeline: %w - empty auction ID", auctionerrors.ErrAuctionNotFound)
	}
	return p.store.Read(ctx, auctionID)
}

// BidsForAuction returns the full bid history of an auction in Seq order.
func (p *Pipeline) BidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("pipeline: %w - empty auction ID", auctionerrors.ErrAuctionNotFound)
	}
	return p.store.BidsByAuction(ctx, auctionID)
}

// BidsForBidder returns every bid a bidder has placed.
func (p *Pipeline) BidsForBidder(ctx context.Context, bidderID string) ([]model.Bid, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("pipeline: %w - empty bidder ID", auctionerrors.ErrBidNotFound)
	}
	return p.store.BidsByBidder(ctx, bidderID)
}

// admit runs the read-validate-lock-swap sequence with bounded retry.
// Callers must hold the auction's admission mutex.
func (p *Pipeline) admit(ctx context.Context, req BidRequest, isAuto bool) (BidResult, error) {
	var lastSnap model.Auction

	for attempt := 0; attempt <= p.cfg.CASMaxRetries; attempt++ {
		snap, err := p.store.Read(ctx, req.AuctionID)
		if err != nil {
			return BidResult{}, fmt.Errorf("pipeline: read auction %s: %w", req.AuctionID, err)
		}
		lastSnap = snap
		now := p.clk.Now()

		if rejection := p.validate(snap, req, now); rejection != nil {
			return reject(snap, rejection), rejection
		}

		buyNow := snap.Kind == model.KindForward && snap.HasBuyNow() &&
			req.Amount.GreaterThanOrEqual(snap.BuyNowPrice)

		lockID, err := p.lockFunds(ctx, req.BidderID, req.Amount)
		if err != nil {
			return reject(snap, err), err
		}

		if snap.LeaderLockID != "" {
			if err := p.unlockFunds(ctx, snap.LeaderLockID); err != nil {
				p.releaseQuietly(req.AuctionID, lockID)
				return reject(snap, err), err
			}
		}

		next, extended := p.nextState(snap, req, now)
		next.LeaderLockID = lockID
		if err := p.store.CompareAndSwap(ctx, req.AuctionID, snap.BidSeq, next); err != nil {
			p.releaseQuietly(req.AuctionID, lockID)
			if errors.Is(err, auctionerrors.ErrConflict) {
				continue
			}
			return BidResult{}, fmt.Errorf("pipeline: swap auction %s: %w", req.AuctionID, err)
		}

		if !snap.Improves(next.CurrentPrice) && !buyNow {
			// Should be unreachable; the swap already committed, so the
			// auction is quarantined rather than silently healed.
			p.freeze(ctx, req.AuctionID, snap.BidSeq+1)
			return BidResult{}, fmt.Errorf("pipeline: %w - price %s does not improve %s",
				auctionerrors.ErrAuctionFrozen, next.CurrentPrice, snap.CurrentPrice)
		}

		bid := model.Bid{
			BidID:      utils.GenerateID(),
			AuctionID:  req.AuctionID,
			BidderID:   req.BidderID,
			Amount:     req.Amount,
			Seq:        snap.BidSeq + 1,
			Status:     model.BidAccepted,
			AutoBid:    isAuto,
			AcceptedAt: now,
		}
		if err := p.store.AppendBid(ctx, bid); err != nil {
			utils.Error("pipeline: accepted bid not recorded in history", map[string]any{
				"auction_id": req.AuctionID,
				"bid_id":     bid.BidID,
				"error":      err.Error(),
			})
		}

		p.emitAccepted(bid, next, snap, extended)

		return BidResult{
			Accepted:     true,
			Bid:          bid,
			CurrentPrice: next.CurrentPrice,
			EndTime:      next.EndTime,
			Extended:     extended,
			BuyNow:       buyNow,
		}, nil
	}

	err := fmt.Errorf("pipeline: auction %s: %w", req.AuctionID, auctionerrors.ErrContention)
	return reject(lastSnap, err), err
}

// validate applies the ordered rejection checks of the admission sequence.
func (p *Pipeline) validate(snap model.Auction, req BidRequest, now time.Time) error {
	if snap.Frozen {
		return fmt.Errorf("pipeline: auction %s: %w", snap.AuctionID, auctionerrors.ErrAuctionFrozen)
	}
	if snap.Status != model.StatusActive && snap.Status != model.StatusEnding {
		return fmt.Errorf("pipeline: auction %s status %s: %w", snap.AuctionID, snap.Status, auctionerrors.ErrAuctionNotActive)
	}
	// The deadline binds even if the closure timer has not fired yet.
	if now.After(snap.EndTime) {
		return fmt.Errorf("pipeline: auction %s past deadline: %w", snap.AuctionID, auctionerrors.ErrAuctionNotActive)
	}
	if req.BidderID == snap.SellerID {
		return fmt.Errorf("pipeline: auction %s: %w", snap.AuctionID, auctionerrors.ErrSelfBidForbidden)
	}

	buyNow := snap.Kind == model.KindForward && snap.HasBuyNow() &&
		req.Amount.GreaterThanOrEqual(snap.BuyNowPrice)
	if !snap.Improves(req.Amount) && !buyNow {
		return fmt.Errorf("pipeline: auction %s: amount %s vs current %s: %w",
			snap.AuctionID, req.Amount, snap.CurrentPrice, auctionerrors.ErrInvalidAmount)
	}
	return nil
}

// nextState builds the post-acceptance snapshot, applying the anti-snipe
// extension inside the same swap as the bid itself.
func (p *Pipeline) nextState(snap model.Auction, req BidRequest, now time.Time) (model.Auction, bool) {
	next := snap
	next.CurrentPrice = req.Amount
	next.LeaderID = req.BidderID
	next.BidCount++

	extended := false
	if snap.EndTime.Sub(now) < p.cfg.AntiSnipeThreshold {
		next.Status = model.StatusEnding
		if snap.Extensions < p.cfg.MaxExtensions {
			if newEnd := now.Add(p.cfg.ExtensionWindow); newEnd.After(snap.EndTime) {
				next.EndTime = newEnd
				next.Extensions++
				extended = true
			}
		}
	}
	return next, extended
}

func (p *Pipeline) emitAccepted(bid model.Bid, next, prev model.Auction, extended bool) {
	p.broker.Publish(model.AuctionEvent{
		Type:       model.EventBidAccepted,
		AuctionID:  bid.AuctionID,
		Seq:        bid.Seq,
		BidID:      bid.BidID,
		BidderID:   bid.BidderID,
		Price:      bid.Amount,
		EndTime:    next.EndTime,
		OccurredAt: bid.AcceptedAt,
	})
	if extended {
		p.broker.Publish(model.AuctionEvent{
			Type:       model.EventAuctionExtended,
			AuctionID:  bid.AuctionID,
			Seq:        bid.Seq,
			Price:      bid.Amount,
			EndTime:    next.EndTime,
			OccurredAt: bid.AcceptedAt,
		})
	}
	if prev.LeaderID != "" && prev.LeaderID != bid.BidderID {
		p.broker.NotifyUser(model.UserNotification{
			UserID:     prev.LeaderID,
			AuctionID:  bid.AuctionID,
			Kind:       "outbid",
			Price:      bid.Amount,
			OccurredAt: bid.AcceptedAt,
		})
	}
}

// lockFunds calls the ledger with the configured timeout and translates
// transport failures into the pipeline's error taxonomy.
func (p *Pipeline) lockFunds(ctx context.Context, bidderID string, amount decimal.Decimal) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.LedgerTimeout)
	defer cancel()

	lockID, err := p.gateway.Lock(callCtx, bidderID, amount)
	if err != nil {
		return "", translateLedgerErr(fmt.Errorf("pipeline: lock funds for %s: %w", bidderID, err))
	}
	return lockID, nil
}

// unlockFunds releases a displaced leader's hold. A missing hold is fine:
// a competing admission may have released it already.
func (p *Pipeline) unlockFunds(ctx context.Context, lockID string) error {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.LedgerTimeout)
	defer cancel()

	err := p.gateway.Unlock(callCtx, lockID)
	if err != nil && !errors.Is(err, auctionerrors.ErrLockNotFound) {
		return translateLedgerErr(fmt.Errorf("pipeline: unlock %s: %w", lockID, err))
	}
	return nil
}

// releaseQuietly rolls back the incoming bidder's own hold after a swap
// conflict or failure; the admission either retries or surfaces its error.
func (p *Pipeline) releaseQuietly(auctionID, lockID string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.LedgerTimeout)
	defer cancel()

	if err := p.gateway.Unlock(ctx, lockID); err != nil && !errors.Is(err, auctionerrors.ErrLockNotFound) {
		utils.Error("pipeline: rollback unlock failed", map[string]any{
			"auction_id": auctionID,
			"lock_id":    lockID,
			"error":      err.Error(),
		})
	}
}

// freeze quarantines an auction after an invariant violation. The record
// stays readable but admits nothing further until manual intervention.
func (p *Pipeline) freeze(ctx context.Context, auctionID string, expectedSeq uint64) {
	snap, err := p.store.Read(ctx, auctionID)
	if err == nil {
		snap.Frozen = true
		snap.Status = model.StatusEnding
		err = p.store.CompareAndSwap(ctx, auctionID, snap.BidSeq, snap)
	}
	utils.Error("pipeline: auction frozen after invariant violation", map[string]any{
		"auction_id": auctionID,
		"seq":        expectedSeq,
		"cas_error":  fmt.Sprintf("%v", err),
	})
}

func (p *Pipeline) closeForBuyNow(ctx context.Context, auctionID string) {
	if p.closer == nil {
		return
	}
	if err := p.closer.CloseNow(ctx, auctionID); err != nil {
		utils.Error("pipeline: buy-now closure failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
	}
}

func (p *Pipeline) admissionLock(auctionID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.admission[auctionID]
	if !ok {
		lock = &sync.Mutex{}
		p.admission[auctionID] = lock
	}
	return lock
}

// reject builds the rejection result carrying the authoritative price.
func reject(snap model.Auction, err error) BidResult {
	return BidResult{
		Accepted:     false,
		ReasonCode:   auctionerrors.ReasonCode(err),
		CurrentPrice: snap.CurrentPrice,
		EndTime:      snap.EndTime,
	}
}

func translateLedgerErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%v: %w", err, auctionerrors.ErrLedgerTimeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%v: %w", err, auctionerrors.ErrLedgerUnavailable)
	default:
		return err
	}
}
