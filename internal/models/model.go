package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionKind selects the bidding direction for an auction.
type AuctionKind string

const (
	KindForward AuctionKind = "forward" // price rises, highest bid wins
	KindReverse AuctionKind = "reverse" // price falls, lowest quote wins
)

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	StatusCreated   AuctionStatus = "created"
	StatusActive    AuctionStatus = "active"
	StatusEnding    AuctionStatus = "ending"
	StatusClosed    AuctionStatus = "closed"
	StatusCancelled AuctionStatus = "cancelled"
)

// Auction is the authoritative per-auction record held by the state store.
// ReservePrice and BuyNowPrice are optional; a zero decimal means unset.
type Auction struct {
	AuctionID     string          `json:"auction_id"`
	SellerID      string          `json:"seller_id"`
	Kind          AuctionKind     `json:"kind"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	ReservePrice  decimal.Decimal `json:"reserve_price"`
	BuyNowPrice   decimal.Decimal `json:"buy_now_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	LeaderID      string          `json:"leader_id"`
	LeaderLockID  string          `json:"leader_lock_id"`
	Status        AuctionStatus   `json:"status"`
	Frozen        bool            `json:"frozen"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	BidSeq        uint64          `json:"bid_seq"`
	BidCount      int             `json:"bid_count"`
	Extensions    int             `json:"extensions"`
}

// HasReserve reports whether a reserve price was set at creation.
func (a Auction) HasReserve() bool {
	return !a.ReservePrice.IsZero()
}

// HasBuyNow reports whether a buy-now price was set at creation.
func (a Auction) HasBuyNow() bool {
	return !a.BuyNowPrice.IsZero()
}

// ReserveMet reports whether the current price satisfies the reserve, in
// the improving direction for the auction kind. Auctions without a reserve
// always satisfy it.
func (a Auction) ReserveMet() bool {
	if !a.HasReserve() {
		return true
	}
	if a.Kind == KindReverse {
		return a.CurrentPrice.LessThanOrEqual(a.ReservePrice)
	}
	return a.CurrentPrice.GreaterThanOrEqual(a.ReservePrice)
}

// Improves reports whether amount strictly improves on the current price
// for the auction kind.
func (a Auction) Improves(amount decimal.Decimal) bool {
	if a.Kind == KindReverse {
		return amount.GreaterThan(decimal.Zero) && amount.LessThan(a.CurrentPrice)
	}
	return amount.GreaterThan(a.CurrentPrice)
}

// BidStatus marks a bid as live or withdrawn. Bids are append-only; a
// withdrawn bid keeps its row with a flipped status.
type BidStatus string

const (
	BidAccepted  BidStatus = "accepted"
	BidWithdrawn BidStatus = "withdrawn"
)

// Bid is a single accepted bid. Seq is assigned from the auction's
// monotonic counter at admission and never reused.
type Bid struct {
	BidID      string          `json:"bid_id"`
	AuctionID  string          `json:"auction_id"`
	BidderID   string          `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	Seq        uint64          `json:"seq"`
	Status     BidStatus       `json:"status"`
	AutoBid    bool            `json:"auto_bid"`
	AcceptedAt time.Time       `json:"accepted_at"`
}
