package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies an auction state-change event on the broadcast feed.
type EventType string

const (
	EventBidAccepted      EventType = "bid_accepted"
	EventBidWithdrawn     EventType = "bid_withdrawn"
	EventAuctionExtended  EventType = "auction_extended"
	EventAuctionEnded     EventType = "auction_ended"
	EventAuctionCancelled EventType = "auction_cancelled"
)

// AuctionEvent is a state delta published to subscribers of an auction
// channel. Seq mirrors the auction's BidSeq at the time the event was
// produced; subscribers of one auction always observe events in Seq order.
type AuctionEvent struct {
	Type       EventType       `json:"type"`
	AuctionID  string          `json:"auction_id"`
	Seq        uint64          `json:"seq"`
	BidID      string          `json:"bid_id,omitempty"`
	BidderID   string          `json:"bidder_id,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Won        bool            `json:"won,omitempty"`
	WinnerID   string          `json:"winner_id,omitempty"`
	FinalPrice decimal.Decimal `json:"final_price,omitempty"`
	EndTime    time.Time       `json:"end_time,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// UserNotification is delivered on a bidder's personal channel, separate
// from the auction feed.
type UserNotification struct {
	UserID     string          `json:"user_id"`
	AuctionID  string          `json:"auction_id"`
	Kind       string          `json:"kind"` // "outbid", "won", "refunded", "leading"
	Price      decimal.Decimal `json:"price"`
	OccurredAt time.Time       `json:"occurred_at"`
}
