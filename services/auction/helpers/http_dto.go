package helpers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type CreateAuctionRequest struct {
	SellerID      string          `json:"seller_id" binding:"required"`
	Kind          string          `json:"kind" binding:"required,oneof=forward reverse"`
	StartingPrice decimal.Decimal `json:"starting_price" binding:"required"`
	ReservePrice  decimal.Decimal `json:"reserve_price"`
	BuyNowPrice   decimal.Decimal `json:"buy_now_price"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time" binding:"required"`
}

type PlaceBidRequest struct {
	BidderID   string          `json:"bidder_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	AutoBidMax decimal.Decimal `json:"auto_bid_max"`
}

type WithdrawBidRequest struct {
	BidderID string `json:"bidder_id" binding:"required"`
}

type BidResponse struct {
	BidID      string          `json:"bid_id"`
	AuctionID  string          `json:"auction_id"`
	BidderID   string          `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	Seq        uint64          `json:"seq"`
	AutoBid    bool            `json:"auto_bid"`
	AcceptedAt string          `json:"accepted_at"`
}

type BidResultResponse struct {
	Accepted     bool            `json:"accepted"`
	ReasonCode   string          `json:"reason_code,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	EndTime      string          `json:"end_time"`
	Extended     bool            `json:"extended"`
	BuyNow       bool            `json:"buy_now"`
	Bid          *BidResponse    `json:"bid,omitempty"`
}
