package statestore

import (
	"context"

	model "auction-coordinator/internal/models"
)

// AuctionStateStore holds the single authoritative record per auction plus
// the append-only bid history.
//
// CompareAndSwap is the only way to mutate an auction record. It succeeds
// only when the stored BidSeq still equals expectedSeq, and on success
// stores next with BidSeq forced to expectedSeq+1 — so every successful
// swap strictly increments the sequence and a reader always observes a
// fully-formed snapshot from some completed update. A conflict means the
// caller must re-read and decide whether to retry.
type AuctionStateStore interface {
	Create(ctx context.Context, auction model.Auction) error
	Read(ctx context.Context, auctionID string) (model.Auction, error)
	CompareAndSwap(ctx context.Context, auctionID string, expectedSeq uint64, next model.Auction) error

	AppendBid(ctx context.Context, bid model.Bid) error
	GetBid(ctx context.Context, bidID string) (model.Bid, error)
	SetBidStatus(ctx context.Context, bidID string, status model.BidStatus) error
	BidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	BidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error)
	ListOpen(ctx context.Context) ([]model.Auction, error)
}
