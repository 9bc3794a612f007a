package statestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"auction-coordinator/internal/auctionerrors"
	model "auction-coordinator/internal/models"
)

// MemoryStore is a concurrency-safe in-memory implementation of
// AuctionStateStore.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction
	bids     map[string]model.Bid     // key: bidID
	byAuc    map[string][]string      // key: auctionID -> bidIDs in Seq order
	byBidder map[string][]string      // key: bidderID -> bidIDs in insert order
}

// NewMemoryStore creates a new in-memory store instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string]model.Bid),
		byAuc:    make(map[string][]string),
		byBidder: make(map[string][]string),
	}
}

// Create registers a new auction record. The initial BidSeq is kept as
// given (normally zero).
func (s *MemoryStore) Create(ctx context.Context, auction model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: already exists", auction.AuctionID)
	}
	s.auctions[auction.AuctionID] = auction
	return nil
}

// Read returns a snapshot of the auction record.
func (s *MemoryStore) Read(ctx context.Context, auctionID string) (model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("read auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// CompareAndSwap replaces the record only if the stored BidSeq still equals
// expectedSeq. The stored record's BidSeq becomes expectedSeq+1.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, auctionID string, expectedSeq uint64, next model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("cas auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if current.BidSeq != expectedSeq {
		return fmt.Errorf("cas auction %s: have seq %d, expected %d: %w",
			auctionID, current.BidSeq, expectedSeq, auctionerrors.ErrConflict)
	}

	next.AuctionID = auctionID
	next.BidSeq = expectedSeq + 1
	s.auctions[auctionID] = next
	return nil
}

// AppendBid records an accepted bid. Bids are append-only.
func (s *MemoryStore) AppendBid(ctx context.Context, bid model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}
	if _, ok := s.bids[bid.BidID]; ok {
		return fmt.Errorf("append bid %s: already recorded", bid.BidID)
	}
	s.bids[bid.BidID] = bid
	s.byAuc[bid.AuctionID] = append(s.byAuc[bid.AuctionID], bid.BidID)
	s.byBidder[bid.BidderID] = append(s.byBidder[bid.BidderID], bid.BidID)
	return nil
}

// GetBid returns a single bid by id.
func (s *MemoryStore) GetBid(ctx context.Context, bidID string) (model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bids[bidID]
	if !ok {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	return b, nil
}

// SetBidStatus flips a bid's status; used for withdrawal.
func (s *MemoryStore) SetBidStatus(ctx context.Context, bidID string, status model.BidStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[bidID]
	if !ok {
		return fmt.Errorf("set status for bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	b.Status = status
	s.bids[bidID] = b
	return nil
}

// BidsByAuction returns all bids for an auction in Seq order.
func (s *MemoryStore) BidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAuc[auctionID]
	bids := make([]model.Bid, 0, len(ids))
	for _, id := range ids {
		bids = append(bids, s.bids[id])
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Seq < bids[j].Seq })
	return bids, nil
}

// BidsByBidder returns all bids a bidder has placed, across auctions.
func (s *MemoryStore) BidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byBidder[bidderID]
	bids := make([]model.Bid, 0, len(ids))
	for _, id := range ids {
		bids = append(bids, s.bids[id])
	}
	return bids, nil
}

// ListOpen returns every auction that has not reached a terminal status.
func (s *MemoryStore) ListOpen(ctx context.Context) ([]model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []model.Auction
	for _, a := range s.auctions {
		if a.Status != model.StatusClosed && a.Status != model.StatusCancelled {
			open = append(open, a)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].AuctionID < open[j].AuctionID })
	return open, nil
}
