package statestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"auction-coordinator/internal/auctionerrors"
	model "auction-coordinator/internal/models"
)

// PostgresStore backs AuctionStateStore with Postgres. The compare-and-swap
// contract maps onto a conditional UPDATE guarded by bid_seq, so no explicit
// row locks are taken on the hot path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS auctions (
	auction_id     TEXT PRIMARY KEY,
	seller_id      TEXT NOT NULL,
	kind           TEXT NOT NULL,
	starting_price NUMERIC NOT NULL,
	reserve_price  NUMERIC NOT NULL DEFAULT 0,
	buy_now_price  NUMERIC NOT NULL DEFAULT 0,
	current_price  NUMERIC NOT NULL,
	leader_id      TEXT NOT NULL DEFAULT '',
	leader_lock_id TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	frozen         BOOLEAN NOT NULL DEFAULT FALSE,
	start_time     TIMESTAMPTZ NOT NULL,
	end_time       TIMESTAMPTZ NOT NULL,
	bid_seq        BIGINT NOT NULL DEFAULT 0,
	bid_count      INTEGER NOT NULL DEFAULT 0,
	extensions     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bids (
	bid_id      TEXT PRIMARY KEY,
	auction_id  TEXT NOT NULL REFERENCES auctions (auction_id),
	bidder_id   TEXT NOT NULL,
	amount      NUMERIC NOT NULL,
	seq         BIGINT NOT NULL,
	status      TEXT NOT NULL,
	auto_bid    BOOLEAN NOT NULL DEFAULT FALSE,
	accepted_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS bids_auction_seq_idx ON bids (auction_id, seq);
CREATE INDEX IF NOT EXISTS bids_bidder_idx ON bids (bidder_id);
`

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const auctionColumns = `auction_id, seller_id, kind, starting_price::text, reserve_price::text,
	buy_now_price::text, current_price::text, leader_id, leader_lock_id, status, frozen,
	start_time, end_time, bid_seq, bid_count, extensions`

func (s *PostgresStore) Create(ctx context.Context, a model.Auction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auctions (auction_id, seller_id, kind, starting_price, reserve_price,
			buy_now_price, current_price, leader_id, leader_lock_id, status, frozen,
			start_time, end_time, bid_seq, bid_count, extensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.AuctionID, a.SellerID, string(a.Kind), a.StartingPrice.String(), a.ReservePrice.String(),
		a.BuyNowPrice.String(), a.CurrentPrice.String(), a.LeaderID, a.LeaderLockID,
		string(a.Status), a.Frozen, a.StartTime, a.EndTime, int64(a.BidSeq), a.BidCount, a.Extensions)
	if err != nil {
		return fmt.Errorf("create auction %s: %w", a.AuctionID, err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, auctionID string) (model.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE auction_id = $1`, auctionID)
	a, err := scanAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("read auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("read auction %s: %w", auctionID, err)
	}
	return a, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, auctionID string, expectedSeq uint64, next model.Auction) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE auctions SET
			current_price = $3, leader_id = $4, leader_lock_id = $5, status = $6,
			frozen = $7, end_time = $8, bid_seq = $9, bid_count = $10, extensions = $11
		WHERE auction_id = $1 AND bid_seq = $2`,
		auctionID, int64(expectedSeq),
		next.CurrentPrice.String(), next.LeaderID, next.LeaderLockID, string(next.Status),
		next.Frozen, next.EndTime, int64(expectedSeq+1), next.BidCount, next.Extensions)
	if err != nil {
		return fmt.Errorf("cas auction %s: %w", auctionID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or the sequence moved under us.
		if _, readErr := s.Read(ctx, auctionID); readErr != nil {
			return readErr
		}
		return fmt.Errorf("cas auction %s: expected seq %d: %w", auctionID, expectedSeq, auctionerrors.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) AppendBid(ctx context.Context, b model.Bid) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bids (bid_id, auction_id, bidder_id, amount, seq, status, auto_bid, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.BidID, b.AuctionID, b.BidderID, b.Amount.String(), int64(b.Seq),
		string(b.Status), b.AutoBid, b.AcceptedAt)
	if err != nil {
		return fmt.Errorf("append bid %s: %w", b.BidID, err)
	}
	return nil
}

func (s *PostgresStore) GetBid(ctx context.Context, bidID string) (model.Bid, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT bid_id, auction_id, bidder_id, amount::text, seq, status, auto_bid, accepted_at
		FROM bids WHERE bid_id = $1`, bidID)
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, err)
	}
	return b, nil
}

func (s *PostgresStore) SetBidStatus(ctx context.Context, bidID string, status model.BidStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bids SET status = $2 WHERE bid_id = $1`, bidID, string(status))
	if err != nil {
		return fmt.Errorf("set status for bid %s: %w", bidID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set status for bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	return nil
}

func (s *PostgresStore) BidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bid_id, auction_id, bidder_id, amount::text, seq, status, auto_bid, accepted_at
		FROM bids WHERE auction_id = $1 ORDER BY seq`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()
	return collectBids(rows)
}

func (s *PostgresStore) BidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bid_id, auction_id, bidder_id, amount::text, seq, status, auto_bid, accepted_at
		FROM bids WHERE bidder_id = $1 ORDER BY accepted_at`, bidderID)
	if err != nil {
		return nil, fmt.Errorf("bids for bidder %s: %w", bidderID, err)
	}
	defer rows.Close()
	return collectBids(rows)
}

func (s *PostgresStore) ListOpen(ctx context.Context) ([]model.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE status NOT IN ('closed', 'cancelled') ORDER BY auction_id`)
	if err != nil {
		return nil, fmt.Errorf("list open auctions: %w", err)
	}
	defer rows.Close()

	var out []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("list open auctions: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAuction(row pgx.Row) (model.Auction, error) {
	var (
		a                                  model.Auction
		kind, status                       string
		starting, reserve, buyNow, current string
		bidSeq                             int64
	)
	err := row.Scan(&a.AuctionID, &a.SellerID, &kind, &starting, &reserve, &buyNow,
		&current, &a.LeaderID, &a.LeaderLockID, &status, &a.Frozen,
		&a.StartTime, &a.EndTime, &bidSeq, &a.BidCount, &a.Extensions)
	if err != nil {
		return model.Auction{}, err
	}
	a.Kind = model.AuctionKind(kind)
	a.Status = model.AuctionStatus(status)
	a.BidSeq = uint64(bidSeq)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&a.StartingPrice, starting},
		{&a.ReservePrice, reserve},
		{&a.BuyNowPrice, buyNow},
		{&a.CurrentPrice, current},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return model.Auction{}, fmt.Errorf("parse price %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return a, nil
}

func scanBid(row pgx.Row) (model.Bid, error) {
	var (
		b      model.Bid
		amount string
		seq    int64
		status string
	)
	err := row.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &amount, &seq, &status, &b.AutoBid, &b.AcceptedAt)
	if err != nil {
		return model.Bid{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Bid{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	b.Amount = d
	b.Seq = uint64(seq)
	b.Status = model.BidStatus(status)
	return b, nil
}

func collectBids(rows pgx.Rows) ([]model.Bid, error) {
	var out []model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
