package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the boundary to the external token ledger. The coordinator
// calls it to hold, release, and settle bidder funds; balance storage and
// fee policy live behind this interface.
//
// Every call takes a context carrying the caller's deadline. Implementations
// must be safe for concurrent use.
type Gateway interface {
	// Lock places a hold of amount against userID's balance and returns the
	// hold's id. Fails with auctionerrors.ErrInsufficientFunds when the
	// available balance does not cover amount.
	Lock(ctx context.Context, userID string, amount decimal.Decimal) (string, error)

	// Unlock releases a previously placed hold. Releasing an unknown hold
	// fails with auctionerrors.ErrLockNotFound; callers displacing a leader
	// treat that as already-released.
	Unlock(ctx context.Context, lockID string) error

	// Settle consumes the buyer's hold for amount and credits the seller.
	// Fee deduction (platform fee and burn split) is internal to the ledger
	// and happens on the seller-credit side, after the hold is consumed.
	Settle(ctx context.Context, buyerID, sellerID string, amount decimal.Decimal) (string, error)
}
