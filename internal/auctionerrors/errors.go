package auctionerrors

import "errors"

// Store-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrConflict        = errors.New("state store sequence conflict")
	ErrBidNotFound     = errors.New("bid not found")
)

// Validation errors: surfaced to the caller immediately, never retried.
var (
	ErrAuctionNotActive = errors.New("auction is not accepting bids")
	ErrSelfBidForbidden = errors.New("seller may not bid on own auction")
	ErrInvalidAmount    = errors.New("bid does not improve the current price")
	ErrAuctionFrozen    = errors.New("auction is frozen pending manual intervention")
	ErrNotBidOwner      = errors.New("bid belongs to another bidder")
)

// Ledger errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds for bid lock")
	ErrLockNotFound      = errors.New("fund lock not found")
	ErrLedgerTimeout     = errors.New("ledger call timed out")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrAlreadySettled    = errors.New("auction already settled")
)

// ErrContention is returned when the admission pipeline exhausts its CAS
// retry budget; the caller may safely resubmit the same logical bid.
var ErrContention = errors.New("auction under contention, retry")

// Retryable reports whether the caller may resubmit the same logical
// request after err without risking a double-applied bid.
func Retryable(err error) bool {
	return errors.Is(err, ErrContention) ||
		errors.Is(err, ErrLedgerTimeout) ||
		errors.Is(err, ErrLedgerUnavailable)
}

// ReasonCode maps err to the stable wire code carried in rejections.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrAuctionNotActive):
		return "AuctionNotActive"
	case errors.Is(err, ErrSelfBidForbidden):
		return "SelfBidForbidden"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrContention):
		return "Contention"
	case errors.Is(err, ErrLedgerTimeout):
		return "LedgerTimeout"
	case errors.Is(err, ErrLedgerUnavailable):
		return "LedgerUnavailable"
	case errors.Is(err, ErrAuctionFrozen):
		return "AuctionFrozen"
	case errors.Is(err, ErrAuctionNotFound):
		return "AuctionNotFound"
	case errors.Is(err, ErrBidNotFound):
		return "BidNotFound"
	case errors.Is(err, ErrNotBidOwner):
		return "NotBidOwner"
	default:
		return "Internal"
	}
}
