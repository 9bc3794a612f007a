package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"auction-coordinator/internal/auctionerrors"
	"auction-coordinator/utils"
)

// MemoryLedger is an in-process Gateway used by main and the integration
// tests. It keeps per-user available balances and active holds, and applies
// the platform fee split at settle time.
type MemoryLedger struct {
	mu        sync.Mutex
	available map[string]decimal.Decimal
	locks     map[string]hold
	burned    decimal.Decimal
	treasury  decimal.Decimal

	feePct  decimal.Decimal // platform fee, fraction of settled amount
	burnPct decimal.Decimal // fraction of the fee that is burned
}

type hold struct {
	userID string
	amount decimal.Decimal
}

// NewMemoryLedger creates a ledger with a 10% platform fee, half of which
// is burned.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		available: make(map[string]decimal.Decimal),
		locks:     make(map[string]hold),
		feePct:    decimal.NewFromFloat(0.10),
		burnPct:   decimal.NewFromFloat(0.50),
	}
}

// Deposit credits a user's available balance.
func (l *MemoryLedger) Deposit(userID string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.available[userID] = l.balanceLocked(userID).Add(amount)
}

// Lock holds amount against the user's available balance.
func (l *MemoryLedger) Lock(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("ledger lock for %s: %w", userID, auctionerrors.ErrLedgerTimeout)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	avail := l.balanceLocked(userID)
	if avail.LessThan(amount) {
		return "", fmt.Errorf("ledger lock for %s: have %s, need %s: %w",
			userID, avail, amount, auctionerrors.ErrInsufficientFunds)
	}

	lockID := utils.GenerateID()
	l.available[userID] = avail.Sub(amount)
	l.locks[lockID] = hold{userID: userID, amount: amount}
	return lockID, nil
}

// Unlock releases a hold back to the owner's available balance.
func (l *MemoryLedger) Unlock(ctx context.Context, lockID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ledger unlock %s: %w", lockID, auctionerrors.ErrLedgerTimeout)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.locks[lockID]
	if !ok {
		return fmt.Errorf("ledger unlock %s: %w", lockID, auctionerrors.ErrLockNotFound)
	}
	delete(l.locks, lockID)
	l.available[h.userID] = l.balanceLocked(h.userID).Add(h.amount)
	return nil
}

// Settle consumes the buyer's hold for amount and credits the seller minus
// the platform fee. When no matching hold exists the buyer's available
// balance is debited instead, so a direct buy-now settle also works.
func (l *MemoryLedger) Settle(ctx context.Context, buyerID, sellerID string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("ledger settle %s->%s: %w", buyerID, sellerID, auctionerrors.ErrLedgerTimeout)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.consumeHoldLocked(buyerID, amount) {
		avail := l.balanceLocked(buyerID)
		if avail.LessThan(amount) {
			return "", fmt.Errorf("ledger settle %s->%s: %w", buyerID, sellerID, auctionerrors.ErrInsufficientFunds)
		}
		l.available[buyerID] = avail.Sub(amount)
	}

	fee := amount.Mul(l.feePct)
	burn := fee.Mul(l.burnPct)
	l.burned = l.burned.Add(burn)
	l.treasury = l.treasury.Add(fee.Sub(burn))
	l.available[sellerID] = l.balanceLocked(sellerID).Add(amount.Sub(fee))

	return utils.GenerateID(), nil
}

// Available returns the user's spendable balance.
func (l *MemoryLedger) Available(userID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(userID)
}

// LockedTotal returns the sum of active holds for a user.
func (l *MemoryLedger) LockedTotal(userID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, h := range l.locks {
		if h.userID == userID {
			total = total.Add(h.amount)
		}
	}
	return total
}

// ActiveLocks returns the number of holds currently outstanding.
func (l *MemoryLedger) ActiveLocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *MemoryLedger) balanceLocked(userID string) decimal.Decimal {
	if b, ok := l.available[userID]; ok {
		return b
	}
	return decimal.Zero
}

func (l *MemoryLedger) consumeHoldLocked(userID string, amount decimal.Decimal) bool {
	for id, h := range l.locks {
		if h.userID == userID && h.amount.Equal(amount) {
			delete(l.locks, id)
			return true
		}
	}
	return false
}
