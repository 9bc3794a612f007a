package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auction-coordinator/internal/auctionerrors"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// Test Lock
func TestMemoryLedger_Lock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewMemoryLedger()
	ledger.Deposit("user1", d(100))

	tests := []struct {
		name      string
		userID    string
		amount    decimal.Decimal
		expectErr error
	}{
		{name: "covered_lock", userID: "user1", amount: d(60), expectErr: nil},
		{name: "exceeds_remainder", userID: "user1", amount: d(50), expectErr: auctionerrors.ErrInsufficientFunds},
		{name: "unknown_user", userID: "ghost", amount: d(1), expectErr: auctionerrors.ErrInsufficientFunds},
		{name: "second_covered_lock", userID: "user1", amount: d(40), expectErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Lock(ctx, tc.userID, tc.amount)
			if tc.expectErr != nil {
				require.ErrorIs(t, err, tc.expectErr)
			} else {
				require.NoError(t, err)
			}
		})
	}

	require.True(t, ledger.Available("user1").Equal(d(0)))
	require.True(t, ledger.LockedTotal("user1").Equal(d(100)))
}

// Test Unlock returns funds and is not double-spendable
func TestMemoryLedger_Unlock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewMemoryLedger()
	ledger.Deposit("user1", d(100))

	lockID, err := ledger.Lock(ctx, "user1", d(70))
	require.NoError(t, err)
	require.True(t, ledger.Available("user1").Equal(d(30)))

	require.NoError(t, ledger.Unlock(ctx, lockID))
	require.True(t, ledger.Available("user1").Equal(d(100)))
	require.Zero(t, ledger.ActiveLocks())

	// releasing the same hold twice reports it gone
	err = ledger.Unlock(ctx, lockID)
	require.ErrorIs(t, err, auctionerrors.ErrLockNotFound)
	require.True(t, ledger.Available("user1").Equal(d(100)))
}

// Test Settle consumes the hold and applies the fee split on the seller side
func TestMemoryLedger_Settle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewMemoryLedger()
	ledger.Deposit("buyer", d(500))

	_, err := ledger.Lock(ctx, "buyer", d(300))
	require.NoError(t, err)

	settlementID, err := ledger.Settle(ctx, "buyer", "seller", d(300))
	require.NoError(t, err)
	require.NotEmpty(t, settlementID)

	// hold consumed, not returned
	require.Zero(t, ledger.ActiveLocks())
	require.True(t, ledger.Available("buyer").Equal(d(200)))

	// 10% platform fee, half burned: seller nets 270
	require.True(t, ledger.Available("seller").Equal(d(270)),
		"seller got %s", ledger.Available("seller"))
}

// Test Settle without a matching hold debits available balance
func TestMemoryLedger_SettleWithoutHold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewMemoryLedger()
	ledger.Deposit("buyer", d(100))

	_, err := ledger.Settle(ctx, "buyer", "seller", d(80))
	require.NoError(t, err)
	require.True(t, ledger.Available("buyer").Equal(d(20)))

	_, err = ledger.Settle(ctx, "buyer", "seller", d(80))
	require.ErrorIs(t, err, auctionerrors.ErrInsufficientFunds)
}

// Test cancelled contexts surface as ledger timeouts
func TestMemoryLedger_ContextExpired(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ledger := NewMemoryLedger()
	ledger.Deposit("user1", d(100))

	_, err := ledger.Lock(ctx, "user1", d(10))
	require.ErrorIs(t, err, auctionerrors.ErrLedgerTimeout)

	err = ledger.Unlock(ctx, "lock1")
	require.ErrorIs(t, err, auctionerrors.ErrLedgerTimeout)

	_, err = ledger.Settle(ctx, "user1", "seller", d(10))
	require.ErrorIs(t, err, auctionerrors.ErrLedgerTimeout)
}
