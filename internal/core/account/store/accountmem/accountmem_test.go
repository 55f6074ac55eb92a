package accountmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/atm/internal/core/account"
	"github.com/rschio/atm/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(logger.NewDiscard(),
		account.Account{CardNumber: "12345678", PIN: "1234", Balance: decimal.NewFromInt(2500)},
		account.Account{CardNumber: "87654321", PIN: "5678", Balance: decimal.NewFromInt(1200)},
	)
	require.NoError(t, err)
	return s
}

func TestNewStoreDuplicatedCard(t *testing.T) {
	_, err := NewStore(nil,
		account.Account{CardNumber: "1"},
		account.Account{CardNumber: "1"},
	)
	assert.ErrorIs(t, err, ErrDuplicatedEntry)
}

func TestQueryByCard(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a, err := s.QueryByCard(ctx, "87654321")
	require.NoError(t, err)
	assert.Equal(t, "5678", a.PIN)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(1200)))

	_, err = s.QueryByCard(ctx, "00000000")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestExecUnderTxRollback(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.ExecUnderTx(ctx, func(tx account.Store) error {
		a, err := tx.QueryByCard(ctx, "12345678")
		require.NoError(t, err)

		a.Balance = decimal.Zero
		require.NoError(t, tx.UpdateAccount(ctx, a))
		require.NoError(t, tx.AddTransaction(ctx, genTransaction("12345678", time.Now())))

		// Writes are visible inside the transaction.
		got, err := tx.QueryByCard(ctx, "12345678")
		require.NoError(t, err)
		assert.True(t, got.Balance.IsZero())

		ts, err := tx.QueryTransactions(ctx, "12345678", 0)
		require.NoError(t, err)
		assert.Len(t, ts, 1)

		return boom
	})
	assert.ErrorIs(t, err, boom)

	a, err := s.QueryByCard(ctx, "12345678")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(2500)), "balance changed after rollback: %s", a.Balance)

	ts, err := s.QueryTransactions(ctx, "12345678", 0)
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestExecUnderTxCommit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.ExecUnderTx(ctx, func(tx account.Store) error {
		a, err := tx.QueryByCard(ctx, "12345678")
		if err != nil {
			return err
		}
		a.Balance = a.Balance.Sub(decimal.NewFromInt(200))
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		return tx.AddTransaction(ctx, genTransaction("12345678", time.Now()))
	})
	require.NoError(t, err)

	a, err := s.QueryByCard(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, "2300.00", a.Balance.StringFixed(2))

	ts, err := s.QueryTransactions(ctx, "12345678", 0)
	require.NoError(t, err)
	assert.Len(t, ts, 1)
}

func TestUpdateUnknownAccount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.UpdateAccount(ctx, account.Account{CardNumber: "nope"})
	assert.ErrorIs(t, err, account.ErrNotFound)

	err = s.AddTransaction(ctx, genTransaction("nope", time.Now()))
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestQueryTransactionsOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 7 {
		tr := genTransaction("12345678", base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, tr.ID)
		require.NoError(t, s.AddTransaction(ctx, tr))
	}
	require.NoError(t, s.AddTransaction(ctx, genTransaction("87654321", base)))

	ts, err := s.QueryTransactions(ctx, "12345678", 5)
	require.NoError(t, err)
	require.Len(t, ts, 5)
	for i, tr := range ts {
		assert.Equal(t, ids[6-i], tr.ID, "position %d", i)
	}

	all, err := s.QueryTransactions(ctx, "12345678", 0)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestQueryTransactionsSameTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	first := genTransaction("12345678", now)
	second := genTransaction("12345678", now)
	require.NoError(t, s.AddTransaction(ctx, first))
	require.NoError(t, s.AddTransaction(ctx, second))

	ts, err := s.QueryTransactions(ctx, "12345678", 5)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, second.ID, ts[0].ID)
	assert.Equal(t, first.ID, ts[1].ID)
}

func TestQueryTransactionsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AddTransaction(ctx, genTransaction("12345678", time.Now())))

	ts, err := s.QueryTransactions(ctx, "12345678", 5)
	require.NoError(t, err)
	ts[0].Amount = decimal.NewFromInt(999999)

	again, err := s.QueryTransactions(ctx, "12345678", 5)
	require.NoError(t, err)
	assert.True(t, again[0].Amount.Equal(decimal.NewFromInt(750)))
}

func genTransaction(card string, date time.Time) account.Transaction {
	return account.Transaction{
		ID:         uuid.New(),
		CardNumber: card,
		Type:       account.TypeWithdraw,
		Amount:     decimal.NewFromInt(750),
		Date:       date,
	}
}
