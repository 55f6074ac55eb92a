// Package account is the ATM ledger: it authenticates card holders and
// enforces the rules for every balance movement.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/atm/internal/opctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Set of errors for account API.
var (
	ErrNotFound             = errors.New("account not found")
	ErrAuthenticationFailed = errors.New("invalid card number or pin")
	ErrNoActiveSession      = errors.New("no active session")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrLimitExceeded        = errors.New("amount limit exceeded")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDailyLimitReached    = errors.New("daily transaction limit reached")
)

// Business limits.
var (
	MaxWithdraw = decimal.NewFromInt(1000)
	MaxDeposit  = decimal.NewFromInt(10000)

	// FastCashPresets are the only amounts accepted by FastCash. They are
	// not subject to MaxWithdraw.
	FastCashPresets = []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(500),
		decimal.NewFromInt(1000),
		decimal.NewFromInt(2000),
	}
)

const (
	// MaxDailyTransactions is how many movements an account can make per day.
	MaxDailyTransactions = 10

	// DefaultRecent is the history size used when none is requested.
	DefaultRecent = 5
)

// Store is used to keep accounts and their transactions.
type Store interface {
	// ExecUnderTx executes the fn function under a transaction. If fn returns
	// an error the transaction is rolled back and the error is returned.
	ExecUnderTx(ctx context.Context, fn func(tx Store) error) error

	QueryByCard(ctx context.Context, cardNumber string) (Account, error)
	UpdateAccount(ctx context.Context, a Account) error
	AddTransaction(ctx context.Context, t Transaction) error

	// QueryTransactions returns up to limit transactions of the account,
	// newest first. A limit <= 0 returns the whole history.
	QueryTransactions(ctx context.Context, cardNumber string, limit int) ([]Transaction, error)
}

// Core deals with the ledger's business logic. It tracks at most one active
// session and is meant to be driven by one caller at a time.
type Core struct {
	store  Store
	loc    *time.Location
	active Session
}

// Option configures a Core.
type Option func(*Core)

// WithLocation sets the location whose midnight resets the daily counter.
func WithLocation(loc *time.Location) Option {
	return func(c *Core) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func NewCore(store Store, opts ...Option) *Core {
	c := Core{
		store: store,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Location returns the location used for daily counters and summaries.
func (c *Core) Location() *time.Location {
	return c.loc
}

// Authenticate opens a session for the account matching both cardNumber and
// pin. A successful call replaces any previous session.
func (c *Core) Authenticate(ctx context.Context, cardNumber, pin string) (Session, error) {
	ctx, span := opctx.AddSpan(ctx, "account.authenticate", attribute.String("card", cardNumber))
	defer span.End()

	a, err := c.store.QueryByCard(ctx, cardNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrAuthenticationFailed
		}
		return Session{}, fmt.Errorf("query account: %w", err)
	}
	if a.PIN != pin {
		return Session{}, ErrAuthenticationFailed
	}

	c.active = Session{
		ID:         uuid.New(),
		CardNumber: a.CardNumber,
		Started:    opctx.GetTime(ctx),
	}
	return c.active, nil
}

// Logout closes sess. Nothing else changes.
func (c *Core) Logout(ctx context.Context, sess Session) error {
	if err := c.checkSession(sess); err != nil {
		return err
	}
	c.active = Session{}
	return nil
}

// Balance returns the current balance of the session's account.
func (c *Core) Balance(ctx context.Context, sess Session) (decimal.Decimal, error) {
	if err := c.checkSession(sess); err != nil {
		return decimal.Decimal{}, err
	}

	a, err := c.store.QueryByCard(ctx, sess.CardNumber)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("query account: %w", err)
	}
	return a.Balance, nil
}

// Withdraw takes the amount typed by the user out of the account. The checks
// run in order: the input is a number, it is within (0, MaxWithdraw], it is
// covered by the balance, and the daily limit is not reached.
func (c *Core) Withdraw(ctx context.Context, sess Session, input string) (Account, error) {
	if err := c.checkSession(sess); err != nil {
		return Account{}, err
	}

	amount, err := ParseAmount(input)
	if err != nil {
		return Account{}, err
	}
	if !amount.IsPositive() || amount.GreaterThan(MaxWithdraw) {
		return Account{}, fmt.Errorf("%w: withdraw up to %s", ErrLimitExceeded, FormatMoney(MaxWithdraw))
	}

	return c.post(ctx, sess, TypeWithdraw, amount)
}

// FastCash withdraws one of the FastCashPresets. Only the balance and daily
// limit checks apply, so presets above MaxWithdraw go through.
func (c *Core) FastCash(ctx context.Context, sess Session, amount decimal.Decimal) (Account, error) {
	if err := c.checkSession(sess); err != nil {
		return Account{}, err
	}
	if !IsFastCashPreset(amount) {
		return Account{}, fmt.Errorf("%w: %s is not a fast cash preset", ErrInvalidAmount, FormatMoney(amount))
	}

	return c.post(ctx, sess, TypeFastCash, amount)
}

// Deposit adds the amount typed by the user to the account. The checks run
// in order: the input is a number, it is within (0, MaxDeposit], and the
// daily limit is not reached.
func (c *Core) Deposit(ctx context.Context, sess Session, input string) (Account, error) {
	if err := c.checkSession(sess); err != nil {
		return Account{}, err
	}

	amount, err := ParseAmount(input)
	if err != nil {
		return Account{}, err
	}
	if !amount.IsPositive() || amount.GreaterThan(MaxDeposit) {
		return Account{}, fmt.Errorf("%w: deposit up to %s", ErrLimitExceeded, FormatMoney(MaxDeposit))
	}

	return c.post(ctx, sess, TypeDeposit, amount)
}

// RecentTransactions returns the n newest transactions of the account, newest
// first. A n <= 0 means DefaultRecent.
func (c *Core) RecentTransactions(ctx context.Context, sess Session, n int) ([]Transaction, error) {
	if err := c.checkSession(sess); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultRecent
	}

	ts, err := c.store.QueryTransactions(ctx, sess.CardNumber, n)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return ts, nil
}

// post applies one movement. The balance change, the transaction record and
// the daily counter are committed together or not at all.
func (c *Core) post(ctx context.Context, sess Session, typ TransactionType, amount decimal.Decimal) (Account, error) {
	ctx, span := opctx.AddSpan(ctx, "account.post",
		attribute.String("card", sess.CardNumber),
		attribute.String("type", string(typ)),
		attribute.String("amount", amount.String()),
	)
	defer span.End()

	now := opctx.GetTime(ctx)

	var updated Account
	fn := func(tx Store) error {
		a, err := tx.QueryByCard(ctx, sess.CardNumber)
		if err != nil {
			return fmt.Errorf("query account: %w", err)
		}

		if typ != TypeDeposit && amount.GreaterThan(a.Balance) {
			return ErrInsufficientFunds
		}

		count := a.DailyCount(now, c.loc)
		if count >= MaxDailyTransactions {
			return ErrDailyLimitReached
		}

		if typ == TypeDeposit {
			a.Balance = a.Balance.Add(amount)
		} else {
			a.Balance = a.Balance.Sub(amount)
		}
		a.DailyTransactions = count + 1
		a.CountedOn = now

		if err := tx.UpdateAccount(ctx, a); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}

		t := Transaction{
			ID:         uuid.New(),
			CardNumber: a.CardNumber,
			Type:       typ,
			Amount:     amount,
			Date:       now,
		}
		if err := tx.AddTransaction(ctx, t); err != nil {
			return fmt.Errorf("failed to add transaction: %w", err)
		}

		updated = a
		return nil
	}

	if err := c.store.ExecUnderTx(ctx, fn); err != nil {
		return Account{}, err
	}
	return updated, nil
}

func (c *Core) checkSession(sess Session) error {
	if c.active.IsZero() || sess.ID != c.active.ID {
		return ErrNoActiveSession
	}
	return nil
}

// ParseAmount reads a user typed amount. Anything that is not a plain
// decimal number is ErrInvalidAmount; the sign is checked by the caller.
func ParseAmount(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	return d, nil
}

// IsFastCashPreset reports whether amount is one of FastCashPresets.
func IsFastCashPreset(amount decimal.Decimal) bool {
	for _, p := range FastCashPresets {
		if amount.Equal(p) {
			return true
		}
	}
	return false
}
