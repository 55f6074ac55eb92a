package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType names the kind of a ledger movement.
type TransactionType string

// Set of transaction types recorded by the ledger.
const (
	TypeWithdraw TransactionType = "Withdraw"
	TypeDeposit  TransactionType = "Deposit"
	TypeFastCash TransactionType = "Fast Cash Withdraw"
)

// Account is a card holder's account. DailyTransactions counts the
// movements made on the calendar day of CountedOn.
type Account struct {
	CardNumber        string
	PIN               string
	Balance           decimal.Decimal
	DailyTransactions int
	CountedOn         time.Time
}

// DailyCount returns how many transactions count against the daily limit at
// now. The counter rolls over at midnight in loc.
func (a Account) DailyCount(now time.Time, loc *time.Location) int {
	if !sameDay(a.CountedOn, now, loc) {
		return 0
	}
	return a.DailyTransactions
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	if loc == nil {
		loc = time.Local
	}

	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Transaction is an immutable record of one balance movement.
type Transaction struct {
	ID         uuid.UUID
	CardNumber string
	Type       TransactionType
	Amount     decimal.Decimal
	Date       time.Time
}

// SummaryLayout is the timestamp layout used in transaction summaries.
const SummaryLayout = "1/2/2006 3:04 PM"

// NoTransactions is shown in place of an empty history.
const NoTransactions = "No transactions yet."

// Summary renders the transaction as a single history line.
func (t Transaction) Summary(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("%s - %s: %s", t.Date.In(loc).Format(SummaryLayout), t.Type, FormatMoney(t.Amount))
}

// Session binds the current user to one authenticated account.
type Session struct {
	ID         uuid.UUID
	CardNumber string
	Started    time.Time
}

// IsZero reports whether s is the empty session.
func (s Session) IsZero() bool {
	return s.ID == uuid.Nil
}

// FormatMoney renders d as a dollar amount with cents.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
