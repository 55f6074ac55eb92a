// Package accountmem keeps accounts and their history in process memory.
package accountmem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rschio/atm/internal/core/account"
	"github.com/rschio/atm/internal/logger"
)

// ErrDuplicatedEntry is returned when two seeded accounts share a card.
var ErrDuplicatedEntry = errors.New("duplicated entry")

type record struct {
	seq uint64
	t   account.Transaction
}

type state struct {
	mu       sync.Mutex
	accounts map[string]account.Account
	history  map[string][]record
	seq      uint64
}

// pending holds the writes of an open transaction until commit.
type pending struct {
	accounts map[string]account.Account
	history  []account.Transaction
}

type Store struct {
	log *slog.Logger
	st  *state
	tx  *pending
}

// NewStore creates a store holding accounts, in that order.
func NewStore(log *slog.Logger, accounts ...account.Account) (*Store, error) {
	if log == nil {
		log = logger.NewDiscard()
	}

	st := state{
		accounts: make(map[string]account.Account, len(accounts)),
		history:  make(map[string][]record, len(accounts)),
	}
	for _, a := range accounts {
		if _, ok := st.accounts[a.CardNumber]; ok {
			return nil, fmt.Errorf("card %s: %w", a.CardNumber, ErrDuplicatedEntry)
		}
		st.accounts[a.CardNumber] = a
	}

	return &Store{log: log, st: &st}, nil
}

func (s *Store) ExecUnderTx(ctx context.Context, fn func(txStore account.Store) error) error {
	// Already inside a transaction: join it.
	if s.tx != nil {
		return fn(s)
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	txStore := Store{
		log: s.log,
		st:  s.st,
		tx:  &pending{accounts: make(map[string]account.Account)},
	}
	if err := fn(&txStore); err != nil {
		return err
	}

	s.commit(txStore.tx)
	logger.InfocCtx(ctx, s.log, 3, "commit",
		"accounts", len(txStore.tx.accounts),
		"transactions", len(txStore.tx.history),
	)

	return nil
}

// commit must be called with the state lock held.
func (s *Store) commit(p *pending) {
	for card, a := range p.accounts {
		s.st.accounts[card] = a
	}
	for _, t := range p.history {
		s.append(t)
	}
}

func (s *Store) append(t account.Transaction) {
	s.st.seq++
	s.st.history[t.CardNumber] = append(s.st.history[t.CardNumber], record{seq: s.st.seq, t: t})
}

// lock takes the state lock unless s is a transaction, which already holds
// it. The returned func releases it.
func (s *Store) lock() func() {
	if s.tx != nil {
		return func() {}
	}
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

func (s *Store) QueryByCard(ctx context.Context, cardNumber string) (account.Account, error) {
	defer s.lock()()
	return s.account(cardNumber)
}

func (s *Store) account(cardNumber string) (account.Account, error) {
	if s.tx != nil {
		if a, ok := s.tx.accounts[cardNumber]; ok {
			return a, nil
		}
	}

	a, ok := s.st.accounts[cardNumber]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a account.Account) error {
	defer s.lock()()

	if _, err := s.account(a.CardNumber); err != nil {
		return err
	}

	if s.tx != nil {
		s.tx.accounts[a.CardNumber] = a
		return nil
	}
	s.st.accounts[a.CardNumber] = a
	return nil
}

func (s *Store) AddTransaction(ctx context.Context, t account.Transaction) error {
	defer s.lock()()

	if _, err := s.account(t.CardNumber); err != nil {
		return err
	}

	if s.tx != nil {
		s.tx.history = append(s.tx.history, t)
		return nil
	}
	s.append(t)
	return nil
}

func (s *Store) QueryTransactions(ctx context.Context, cardNumber string, limit int) ([]account.Transaction, error) {
	defer s.lock()()

	if _, err := s.account(cardNumber); err != nil {
		return nil, err
	}

	committed := s.st.history[cardNumber]
	recs := make([]record, len(committed))
	copy(recs, committed)
	if s.tx != nil {
		next := s.st.seq
		for _, t := range s.tx.history {
			if t.CardNumber != cardNumber {
				continue
			}
			next++
			recs = append(recs, record{seq: next, t: t})
		}
	}

	// Newest first; equal timestamps keep the latest insertion on top.
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].t.Date.Equal(recs[j].t.Date) {
			return recs[i].t.Date.After(recs[j].t.Date)
		}
		return recs[i].seq > recs[j].seq
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	ts := make([]account.Transaction, len(recs))
	for i, r := range recs {
		ts[i] = r.t
	}
	return ts, nil
}

var _ account.Store = (*Store)(nil)
