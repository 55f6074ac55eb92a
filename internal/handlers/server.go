package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rschio/atm/internal/core/account"
	"github.com/shopspring/decimal"
)

var errUsage = errors.New("usage")

type usageError string

func (u usageError) Error() string        { return "Usage: " + string(u) }
func (u usageError) Is(target error) bool { return target == errUsage }

// Server holds the terminal's view of the ATM: the ledger and the session of
// whoever is at the machine.
type Server struct {
	log     *slog.Logger
	account *account.Core
	recent  int

	session account.Session
}

func NewServer(log *slog.Logger, c *account.Core, recent int) *Server {
	return &Server{log: log, account: c, recent: recent}
}

func (s *Server) Login(ctx context.Context, args []string) (Response, error) {
	if len(args) != 2 {
		return Response{}, usageError(commandHelp["login"])
	}
	if !s.session.IsZero() {
		return Response{Message: "Already logged in as card #" + s.session.CardNumber + ". Log out first."}, nil
	}

	sess, err := s.account.Authenticate(ctx, args[0], args[1])
	if err != nil {
		s.log.InfoContext(ctx, "login failed", "card", args[0])
		return Response{}, err
	}
	s.session = sess
	s.log.InfoContext(ctx, "login", "card", sess.CardNumber, "session", sess.ID)

	b, err := s.account.Balance(ctx, sess)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Message: "Welcome, Card #" + sess.CardNumber,
		Balance: "Balance: " + money(b),
	}, nil
}

func (s *Server) Balance(ctx context.Context, args []string) (Response, error) {
	b, err := s.account.Balance(ctx, s.session)
	if err != nil {
		return Response{}, err
	}

	return Response{Balance: "Current Balance: " + money(b)}, nil
}

func (s *Server) Withdraw(ctx context.Context, args []string) (Response, error) {
	a, err := s.account.Withdraw(ctx, s.session, strings.Join(args, " "))
	if err != nil {
		return Response{}, err
	}

	return movement("Withdrawal successful!", a), nil
}

func (s *Server) Deposit(ctx context.Context, args []string) (Response, error) {
	a, err := s.account.Deposit(ctx, s.session, strings.Join(args, " "))
	if err != nil {
		return Response{}, err
	}

	return movement("Deposit successful!", a), nil
}

func (s *Server) FastCash(ctx context.Context, args []string) (Response, error) {
	if len(args) != 1 {
		return Response{}, usageError(commandHelp["fastcash"])
	}

	amount, err := decimal.NewFromString(strings.TrimPrefix(args[0], "$"))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %q", account.ErrInvalidAmount, args[0])
	}

	a, err := s.account.FastCash(ctx, s.session, amount)
	if err != nil {
		return Response{}, err
	}

	return movement("Fast cash withdrawal successful!", a), nil
}

func (s *Server) History(ctx context.Context, args []string) (Response, error) {
	ts, err := s.account.RecentTransactions(ctx, s.session, s.recent)
	if err != nil {
		return Response{}, err
	}

	if len(ts) == 0 {
		return Response{Lines: []string{account.NoTransactions}}, nil
	}

	lines := make([]string, len(ts))
	for i, t := range ts {
		lines[i] = t.Summary(s.account.Location())
	}
	return Response{Lines: lines}, nil
}

func (s *Server) Logout(ctx context.Context, args []string) (Response, error) {
	if err := s.account.Logout(ctx, s.session); err != nil {
		return Response{}, err
	}
	s.log.InfoContext(ctx, "logout", "card", s.session.CardNumber, "session", s.session.ID)
	s.session = account.Session{}

	return Response{Message: "Logged out."}, nil
}

func movement(msg string, a account.Account) Response {
	b := money(a.Balance)
	return Response{
		Message: msg + "\nNew Balance: " + b,
		Balance: "Balance: " + b,
	}
}

func money(d decimal.Decimal) string {
	return account.FormatMoney(d)
}

func presets() string {
	ps := make([]string, len(account.FastCashPresets))
	for i, p := range account.FastCashPresets {
		ps[i] = "$" + p.String()
	}
	return strings.Join(ps, ", ")
}
