package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rschio/atm/internal/core/account"
	"go.opentelemetry.io/otel/trace"
)

// ErrQuit is returned by the quit command to end the terminal loop.
var ErrQuit = errors.New("quit")

// Response is what the terminal shows after a command.
type Response struct {
	Message string
	Balance string
	Lines   []string
}

// HandlerFunc runs one terminal command.
type HandlerFunc func(ctx context.Context, args []string) (Response, error)

// Mux routes terminal commands to handlers.
type Mux struct {
	log    *slog.Logger
	routes map[string]HandlerFunc
}

// MuxOption configures a Mux.
type MuxOption func(*muxConfig)

type muxConfig struct {
	now func() time.Time
}

// WithClock sets the clock stamped on every command.
func WithClock(now func() time.Time) MuxOption {
	return func(c *muxConfig) {
		c.now = now
	}
}

func CommandMux(s *Server, tracer trace.Tracer, opts ...MuxOption) *Mux {
	cfg := muxConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := Mux{
		log:    s.log,
		routes: make(map[string]HandlerFunc),
	}
	handle := func(name string, h HandlerFunc) {
		m.routes[name] = middlewareOp(tracer, cfg.now, name, h)
	}

	handle("login", s.Login)
	handle("balance", s.Balance)
	handle("withdraw", s.Withdraw)
	handle("deposit", s.Deposit)
	handle("fastcash", s.FastCash)
	handle("history", s.History)
	handle("logout", s.Logout)
	handle("help", m.help)
	handle("quit", quit)

	return &m
}

// Dispatch runs the command written on line. Only ErrQuit is returned as an
// error; every other failure becomes a message for the user.
func (m *Mux) Dispatch(ctx context.Context, line string) (Response, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Response{}, nil
	}

	name := strings.ToLower(fields[0])
	h, ok := m.routes[name]
	if !ok {
		return Response{Message: "Unknown command " + fields[0] + ". Type help for the list of commands."}, nil
	}

	resp, err := h(ctx, fields[1:])
	if err != nil {
		if errors.Is(err, ErrQuit) {
			return resp, err
		}
		return m.respondError(ctx, name, err), nil
	}

	return resp, nil
}

func (m *Mux) respondError(ctx context.Context, cmd string, err error) Response {
	switch {
	case errors.Is(err, account.ErrAuthenticationFailed):
		return Response{Message: "Invalid card number or PIN."}

	case errors.Is(err, account.ErrNoActiveSession):
		return Response{Message: "Please log in first."}

	case errors.Is(err, account.ErrInvalidAmount):
		if cmd == "fastcash" {
			return Response{Message: "Fast cash amounts: " + presets() + "."}
		}
		return Response{Message: "Please enter a valid number."}

	case errors.Is(err, account.ErrLimitExceeded):
		if cmd == "deposit" {
			return Response{Message: "You can only deposit up to $" + account.MaxDeposit.String() + " per transaction."}
		}
		return Response{Message: "You can only withdraw up to $" + account.MaxWithdraw.String() + " per transaction."}

	case errors.Is(err, account.ErrInsufficientFunds):
		return Response{Message: "Insufficient funds."}

	case errors.Is(err, account.ErrDailyLimitReached):
		return Response{Message: "Daily transaction limit reached."}

	case errors.Is(err, errUsage):
		return Response{Message: err.Error()}
	}

	m.log.ErrorContext(ctx, "command", "cmd", cmd, "ERROR", err)
	return Response{Message: "Something went wrong. Please try again."}
}

var commandHelp = map[string]string{
	"login":    "login <card> <pin>",
	"balance":  "balance",
	"withdraw": "withdraw <amount>",
	"deposit":  "deposit <amount>",
	"fastcash": "fastcash <100|500|1000|2000>",
	"history":  "history",
	"logout":   "logout",
	"help":     "help",
	"quit":     "quit",
}

func (m *Mux) help(ctx context.Context, args []string) (Response, error) {
	lines := make([]string, 0, len(m.routes))
	for name := range m.routes {
		lines = append(lines, commandHelp[name])
	}
	sort.Strings(lines)

	return Response{Message: "Commands:", Lines: lines}, nil
}

func quit(ctx context.Context, args []string) (Response, error) {
	return Response{Message: "Goodbye."}, ErrQuit
}
