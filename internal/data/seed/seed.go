// Package seed contains the accounts the ATM starts with.
package seed

import (
	"bytes"
	_ "embed" // Used to embed the default seed.
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rschio/atm/internal/core/account"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed accounts.yaml
	defaultSeed []byte
)

// ErrInvalidSeed is returned for seed data that cannot build a ledger.
var ErrInvalidSeed = errors.New("invalid seed")

type file struct {
	Accounts []entry `yaml:"accounts"`
}

type entry struct {
	CardNumber string `yaml:"card_number"`
	PIN        string `yaml:"pin"`
	Balance    string `yaml:"balance"`
}

// Default returns the embedded accounts.
func Default() ([]account.Account, error) {
	return Parse(bytes.NewReader(defaultSeed))
}

// Load reads accounts from the YAML file at path. An empty path means the
// embedded default.
func Load(path string) ([]account.Account, error) {
	if path == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes and validates a YAML seed.
func Parse(r io.Reader) ([]account.Account, error) {
	var sf file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no accounts", ErrInvalidSeed)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	if len(sf.Accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts", ErrInvalidSeed)
	}

	seen := make(map[string]bool, len(sf.Accounts))
	accounts := make([]account.Account, 0, len(sf.Accounts))
	for i, e := range sf.Accounts {
		switch {
		case e.CardNumber == "":
			return nil, fmt.Errorf("%w: account %d: empty card number", ErrInvalidSeed, i)
		case e.PIN == "":
			return nil, fmt.Errorf("%w: card %s: empty pin", ErrInvalidSeed, e.CardNumber)
		case seen[e.CardNumber]:
			return nil, fmt.Errorf("%w: card %s: duplicated", ErrInvalidSeed, e.CardNumber)
		}
		seen[e.CardNumber] = true

		balance, err := decimal.NewFromString(e.Balance)
		if err != nil {
			return nil, fmt.Errorf("%w: card %s: balance: %w", ErrInvalidSeed, e.CardNumber, err)
		}
		if balance.IsNegative() {
			return nil, fmt.Errorf("%w: card %s: negative balance", ErrInvalidSeed, e.CardNumber)
		}

		accounts = append(accounts, account.Account{
			CardNumber: e.CardNumber,
			PIN:        e.PIN,
			Balance:    balance,
		})
	}

	return accounts, nil
}
