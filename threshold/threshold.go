package threshold

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/octanolabs/go-stakegate/oracle"
)

var ErrNoQuote = errors.New("oracle threshold needs a price quote")

// UnitScale is the number of smallest value units in one whole native unit (1e18).
var UnitScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type Mode int

const (
	// Fixed compares the escrowed value units against the minimum directly.
	Fixed Mode = iota
	// Oracle converts the escrow to fiat (oracle.Decimals fixed point) first.
	Oracle
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "fixed", "wei":
		return Fixed, nil
	case "oracle", "usd", "fiat":
		return Oracle, nil
	default:
		return Fixed, fmt.Errorf("unknown threshold mode %q", s)
	}
}

func (m Mode) String() string {
	if m == Oracle {
		return "oracle"
	}
	return "fixed"
}

// Config is the activation threshold. Minimum is in value units for Fixed
// and in fiat scaled by oracle.PriceScale for Oracle.
type Config struct {
	Mode        Mode
	Minimum     *big.Int
	MaxPriceAge time.Duration
}

// FiatValue converts escrowed value units to fiat at the quoted price,
// rounding down.
func FiatValue(escrowed, price *big.Int) *big.Int {
	v := new(big.Int).Mul(escrowed, price)
	return v.Quo(v, UnitScale)
}

// IsActive reports whether escrowed meets the threshold. A missing, invalid
// or stale quote makes the account inactive instead of failing. An empty
// balance is never active.
func IsActive(escrowed *big.Int, cfg Config, quote *oracle.Quote, now time.Time) bool {
	if escrowed == nil || escrowed.Sign() <= 0 {
		return false
	}

	if cfg.Mode == Fixed {
		return escrowed.Cmp(cfg.Minimum) >= 0
	}

	if quote == nil || !quote.Valid() {
		return false
	}

	if err := oracle.AssertFresh(*quote, now, cfg.MaxPriceAge); err != nil {
		return false
	}

	return FiatValue(escrowed, quote.Price).Cmp(cfg.Minimum) >= 0
}

// RequiredBalance is the escrow needed to be active, rounded up so an
// account funded with exactly this amount is never under the threshold.
// Unlike IsActive it fails on a stale quote.
func RequiredBalance(cfg Config, quote *oracle.Quote, now time.Time) (*big.Int, error) {
	if cfg.Mode == Fixed {
		return new(big.Int).Set(cfg.Minimum), nil
	}

	if quote == nil {
		return nil, ErrNoQuote
	}

	if !quote.Valid() {
		return nil, oracle.ErrBadPrice
	}

	if err := oracle.AssertFresh(*quote, now, cfg.MaxPriceAge); err != nil {
		return nil, err
	}

	return ceilDiv(new(big.Int).Mul(cfg.Minimum, UnitScale), quote.Price), nil
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
