package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ubiq/go-ubiq/v3/log"
)

// Decimals is the canonical number of fractional digits every quote is
// normalized to.
const Decimals = 8

var (
	ErrBadPrice   = errors.New("price source reported a non-positive answer")
	ErrStalePrice = errors.New("price is older than the maximum age")
)

// PriceScale is 10^Decimals.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// PriceSource is an external feed reporting fiat per whole native unit.
type PriceSource interface {
	LatestAnswer(ctx context.Context) (answer *big.Int, updatedAt time.Time, err error)
	Decimals(ctx context.Context) (uint8, error)
}

// Quote is a normalized price read at a single instant. Quotes are never
// cached between operations.
type Quote struct {
	Price     *big.Int
	UpdatedAt time.Time
}

func (q Quote) Valid() bool {
	return q.Price != nil && q.Price.Sign() > 0
}

// Age is how old the quote is at now. Quotes stamped in the future are zero aged.
func (q Quote) Age(now time.Time) time.Duration {
	if age := now.Sub(q.UpdatedAt); age > 0 {
		return age
	}
	return 0
}

type Adapter struct {
	source PriceSource
	logger log.Logger
}

func NewAdapter(source PriceSource, logger log.Logger) *Adapter {
	return &Adapter{source: source, logger: logger}
}

// Fetch queries the source once and normalizes the answer.
func (a *Adapter) Fetch(ctx context.Context) (Quote, error) {
	answer, updatedAt, err := a.source.LatestAnswer(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("latest answer: %w", err)
	}

	if answer == nil || answer.Sign() <= 0 {
		a.logger.Warn("price source reported bad answer", "answer", answer, "updated", updatedAt)
		return Quote{}, ErrBadPrice
	}

	decimals, err := a.source.Decimals(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("decimals: %w", err)
	}

	q := Quote{Price: Normalize(answer, decimals), UpdatedAt: updatedAt}

	// scaling a tiny answer down can truncate it to nothing
	if !q.Valid() {
		return Quote{}, ErrBadPrice
	}

	a.logger.Trace("fetched price", "price", q.Price, "decimals", decimals, "updated", updatedAt)

	return q, nil
}

// Normalize rescales answer from the given number of fractional digits to
// Decimals. Scaling down truncates.
func Normalize(answer *big.Int, decimals uint8) *big.Int {
	d := int64(decimals)

	switch {
	case d == Decimals:
		return new(big.Int).Set(answer)
	case d < Decimals:
		f := new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals-d), nil)
		return new(big.Int).Mul(answer, f)
	default:
		f := new(big.Int).Exp(big.NewInt(10), big.NewInt(d-Decimals), nil)
		return new(big.Int).Quo(answer, f)
	}
}

// AssertFresh fails with ErrStalePrice when the quote is older than maxAge.
func AssertFresh(q Quote, now time.Time, maxAge time.Duration) error {
	if q.Age(now) > maxAge {
		return ErrStalePrice
	}
	return nil
}
