package engine

import (
	"context"
	"math/big"

	"github.com/ubiq/go-ubiq/v3/common"

	"github.com/octanolabs/go-stakegate/models"
	"github.com/octanolabs/go-stakegate/threshold"
	"github.com/octanolabs/go-stakegate/util"
)

// IsActive is the hot access check. Any pricing problem, staleness included,
// reads as inactive.
func (e *Engine) IsActive(ctx context.Context, account common.Address) bool {
	balance := e.ledger.BalanceOf(account)
	if balance.Sign() == 0 {
		return false
	}

	p := e.price(ctx)
	if p.err != nil {
		e.logger.Debug("treating account as inactive", "account", account, "err", p.err)
		return false
	}

	return p.active(balance)
}

// MinRequiredDeposit is the escrow needed to become active. In oracle mode a
// stale or bad price is an error.
func (e *Engine) MinRequiredDeposit(ctx context.Context) (*big.Int, error) {
	return e.price(ctx).required()
}

// AccountSnapshot reports balance, requirement and activation from one price
// read. It never mutates state.
func (e *Engine) AccountSnapshot(ctx context.Context, account common.Address) (*models.Snapshot, error) {
	balance := e.ledger.BalanceOf(account)
	p := e.price(ctx)

	required, err := p.required()
	if err != nil {
		return nil, err
	}

	s := &models.Snapshot{
		Account:  account.Hex(),
		Balance:  balance.String(),
		Ether:    util.FromWei(balance),
		Required: required.String(),
		Active:   p.active(balance),
	}

	if p.cfg.Mode == threshold.Oracle {
		fiat := threshold.FiatValue(balance, p.quote.Price)
		s.FiatValue = fiat.String()
		s.Fiat = util.FormatFiat(fiat)
		s.Price = p.quote.Price.String()
		s.PriceUpdatedAt = p.quote.UpdatedAt.Unix()
	}

	return s, nil
}

func (e *Engine) Status(ctx context.Context) (*models.Status, error) {
	state := e.State()

	return &models.Status{
		Mode:        state.Mode,
		Total:       state.Total,
		Accounts:    e.ledger.Active(),
		Minimum:     state.Minimum,
		MaxPriceAge: state.MaxPriceAge,
		PriceSource: state.PriceSource,
		Owner:       state.Owner,
		Paused:      state.Paused,
		SweepMode:   state.SweepMode,
		Pending:     len(e.Pending()),
	}, nil
}
