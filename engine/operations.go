package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ubiq/go-ubiq/v3/common"

	"github.com/octanolabs/go-stakegate/events"
	"github.com/octanolabs/go-stakegate/ledger"
	"github.com/octanolabs/go-stakegate/oracle"
	"github.com/octanolabs/go-stakegate/threshold"
)

// pricing is the threshold and, in oracle mode, the single quote one
// operation evaluates against.
type pricing struct {
	cfg   threshold.Config
	quote *oracle.Quote
	err   error
	now   time.Time
}

func (p pricing) active(balance *big.Int) bool {
	return threshold.IsActive(balance, p.cfg, p.quote, p.now)
}

func (p pricing) required() (*big.Int, error) {
	if p.err != nil {
		return nil, p.err
	}
	return threshold.RequiredBalance(p.cfg, p.quote, p.now)
}

func (e *Engine) price(ctx context.Context) pricing {
	e.mu.RLock()
	p := pricing{cfg: e.threshold, now: e.clock()}
	feed := e.feed
	e.mu.RUnlock()

	if p.cfg.Mode == threshold.Fixed {
		return p
	}

	if feed == nil {
		p.err = ErrNoPriceSource
		return p
	}

	q, err := feed.Fetch(ctx)
	if err != nil {
		p.err = err
		return p
	}
	p.quote = &q

	return p
}

func (e *Engine) saveAccount(ctx context.Context, account common.Address) error {
	if e.store == nil {
		return nil
	}
	return e.store.SaveAccount(ctx, account, e.ledger.BalanceOf(account), e.ledger.Total())
}

// send hands amount to the recipient with the guard locked. A transfer that
// was broadcast without a known outcome comes back as ErrTransferPending and
// is not a failure.
func (e *Engine) send(ctx context.Context, to common.Address, amount *big.Int) error {
	err := e.guard.Hold(ctx, func(ctx context.Context) error {
		return e.transfer.SendValue(ctx, to, amount)
	})
	if err == nil || errors.Is(err, ErrTransferPending) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSendFailed, err)
}

func (e *Engine) undoCredit(account common.Address, amount *big.Int) {
	if err := e.ledger.Debit(account, amount); err != nil {
		e.logger.Error("failed to roll back credit", "account", account, "amount", amount, "err", err)
	}
}

func (e *Engine) undoDebit(account common.Address, amount *big.Int) bool {
	if err := e.ledger.Credit(account, amount); err != nil {
		e.logger.Error("failed to roll back debit", "account", account, "amount", amount, "err", err)
		return false
	}
	return true
}

// refund puts a debited amount back after a failed transfer.
func (e *Engine) refund(ctx context.Context, account common.Address, amount *big.Int) {
	if !e.undoDebit(account, amount) {
		return
	}
	if err := e.saveAccount(ctx, account); err != nil {
		e.logger.Error("failed to persist rollback", "account", account, "amount", amount, "err", err)
	}
}

// Deposit escrows amount for account.
func (e *Engine) Deposit(ctx context.Context, account common.Address, amount *big.Int) error {
	return e.guard.Run(ctx, func(ctx context.Context) error {
		if amount == nil || amount.Sign() <= 0 {
			return ledger.ErrZeroAmount
		}

		if e.Paused() {
			return ErrPaused
		}

		p := e.price(ctx)
		if p.err != nil {
			return p.err
		}

		wasActive := p.active(e.ledger.BalanceOf(account))

		if err := e.ledger.Credit(account, amount); err != nil {
			return err
		}

		if err := e.saveAccount(ctx, account); err != nil {
			e.undoCredit(account, amount)
			return fmt.Errorf("persist deposit: %w", err)
		}

		balance := e.ledger.BalanceOf(account)
		nowActive := p.active(balance)

		var b events.Batch
		b.Add(events.New(events.Deposited, account, amount, p.now))
		if nowActive && !wasActive {
			b.Add(events.New(events.Activated, account, balance, p.now))
		}

		e.logger.Info("deposit", "account", account, "amount", amount, "balance", balance, "active", nowActive)
		e.publish(ctx, &b)

		return nil
	})
}

// Withdraw returns amount of escrow to account.
func (e *Engine) Withdraw(ctx context.Context, account common.Address, amount *big.Int) error {
	return e.guard.Run(ctx, func(ctx context.Context) error {
		return e.withdraw(ctx, account, amount)
	})
}

// Exit withdraws the account's full balance.
func (e *Engine) Exit(ctx context.Context, account common.Address) error {
	return e.guard.Run(ctx, func(ctx context.Context) error {
		return e.withdraw(ctx, account, e.ledger.BalanceOf(account))
	})
}

// WithdrawAll is an alias of Exit.
func (e *Engine) WithdrawAll(ctx context.Context, account common.Address) error {
	return e.Exit(ctx, account)
}

func (e *Engine) withdraw(ctx context.Context, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ledger.ErrZeroAmount
	}

	if e.Paused() {
		return ErrPaused
	}

	balance := e.ledger.BalanceOf(account)
	if amount.Cmp(balance) > 0 {
		e.logger.Debug("withdraw rejected", "account", account, "amount", amount, "balance", balance)
		return ledger.ErrInsufficientEscrow
	}

	p := e.price(ctx)
	if p.err != nil {
		return p.err
	}

	wasActive := p.active(balance)

	if err := e.ledger.Debit(account, amount); err != nil {
		return err
	}

	if err := e.saveAccount(ctx, account); err != nil {
		e.undoDebit(account, amount)
		return fmt.Errorf("persist withdrawal: %w", err)
	}

	sendErr := e.send(ctx, account, amount)
	if sendErr != nil && !errors.Is(sendErr, ErrTransferPending) {
		e.logger.Warn("withdraw transfer failed", "account", account, "amount", amount, "err", sendErr)
		e.refund(ctx, account, amount)
		return sendErr
	}

	balance = e.ledger.BalanceOf(account)
	nowActive := p.active(balance)

	withdrawn := events.New(events.Withdrawn, account, amount, p.now)
	if sendErr != nil {
		if hash, ok := e.track(sendErr, account, amount, events.Withdrawn, p.now, func(ctx context.Context) {
			e.refund(ctx, account, amount)
		}); ok {
			withdrawn = withdrawn.With("pending", hash.Hex())
		}
	}

	var b events.Batch
	b.Add(withdrawn)
	if wasActive && !nowActive {
		b.Add(events.New(events.Deactivated, account, balance, p.now))
	}

	e.logger.Info("withdraw", "account", account, "amount", amount, "balance", balance, "active", nowActive)
	e.publish(ctx, &b)

	return sendErr
}

// EmergencyWithdraw returns the account's whole balance. It ignores the pause
// flag, and a broken price feed only costs the Deactivated signal.
func (e *Engine) EmergencyWithdraw(ctx context.Context, account common.Address) error {
	return e.guard.Run(ctx, func(ctx context.Context) error {
		p := e.price(ctx)
		if p.err != nil {
			e.logger.Warn("emergency withdraw without price", "account", account, "err", p.err)
		}

		wasActive := p.active(e.ledger.BalanceOf(account))

		amount, err := e.ledger.Drain(account)
		if err != nil {
			return err
		}

		if err := e.saveAccount(ctx, account); err != nil {
			e.undoDebit(account, amount)
			return fmt.Errorf("persist emergency withdrawal: %w", err)
		}

		sendErr := e.send(ctx, account, amount)
		if sendErr != nil && !errors.Is(sendErr, ErrTransferPending) {
			e.logger.Warn("emergency transfer failed", "account", account, "amount", amount, "err", sendErr)
			e.refund(ctx, account, amount)
			return sendErr
		}

		withdrawn := events.New(events.EmergencyWithdrawn, account, amount, p.now)
		if sendErr != nil {
			if hash, ok := e.track(sendErr, account, amount, events.EmergencyWithdrawn, p.now, func(ctx context.Context) {
				e.refund(ctx, account, amount)
			}); ok {
				withdrawn = withdrawn.With("pending", hash.Hex())
			}
		}

		var b events.Batch
		b.Add(withdrawn)
		if wasActive {
			b.Add(events.New(events.Deactivated, account, new(big.Int), p.now))
		}

		e.logger.Info("emergency withdraw", "account", account, "amount", amount)
		e.publish(ctx, &b)

		return sendErr
	})
}

// Sweep moves the whole pooled total to `to`. What happens to individual
// balances depends on the sweep mode.
func (e *Engine) Sweep(ctx context.Context, admin AdminContext, to common.Address) error {
	if err := e.requireOwner(admin); err != nil {
		return err
	}

	if to == (common.Address{}) {
		return fmt.Errorf("%w: sweep to zero address", ErrInvalidConfig)
	}

	return e.guard.Run(ctx, func(ctx context.Context) error {
		e.mu.RLock()
		mode := e.sweepMode
		e.mu.RUnlock()

		total := e.ledger.Total()
		if total.Sign() == 0 {
			return ledger.ErrZeroAmount
		}

		p := e.price(ctx)
		balances := e.ledger.Balances()

		switch mode {
		case SweepAggregate:
			e.ledger.ResetTotal()
		default:
			e.ledger.Clear()
		}

		restore := func(ctx context.Context) {
			if err := e.ledger.Restore(balances, total, mode == SweepReconcile); err != nil {
				e.logger.Error("failed to restore ledger after sweep", "err", err)
				return
			}
			if err := e.saveSweep(ctx, mode, balances); err != nil {
				e.logger.Error("failed to persist sweep rollback", "err", err)
			}
		}

		if err := e.saveSweep(ctx, mode, balances); err != nil {
			if rerr := e.ledger.Restore(balances, total, mode == SweepReconcile); rerr != nil {
				e.logger.Error("failed to restore ledger after sweep", "err", rerr)
			}
			return fmt.Errorf("persist sweep: %w", err)
		}

		sendErr := e.send(ctx, to, total)
		if sendErr != nil && !errors.Is(sendErr, ErrTransferPending) {
			e.logger.Warn("sweep transfer failed", "to", to, "amount", total, "err", sendErr)
			restore(ctx)
			return sendErr
		}

		swept := events.New(events.Swept, to, total, p.now).With("mode", mode.String())
		if sendErr != nil {
			if hash, ok := e.track(sendErr, to, total, events.Swept, p.now, func(ctx context.Context) {
				e.unsweep(ctx, mode, balances, total)
			}); ok {
				swept = swept.With("pending", hash.Hex())
			}
		}

		var b events.Batch
		b.Add(swept)
		if mode == SweepReconcile {
			for account, balance := range balances {
				if p.active(balance) {
					b.Add(events.New(events.Deactivated, account, new(big.Int), p.now))
				}
			}
		}

		e.logger.Warn("swept pooled escrow", "to", to, "amount", total, "mode", mode)
		e.publish(ctx, &b)

		return sendErr
	})
}

// unsweep puts a reverted sweep back on top of whatever happened since.
func (e *Engine) unsweep(ctx context.Context, mode SweepMode, balances map[common.Address]*big.Int, total *big.Int) {
	if mode == SweepAggregate {
		restored := new(big.Int).Add(e.ledger.Total(), total)
		if err := e.ledger.Restore(e.ledger.Balances(), restored, false); err != nil {
			e.logger.Error("failed to restore total after reverted sweep", "err", err)
			return
		}
	} else {
		for account, balance := range balances {
			if balance.Sign() > 0 {
				e.undoDebit(account, balance)
			}
		}
	}

	if err := e.saveSweep(ctx, mode, balances); err != nil {
		e.logger.Error("failed to persist reverted sweep", "err", err)
	}
}

// saveSweep persists the current balance of every account in swept.
func (e *Engine) saveSweep(ctx context.Context, mode SweepMode, swept map[common.Address]*big.Int) error {
	if e.store == nil {
		return nil
	}
	if mode == SweepReconcile {
		current := make(map[common.Address]*big.Int, len(swept))
		for account := range swept {
			current[account] = e.ledger.BalanceOf(account)
		}
		if err := e.store.SaveAccounts(ctx, current, e.ledger.Total()); err != nil {
			return err
		}
	}
	return e.store.SaveState(ctx, e.State())
}
