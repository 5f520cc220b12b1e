package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ubiq/go-ubiq/v3/common"

	"github.com/octanolabs/go-stakegate/events"
)

var ErrTransferPending = errors.New("outbound transfer broadcast, outcome unknown")

// PendingError is returned by a Transferer once a transfer has been broadcast
// but its outcome is not known.
type PendingError struct {
	Hash common.Hash
}

func (p *PendingError) Error() string {
	return fmt.Sprintf("transfer %s pending", p.Hash.Hex())
}

func (p *PendingError) Is(target error) bool {
	return target == ErrTransferPending
}

// ReceiptChecker reports the outcome of a broadcast transfer. found is false
// while the transaction is not mined.
type ReceiptChecker interface {
	TransferStatus(ctx context.Context, hash common.Hash) (found, ok bool, err error)
}

// PendingTransfer is a debit whose transfer was broadcast without a receipt.
// The debit stays in place until the transfer is known to have reverted.
type PendingTransfer struct {
	Hash   common.Hash
	To     common.Address
	Amount *big.Int
	Kind   events.Type
	Since  time.Time

	undo func(ctx context.Context)
}

// track records a pending transfer and returns its hash. It returns false
// when err carries no hash to settle against.
func (e *Engine) track(err error, to common.Address, amount *big.Int, kind events.Type, at time.Time, undo func(ctx context.Context)) (common.Hash, bool) {
	var pe *PendingError
	if !errors.As(err, &pe) {
		e.logger.Error("transfer pending without a hash, debit kept", "to", to, "amount", amount, "kind", kind, "err", err)
		return common.Hash{}, false
	}

	e.mu.Lock()
	e.pending[pe.Hash] = &PendingTransfer{
		Hash:   pe.Hash,
		To:     to,
		Amount: new(big.Int).Set(amount),
		Kind:   kind,
		Since:  at,
		undo:   undo,
	}
	e.mu.Unlock()

	e.logger.Warn("transfer pending", "tx", pe.Hash, "to", to, "amount", amount, "kind", kind)
	return pe.Hash, true
}

// Pending lists unsettled transfers, oldest first.
func (e *Engine) Pending() []PendingTransfer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]PendingTransfer, 0, len(e.pending))
	for _, p := range e.pending {
		c := *p
		c.Amount = new(big.Int).Set(p.Amount)
		c.undo = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })

	return out
}

// SettlePending asks checker about every pending transfer. Mined transfers
// are dropped; reverted ones have their debit put back.
func (e *Engine) SettlePending(ctx context.Context, checker ReceiptChecker) error {
	for _, p := range e.Pending() {
		found, ok, err := checker.TransferStatus(ctx, p.Hash)
		if err != nil {
			return fmt.Errorf("transfer %s: %w", p.Hash.Hex(), err)
		}
		if !found {
			continue
		}

		hash := p.Hash
		err = e.guard.Run(ctx, func(ctx context.Context) error {
			return e.settle(ctx, hash, ok)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) settle(ctx context.Context, hash common.Hash, mined bool) error {
	e.mu.Lock()
	p, exists := e.pending[hash]
	delete(e.pending, hash)
	e.mu.Unlock()

	if !exists {
		return nil
	}

	if mined {
		e.logger.Info("pending transfer mined", "tx", hash, "to", p.To, "amount", p.Amount)
		return nil
	}

	e.logger.Warn("pending transfer reverted, restoring debit", "tx", hash, "to", p.To, "amount", p.Amount, "kind", p.Kind)
	p.undo(ctx)

	var b events.Batch
	b.Add(events.New(events.TransferReverted, p.To, p.Amount, e.now()).
		With("tx", hash.Hex()).
		With("kind", string(p.Kind)))
	e.publish(ctx, &b)

	return nil
}
