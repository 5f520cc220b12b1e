package crawler

import (
	"context"
	"fmt"

	"github.com/octanolabs/go-stakegate/models"
)

// handleBlock credits every value transfer to the custodian in block. A
// transaction is recorded before it is credited, so a replayed block never
// credits twice; a failed credit is unrecorded and the block retried.
func (c *Crawler) handleBlock(ctx context.Context, block *models.Block) (int, error) {
	credited := 0

	for _, tx := range block.Transactions {
		if tx.To != c.custodian || tx.Value == nil || tx.Value.Sign() <= 0 {
			continue
		}

		d := &models.Deposit{
			Hash:      tx.Hash.Hex(),
			Account:   tx.From.Hex(),
			Amount:    tx.Value.String(),
			Block:     block.Number,
			Timestamp: int64(block.Timestamp),
		}

		fresh, err := c.backend.MarkDeposit(ctx, d)
		if err != nil {
			return credited, fmt.Errorf("record deposit %s: %w", d.Hash, err)
		}
		if !fresh {
			c.logger.Debug("deposit already credited", "tx", d.Hash)
			continue
		}

		if err := c.depositor.Deposit(ctx, tx.From, tx.Value); err != nil {
			if uerr := c.backend.UnmarkDeposit(ctx, d.Hash); uerr != nil {
				c.logger.Error("failed to unrecord deposit", "tx", d.Hash, "err", uerr)
			}
			return credited, fmt.Errorf("credit deposit %s: %w", d.Hash, err)
		}

		c.logger.Debug("credited deposit", "tx", d.Hash, "account", tx.From, "amount", tx.Value, "block", block.Number)
		credited++
	}

	return credited, nil
}
