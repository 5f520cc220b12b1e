package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/common/hexutil"

	"github.com/octanolabs/go-stakegate/engine"
)

type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    common.Address  `json:"to"`
	Value *hexutil.Big    `json:"value"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

type txReceipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	Status      hexutil.Uint64 `json:"status"`
}

// SendValue moves amount from the custodian account to the recipient with
// eth_sendTransaction. Once the transaction is broadcast the only failure is
// a mined receipt with a failed status; a receipt that does not show up in
// time is reported as an engine.PendingError carrying the hash.
func (r *RPCClient) SendValue(ctx context.Context, to common.Address, amount *big.Int) error {
	if r.custodian == (common.Address{}) {
		return ErrNoCustodian
	}

	args := sendTxArgs{
		From:  r.custodian,
		To:    to,
		Value: (*hexutil.Big)(amount),
	}
	if r.gas > 0 {
		gas := hexutil.Uint64(r.gas)
		args.Gas = &gas
	}

	var hash common.Hash
	if err := r.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return err
	}

	r.logger.Debug("transfer submitted", "to", to, "amount", amount, "tx", hash)

	if r.receiptTimeout <= 0 {
		return nil
	}

	return r.waitReceipt(ctx, hash)
}

func (r *RPCClient) waitReceipt(ctx context.Context, hash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, r.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollPeriod)
	defer ticker.Stop()

	for {
		found, ok, err := r.TransferStatus(ctx, hash)
		if err != nil {
			r.logger.Warn("receipt lookup failed", "tx", hash, "err", err)
			return fmt.Errorf("%w: %w", ErrReceiptTimeout, &engine.PendingError{Hash: hash})
		}

		if found {
			if !ok {
				return fmt.Errorf("%w: %s", ErrTransferReverted, hash.Hex())
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrReceiptTimeout, &engine.PendingError{Hash: hash})
		case <-ticker.C:
		}
	}
}

// TransferStatus looks up the receipt of a broadcast transfer. found is false
// while the transaction is not mined.
func (r *RPCClient) TransferStatus(ctx context.Context, hash common.Hash) (found, ok bool, err error) {
	var receipt *txReceipt
	if err := r.client.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return false, false, err
	}

	if receipt == nil {
		return false, false, nil
	}

	r.logger.Debug("transfer mined", "tx", hash, "block", receipt.BlockNumber, "status", uint64(receipt.Status))
	return true, receipt.Status == 1, nil
}
