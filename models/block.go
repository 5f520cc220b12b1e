package models

import (
	"math/big"

	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/common/hexutil"
)

type RawBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Hash         common.Hash      `json:"hash"`
	ParentHash   common.Hash      `json:"parentHash"`
	Timestamp    hexutil.Uint64   `json:"timestamp"`
	Transactions []RawTransaction `json:"transactions"`
}

type RawTransaction struct {
	Hash  common.Hash     `json:"hash"`
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

type Block struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Timestamp    uint64
	Transactions []Transaction
}

type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    common.Address
	Value *big.Int
}

func (b *RawBlock) Convert() *Block {
	block := &Block{
		Number:       uint64(b.Number),
		Hash:         b.Hash,
		ParentHash:   b.ParentHash,
		Timestamp:    uint64(b.Timestamp),
		Transactions: make([]Transaction, 0, len(b.Transactions)),
	}

	for _, tx := range b.Transactions {
		t := Transaction{Hash: tx.Hash, From: tx.From, Value: new(big.Int)}
		// contract creations have no recipient
		if tx.To != nil {
			t.To = *tx.To
		}
		if tx.Value != nil {
			t.Value = tx.Value.ToInt()
		}
		block.Transactions = append(block.Transactions, t)
	}

	return block
}

// Cursor is the last block a crawler finished.
type Cursor struct {
	Name    string `bson:"name" json:"name"`
	Number  uint64 `bson:"number" json:"number"`
	Hash    string `bson:"hash" json:"hash"`
	Updated int64  `bson:"updated" json:"updated"`
}

// Deposit records an on-chain transfer credited to the ledger.
type Deposit struct {
	Hash      string `bson:"hash" json:"hash"`
	Account   string `bson:"account" json:"account"`
	Amount    string `bson:"amount" json:"amount"`
	Block     uint64 `bson:"block" json:"block"`
	Timestamp int64  `bson:"timestamp" json:"timestamp"`
}
