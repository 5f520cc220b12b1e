package models

import (
	"fmt"
	"math/big"

	"github.com/ubiq/go-ubiq/v3/common"
)

type Account struct {
	Address string `bson:"address" json:"address"`
	Balance string `bson:"balance" json:"balance"`
	Updated int64  `bson:"updated" json:"updated"`
}

func NewAccount(address common.Address, balance *big.Int, updated int64) *Account {
	return &Account{
		Address: address.Hex(),
		Balance: balance.String(),
		Updated: updated,
	}
}

func (a *Account) Convert() (common.Address, *big.Int, error) {
	if !common.IsHexAddress(a.Address) {
		return common.Address{}, nil, fmt.Errorf("invalid account address %q", a.Address)
	}

	balance, ok := new(big.Int).SetString(a.Balance, 10)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("invalid balance %q for %s", a.Balance, a.Address)
	}

	return common.HexToAddress(a.Address), balance, nil
}
