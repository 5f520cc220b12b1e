package rpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ubiq/go-ubiq/v3/accounts/abi"
	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/common/hexutil"

	"github.com/octanolabs/go-stakegate/oracle"
)

const aggregatorABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

var feedABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		panic(err)
	}
	feedABI = parsed
}

type callArgs struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// PriceFeed reads an on-chain aggregator contract.
type PriceFeed struct {
	rpc     *RPCClient
	address common.Address
}

// PriceFeed returns the aggregator at address as a price source.
func (r *RPCClient) PriceFeed(address common.Address) oracle.PriceSource {
	return &PriceFeed{rpc: r, address: address}
}

func (f *PriceFeed) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := feedABI.Pack(method)
	if err != nil {
		return nil, err
	}

	var out hexutil.Bytes
	if err := f.rpc.client.CallContext(ctx, &out, "eth_call", callArgs{To: f.address, Data: data}, "latest"); err != nil {
		return nil, err
	}

	return feedABI.Methods[method].Outputs.UnpackValues(out)
}

func (f *PriceFeed) LatestAnswer(ctx context.Context) (*big.Int, time.Time, error) {
	values, err := f.call(ctx, "latestRoundData")
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(values) != 5 {
		return nil, time.Time{}, fmt.Errorf("latestRoundData returned %d values", len(values))
	}

	answer, ok := values[1].(*big.Int)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("unexpected answer type %T", values[1])
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("unexpected updatedAt type %T", values[3])
	}

	return answer, time.Unix(updatedAt.Int64(), 0), nil
}

// Decimals is fixed per aggregator, so it is cached by feed address.
func (f *PriceFeed) Decimals(ctx context.Context) (uint8, error) {
	if d, ok := f.rpc.decimals.Get(f.address); ok {
		return d.(uint8), nil
	}

	values, err := f.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals returned %d values", len(values))
	}

	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}

	f.rpc.decimals.Add(f.address, d)

	return d, nil
}
