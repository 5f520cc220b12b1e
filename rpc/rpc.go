package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mitchellh/go-homedir"
	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/common/hexutil"
	"github.com/ubiq/go-ubiq/v3/log"
	"github.com/ubiq/go-ubiq/v3/rpc"

	"github.com/octanolabs/go-stakegate/models"
)

const (
	decimalsCacheLimit = 64
	receiptPollPeriod  = time.Second
)

var (
	ErrNoCustodian      = errors.New("no custodian account configured")
	ErrTransferReverted = errors.New("transfer transaction reverted")
	ErrReceiptTimeout   = errors.New("no transfer receipt in time")
)

type Config struct {
	Type     string `json:"type"`
	Endpoint string `json:"endpoint"`
	// Custodian is the node-managed account holding escrowed value.
	Custodian string `json:"custodian"`
	Gas       uint64 `json:"gas"`
	// ReceiptTimeout makes transfers wait for a mined receipt. Empty disables
	// waiting.
	ReceiptTimeout string `json:"receiptTimeout"`
}

type RPCClient struct {
	client         *rpc.Client
	custodian      common.Address
	gas            uint64
	receiptTimeout time.Duration
	decimals       *lru.Cache // feed address -> decimals
	logger         log.Logger
}

func dialNewClient(cfg *Config) (*rpc.Client, error) {

	var (
		client *rpc.Client
		err    error
	)

	switch cfg.Type {
	case "http":
		if client, err = rpc.DialHTTP(cfg.Endpoint); err != nil {
			return nil, err
		}
	case "unix", "ipc":
		if client, err = rpc.DialIPC(context.Background(), cfg.Endpoint); err != nil {
			return nil, err
		}
	case "ws", "websocket", "websockets":
		if client, err = rpc.DialWebsocket(context.Background(), cfg.Endpoint, ""); err != nil {
			return nil, err
		}
	default:
		fp, err := homedir.Expand("~/.ubiq/gubiq.ipc")
		if err != nil {
			return nil, err
		}
		if client, err = rpc.DialIPC(context.Background(), fp); err != nil {
			return nil, err
		}
	}

	return client, nil
}

func NewRPCClient(cfg *Config) (*RPCClient, error) {
	client, err := dialNewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not dial rpc client: %w", err)
	}

	return NewWithClient(client, cfg)
}

// NewWithClient wraps an already connected client.
func NewWithClient(client *rpc.Client, cfg *Config) (*RPCClient, error) {
	cache, err := lru.New(decimalsCacheLimit)
	if err != nil {
		return nil, err
	}

	r := &RPCClient{
		client:   client,
		gas:      cfg.Gas,
		decimals: cache,
		logger:   log.New("module", "rpc"),
	}

	if cfg.Custodian != "" {
		if !common.IsHexAddress(cfg.Custodian) {
			return nil, fmt.Errorf("invalid custodian address %q", cfg.Custodian)
		}
		r.custodian = common.HexToAddress(cfg.Custodian)
	}

	if cfg.ReceiptTimeout != "" {
		if r.receiptTimeout, err = time.ParseDuration(cfg.ReceiptTimeout); err != nil {
			return nil, fmt.Errorf("invalid receipt timeout: %w", err)
		}
	}

	return r, nil
}

func (r *RPCClient) Close() {
	r.client.Close()
}

func (r *RPCClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var bn hexutil.Uint64

	if err := r.client.CallContext(ctx, &bn, "eth_blockNumber"); err != nil {
		return 0, err
	}

	return uint64(bn), nil
}

func (r *RPCClient) Ping() error {
	var version string

	return r.client.Call(&version, "web3_clientVersion")
}

func (r *RPCClient) Custodian() common.Address {
	return r.custodian
}

func (r *RPCClient) BlockByNumber(ctx context.Context, number uint64) (*models.Block, error) {
	var reply *models.RawBlock

	if err := r.client.CallContext(ctx, &reply, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, fmt.Errorf("block %d not found", number)
	}

	return reply.Convert(), nil
}
