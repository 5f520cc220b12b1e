package main

import (
	"context"
	"fmt"
	"time"

	"github.com/octanolabs/go-stakegate/engine"
	"github.com/octanolabs/go-stakegate/events"
	"github.com/octanolabs/go-stakegate/rpc"
	"github.com/octanolabs/go-stakegate/storage"
)

const defaultSettleInterval = 30 * time.Second

// startEngine builds the engine from the file config and replaces it with
// the persisted state when there is one.
func startEngine(mongo *storage.MongoDB, rpcClient *rpc.RPCClient, sink events.Sink) (*engine.Engine, error) {
	logger := appLogger.New("pkg", "engine")

	e, err := engine.New(&cfg.Engine, rpcClient, rpcClient.PriceFeed, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	first, err := mongo.IsFirstRun(ctx)
	if err != nil {
		return nil, err
	}

	if first {
		if err := mongo.Init(ctx, e.State()); err != nil {
			return nil, err
		}
		mainLogger.Warn("mongo: initialized sysStore and indexes")
	} else {
		state, err := mongo.State(ctx)
		if err != nil {
			return nil, err
		}

		accounts, err := mongo.Accounts(ctx)
		if err != nil {
			return nil, err
		}

		if err := e.Restore(state, accounts); err != nil {
			return nil, err
		}
	}

	e.WithStore(mongo)
	e.WithSink(sink)

	if !first {
		// writes back a total rebuilt from the accounts
		if err := mongo.SaveState(ctx, e.State()); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// startSettler checks pending transfers against the node until ctx is done.
func startSettler(ctx context.Context, e *engine.Engine, checker engine.ReceiptChecker) error {
	interval := defaultSettleInterval
	if cfg.Engine.SettleInterval != "" {
		d, err := time.ParseDuration(cfg.Engine.SettleInterval)
		if err != nil {
			return fmt.Errorf("can't parse settle interval %q: %w", cfg.Engine.SettleInterval, err)
		}
		interval = d
	}

	logger := appLogger.New("pkg", "settler")
	logger.Info("settling pending transfers", "d", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if len(e.Pending()) == 0 {
					continue
				}
				if err := e.SettlePending(ctx, checker); err != nil {
					logger.Warn("settling interrupted", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
