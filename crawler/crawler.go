package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/models"
)

const (
	blockCacheLimit = 10
	cursorName      = "deposits"
)

var ErrReorg = errors.New("chain reorganised below the confirmation depth")

type Config struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval"`
	// Confirmations is how far behind the node head a block must be before
	// its deposits are credited.
	Confirmations uint64 `json:"confirmations"`
	StartBlock    uint64 `json:"startBlock"`
	// BatchSize caps the blocks handled by one RunLoop.
	BatchSize uint64 `json:"batchSize"`
}

type Chain interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*models.Block, error)
}

type Database interface {
	Cursor(ctx context.Context, name string) (*models.Cursor, error)
	SaveCursor(ctx context.Context, c *models.Cursor) error
	MarkDeposit(ctx context.Context, d *models.Deposit) (bool, error)
	UnmarkDeposit(ctx context.Context, hash string) error
}

// Depositor credits escrow.
type Depositor interface {
	Deposit(ctx context.Context, account common.Address, amount *big.Int) error
}

// Crawler follows the chain and credits value sent to the custodian account
// as deposits from the sender.
type Crawler struct {
	backend   Database
	rpc       Chain
	depositor Depositor
	custodian common.Address
	cfg       *Config

	mu    sync.Mutex
	state struct {
		syncing bool
		reorg   bool
	}
	blockCache *lru.Cache // number -> hash of recently handled blocks
	logger     log.Logger
}

func New(db Database, chain Chain, depositor Depositor, custodian common.Address, cfg *Config, logger log.Logger) *Crawler {
	bc, _ := lru.New(blockCacheLimit)

	return &Crawler{
		backend:    db,
		rpc:        chain,
		depositor:  depositor,
		custodian:  custodian,
		cfg:        cfg,
		blockCache: bc,
		logger:     logger,
	}
}

// Start runs RunLoop on every tick until ctx is done.
func (c *Crawler) Start(ctx context.Context) error {
	interval, err := time.ParseDuration(c.cfg.Interval)
	if err != nil {
		return fmt.Errorf("can't parse crawler interval %q: %w", c.cfg.Interval, err)
	}

	c.logger.Warn("deposit crawler interval set", "d", interval, "custodian", c.custodian, "confirmations", c.cfg.Confirmations)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.RunLoop(ctx)
		for {
			select {
			case <-ticker.C:
				c.RunLoop(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (c *Crawler) Reorged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.reorg
}

// RunLoop handles confirmed blocks after the cursor. Overlapping calls and
// calls after a detected reorg return immediately.
func (c *Crawler) RunLoop(ctx context.Context) {
	c.mu.Lock()
	if c.state.syncing || c.state.reorg {
		c.mu.Unlock()
		c.logger.Debug("Sync already in progress or halted")
		return
	}
	c.state.syncing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.syncing = false
		c.mu.Unlock()
	}()

	if err := c.sync(ctx); err != nil {
		if errors.Is(err, ErrReorg) {
			c.mu.Lock()
			c.state.reorg = true
			c.mu.Unlock()
			c.logger.Error("deposit crawler halted", "err", err)
			return
		}
		c.logger.Warn("deposit sync interrupted", "err", err)
	}
}

func (c *Crawler) sync(ctx context.Context) error {
	cursor, err := c.backend.Cursor(ctx, cursorName)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	next := c.cfg.StartBlock
	if cursor != nil {
		next = cursor.Number + 1
		c.blockCache.Add(cursor.Number, cursor.Hash)
	}

	head, err := c.rpc.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block number: %w", err)
	}

	if head < c.cfg.Confirmations {
		return nil
	}
	last := head - c.cfg.Confirmations

	if c.cfg.BatchSize > 0 && last >= next && last-next >= c.cfg.BatchSize {
		last = next + c.cfg.BatchSize - 1
	}

	var credited, blocks int
	start := time.Now()

	for n := next; n <= last; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, err := c.rpc.BlockByNumber(ctx, n)
		if err != nil {
			return fmt.Errorf("block %d: %w", n, err)
		}

		if parent, ok := c.blockCache.Get(n - 1); ok && n > 0 && parent.(string) != block.ParentHash.Hex() {
			return fmt.Errorf("%w: block %d parent %s, have %s", ErrReorg, n, block.ParentHash.Hex(), parent)
		}

		count, err := c.handleBlock(ctx, block)
		credited += count
		if err != nil {
			return err
		}

		if err := c.backend.SaveCursor(ctx, &models.Cursor{Name: cursorName, Number: block.Number, Hash: block.Hash.Hex()}); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
		c.blockCache.Add(block.Number, block.Hash.Hex())
		blocks++
	}

	if blocks > 0 {
		c.logger.Info("Imported new chain segment", "blocks", blocks, "head", last, "deposits", credited, "t", time.Since(start))
	}

	return nil
}
