package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/events"
	"github.com/octanolabs/go-stakegate/guard"
	"github.com/octanolabs/go-stakegate/ledger"
	"github.com/octanolabs/go-stakegate/models"
	"github.com/octanolabs/go-stakegate/oracle"
	"github.com/octanolabs/go-stakegate/threshold"
	"github.com/octanolabs/go-stakegate/util"
)

var (
	ErrSendFailed    = errors.New("outbound transfer failed")
	ErrOwnerOnly     = errors.New("caller is not the owner")
	ErrPaused        = errors.New("engine is paused")
	ErrNoPriceSource = errors.New("no price source configured")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Transferer moves value out of custody. The recipient may be untrusted code
// that calls back into the engine before SendValue returns.
type Transferer interface {
	SendValue(ctx context.Context, to common.Address, amount *big.Int) error
}

// Store persists the ledger and configuration so they survive restarts.
type Store interface {
	SaveAccount(ctx context.Context, account common.Address, balance, total *big.Int) error
	SaveAccounts(ctx context.Context, balances map[common.Address]*big.Int, total *big.Int) error
	SaveState(ctx context.Context, state *models.State) error
}

// FeedResolver returns the price source living at an address.
type FeedResolver func(common.Address) oracle.PriceSource

type SweepMode int

const (
	// SweepReconcile zeroes every account together with the aggregate.
	SweepReconcile SweepMode = iota
	// SweepAggregate only zeroes the aggregate counter and leaves individual
	// balances in place.
	SweepAggregate
)

func ParseSweepMode(s string) (SweepMode, error) {
	switch strings.ToLower(s) {
	case "", "reconcile":
		return SweepReconcile, nil
	case "aggregate":
		return SweepAggregate, nil
	default:
		return SweepReconcile, fmt.Errorf("%w: sweep mode %q", ErrInvalidConfig, s)
	}
}

func (m SweepMode) String() string {
	if m == SweepAggregate {
		return "aggregate"
	}
	return "reconcile"
}

type Config struct {
	Symbol      string `json:"symbol"`
	Mode        string `json:"mode"`
	Minimum     string `json:"minimum"`
	MaxPriceAge string `json:"maxPriceAge"`
	PriceSource string `json:"priceSource"`
	Owner       string `json:"owner"`
	SweepMode   string `json:"sweepMode"`

	// SettleInterval is how often pending transfers are checked.
	SettleInterval string `json:"settleInterval"`
}

// Engine gates access on escrowed value. Every mutation runs inside the
// transfer guard, and outbound transfers run with the guard locked.
type Engine struct {
	ledger *ledger.Ledger
	guard  *guard.Guard

	mu        sync.RWMutex
	symbol    string
	threshold threshold.Config
	feedAddr  common.Address
	feed      *oracle.Adapter
	owner     common.Address
	paused    bool
	sweepMode SweepMode
	pending   map[common.Hash]*PendingTransfer

	feeds    FeedResolver
	transfer Transferer
	store    Store
	sink     events.Sink
	clock    func() time.Time
	logger   log.Logger
}

func New(cfg *Config, transfer Transferer, feeds FeedResolver, logger log.Logger) (*Engine, error) {
	e := &Engine{
		ledger:   ledger.New(),
		guard:    guard.New(),
		pending:  make(map[common.Hash]*PendingTransfer),
		symbol:   cfg.Symbol,
		feeds:    feeds,
		transfer: transfer,
		clock:    time.Now,
		logger:   logger,
	}

	if e.symbol == "" {
		e.symbol = "stake"
	}

	state := &models.State{
		Mode:        cfg.Mode,
		Minimum:     cfg.Minimum,
		MaxPriceAge: cfg.MaxPriceAge,
		PriceSource: cfg.PriceSource,
		Owner:       cfg.Owner,
		SweepMode:   cfg.SweepMode,
	}

	if err := e.apply(state); err != nil {
		return nil, err
	}

	return e, nil
}

// apply loads configuration from a persisted or configured state.
func (e *Engine) apply(state *models.State) error {
	mode, err := threshold.ParseMode(state.Mode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	minimum, err := util.ParseAmount(state.Minimum)
	if err != nil {
		return fmt.Errorf("%w: minimum: %v", ErrInvalidConfig, err)
	}

	var maxAge time.Duration
	if state.MaxPriceAge != "" {
		if maxAge, err = time.ParseDuration(state.MaxPriceAge); err != nil {
			return fmt.Errorf("%w: max price age: %v", ErrInvalidConfig, err)
		}
	}

	if mode == threshold.Oracle && maxAge <= 0 {
		return fmt.Errorf("%w: oracle mode needs a positive max price age", ErrInvalidConfig)
	}

	sweep, err := ParseSweepMode(state.SweepMode)
	if err != nil {
		return err
	}

	if state.Owner != "" && !common.IsHexAddress(state.Owner) {
		return fmt.Errorf("%w: owner %q", ErrInvalidConfig, state.Owner)
	}

	if state.PriceSource != "" && !common.IsHexAddress(state.PriceSource) {
		return fmt.Errorf("%w: price source %q", ErrInvalidConfig, state.PriceSource)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.threshold = threshold.Config{Mode: mode, Minimum: minimum, MaxPriceAge: maxAge}
	e.owner = common.HexToAddress(state.Owner)
	e.paused = state.Paused
	e.sweepMode = sweep

	e.feedAddr, e.feed = common.Address{}, nil
	if state.PriceSource != "" {
		e.setFeed(common.HexToAddress(state.PriceSource))
	}

	return nil
}

// setFeed must be called with e.mu held.
func (e *Engine) setFeed(addr common.Address) {
	e.feedAddr = addr
	e.feed = nil

	if e.feeds != nil && addr != (common.Address{}) {
		e.feed = oracle.NewAdapter(e.feeds(addr), e.logger.New("feed", addr.Hex()))
	}
}

// Restore replaces configuration and balances with persisted ones.
func (e *Engine) Restore(state *models.State, accounts []*models.Account) error {
	if err := e.apply(state); err != nil {
		return err
	}

	balances := make(map[common.Address]*big.Int, len(accounts))
	for _, a := range accounts {
		addr, balance, err := a.Convert()
		if err != nil {
			return err
		}
		balances[addr] = balance
	}

	var total *big.Int
	if state.Total != "" {
		t, ok := new(big.Int).SetString(state.Total, 10)
		if !ok {
			return fmt.Errorf("%w: total %q", ErrInvalidConfig, state.Total)
		}
		total = t
	}

	e.mu.RLock()
	strict := e.sweepMode == SweepReconcile
	e.mu.RUnlock()

	err := e.ledger.Restore(balances, total, strict)
	if errors.Is(err, ledger.ErrImbalanced) {
		// account and total writes are not atomic; the accounts win
		e.logger.Warn("stored total disagrees with accounts, rebuilding", "total", total, "accounts", len(balances))
		err = e.ledger.Restore(balances, nil, strict)
	}
	if err != nil {
		return err
	}

	e.logger.Info("restored ledger", "accounts", e.ledger.Active(), "total", e.ledger.Total(), "paused", state.Paused)

	return nil
}

func (e *Engine) WithStore(s Store) {
	e.store = s
}

func (e *Engine) WithSink(s events.Sink) {
	e.sink = s
}

// WithClock overrides the engine clock for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

func (e *Engine) now() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock()
}

// State returns the persistable view of the engine.
func (e *Engine) State() *models.State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := &models.State{
		Symbol:    e.symbol,
		Timestamp: e.clock().Unix(),
		Mode:      e.threshold.Mode.String(),
		Minimum:   e.threshold.Minimum.String(),
		Owner:     e.owner.Hex(),
		Paused:    e.paused,
		SweepMode: e.sweepMode.String(),
		Total:     e.ledger.Total().String(),
	}
	if e.threshold.MaxPriceAge > 0 {
		s.MaxPriceAge = e.threshold.MaxPriceAge.String()
	}
	if e.feedAddr != (common.Address{}) {
		s.PriceSource = e.feedAddr.Hex()
	}
	return s
}

func (e *Engine) BalanceOf(account common.Address) *big.Int {
	return e.ledger.BalanceOf(account)
}

func (e *Engine) Total() *big.Int {
	return e.ledger.Total()
}

func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

func (e *Engine) Owner() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owner
}

func (e *Engine) publish(ctx context.Context, b *events.Batch) {
	if e.sink == nil || b.Len() == 0 {
		return
	}
	if err := e.sink.Publish(ctx, b.Events()...); err != nil {
		e.logger.Error("failed to publish events", "count", b.Len(), "err", err)
	}
}
