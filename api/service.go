package api

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/common/hexutil"

	"github.com/octanolabs/go-stakegate/engine"
	"github.com/octanolabs/go-stakegate/models"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

var ErrNoEventLog = errors.New("event log is not available")

// Backend is the part of the engine served over the api.
type Backend interface {
	IsActive(ctx context.Context, account common.Address) bool
	MinRequiredDeposit(ctx context.Context) (*big.Int, error)
	AccountSnapshot(ctx context.Context, account common.Address) (*models.Snapshot, error)
	Status(ctx context.Context) (*models.Status, error)
	BalanceOf(account common.Address) *big.Int

	Deposit(ctx context.Context, account common.Address, amount *big.Int) error
	Withdraw(ctx context.Context, account common.Address, amount *big.Int) error
	Exit(ctx context.Context, account common.Address) error
	EmergencyWithdraw(ctx context.Context, account common.Address) error

	SetMinimumRequired(ctx context.Context, admin engine.AdminContext, minimum *big.Int) error
	SetMaxPriceAge(ctx context.Context, admin engine.AdminContext, maxAge time.Duration) error
	SetPriceSource(ctx context.Context, admin engine.AdminContext, source common.Address) error
	Pause(ctx context.Context, admin engine.AdminContext) error
	Unpause(ctx context.Context, admin engine.AdminContext) error
	TransferOwnership(ctx context.Context, admin engine.AdminContext, owner common.Address) error
	Sweep(ctx context.Context, admin engine.AdminContext, to common.Address) error
}

type EventLog interface {
	LatestEvents(ctx context.Context, limit int64) ([]*models.Event, error)
	AccountEvents(ctx context.Context, account common.Address, limit int64) ([]*models.Event, error)
}

// stakeService is the read-only stake_ namespace.
type stakeService struct {
	backend Backend
	events  EventLog
}

func (s *stakeService) IsActive(ctx context.Context, account common.Address) bool {
	return s.backend.IsActive(ctx, account)
}

func (s *stakeService) MinRequiredDeposit(ctx context.Context) (*hexutil.Big, error) {
	required, err := s.backend.MinRequiredDeposit(ctx)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(required), nil
}

func (s *stakeService) AccountSnapshot(ctx context.Context, account common.Address) (*models.Snapshot, error) {
	return s.backend.AccountSnapshot(ctx, account)
}

func (s *stakeService) Balance(account common.Address) *hexutil.Big {
	return (*hexutil.Big)(s.backend.BalanceOf(account))
}

func (s *stakeService) Status(ctx context.Context) (*models.Status, error) {
	return s.backend.Status(ctx)
}

func (s *stakeService) LatestEvents(ctx context.Context, limit int64) ([]*models.Event, error) {
	if s.events == nil {
		return nil, ErrNoEventLog
	}
	return s.events.LatestEvents(ctx, clampLimit(limit))
}

func (s *stakeService) AccountEvents(ctx context.Context, account common.Address, limit int64) ([]*models.Event, error) {
	if s.events == nil {
		return nil, ErrNoEventLog
	}
	return s.events.AccountEvents(ctx, account, clampLimit(limit))
}

func clampLimit(limit int64) int64 {
	switch {
	case limit <= 0:
		return defaultEventLimit
	case limit > maxEventLimit:
		return maxEventLimit
	}
	return limit
}

// operatorService is the operator_ namespace used by a trusted deposit
// gateway and by the owner.
type operatorService struct {
	backend Backend
}

func (s *operatorService) Deposit(ctx context.Context, account common.Address, amount *hexutil.Big) error {
	return s.backend.Deposit(ctx, account, amount.ToInt())
}

func (s *operatorService) Withdraw(ctx context.Context, account common.Address, amount *hexutil.Big) error {
	return s.backend.Withdraw(ctx, account, amount.ToInt())
}

func (s *operatorService) Exit(ctx context.Context, account common.Address) error {
	return s.backend.Exit(ctx, account)
}

func (s *operatorService) EmergencyWithdraw(ctx context.Context, account common.Address) error {
	return s.backend.EmergencyWithdraw(ctx, account)
}

func (s *operatorService) SetMinimum(ctx context.Context, caller common.Address, minimum *hexutil.Big) error {
	return s.backend.SetMinimumRequired(ctx, engine.AdminContext{Caller: caller}, minimum.ToInt())
}

// SetMaxPriceAge takes the age in seconds.
func (s *operatorService) SetMaxPriceAge(ctx context.Context, caller common.Address, seconds hexutil.Uint64) error {
	return s.backend.SetMaxPriceAge(ctx, engine.AdminContext{Caller: caller}, time.Duration(seconds)*time.Second)
}

func (s *operatorService) SetPriceSource(ctx context.Context, caller common.Address, source common.Address) error {
	return s.backend.SetPriceSource(ctx, engine.AdminContext{Caller: caller}, source)
}

func (s *operatorService) Pause(ctx context.Context, caller common.Address) error {
	return s.backend.Pause(ctx, engine.AdminContext{Caller: caller})
}

func (s *operatorService) Unpause(ctx context.Context, caller common.Address) error {
	return s.backend.Unpause(ctx, engine.AdminContext{Caller: caller})
}

func (s *operatorService) TransferOwnership(ctx context.Context, caller common.Address, owner common.Address) error {
	return s.backend.TransferOwnership(ctx, engine.AdminContext{Caller: caller}, owner)
}

func (s *operatorService) Sweep(ctx context.Context, caller common.Address, to common.Address) error {
	return s.backend.Sweep(ctx, engine.AdminContext{Caller: caller}, to)
}
