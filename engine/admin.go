package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ubiq/go-ubiq/v3/common"

	"github.com/octanolabs/go-stakegate/events"
)

// AdminContext identifies the caller of a privileged operation.
type AdminContext struct {
	Caller common.Address
}

func (e *Engine) requireOwner(admin AdminContext) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.owner == (common.Address{}) || admin.Caller != e.owner {
		return ErrOwnerOnly
	}
	return nil
}

// configure runs an owner-only configuration change inside the guard,
// persists the new state and publishes ev. change is called with e.mu held.
func (e *Engine) configure(ctx context.Context, admin AdminContext, change func() (events.Event, error)) error {
	return e.guard.Run(ctx, func(ctx context.Context) error {
		prev := e.State()

		e.mu.Lock()
		if e.owner == (common.Address{}) || admin.Caller != e.owner {
			e.mu.Unlock()
			e.logger.Debug("admin call rejected", "caller", admin.Caller)
			return ErrOwnerOnly
		}
		ev, err := change()
		e.mu.Unlock()

		if err != nil {
			return err
		}

		if e.store != nil {
			if err := e.store.SaveState(ctx, e.State()); err != nil {
				e.logger.Error("failed to persist configuration", "event", ev.Type, "err", err)
				if rerr := e.apply(prev); rerr != nil {
					e.logger.Error("failed to revert configuration", "err", rerr)
				}
				return fmt.Errorf("persist configuration: %w", err)
			}
		}

		e.logger.Info("configuration changed", "event", ev.Type, "caller", admin.Caller, "data", ev.Data)

		var b events.Batch
		b.Add(ev)
		e.publish(ctx, &b)

		return nil
	})
}

// SetMinimumRequired changes the activation threshold, in value units for the
// fixed mode and in 8-digit fiat for the oracle mode.
func (e *Engine) SetMinimumRequired(ctx context.Context, admin AdminContext, minimum *big.Int) error {
	if minimum == nil || minimum.Sign() <= 0 {
		return fmt.Errorf("%w: minimum must be positive", ErrInvalidConfig)
	}

	return e.configure(ctx, admin, func() (events.Event, error) {
		prev := e.threshold.Minimum
		e.threshold.Minimum = new(big.Int).Set(minimum)

		return events.New(events.MinimumUpdated, admin.Caller, minimum, e.clock()).
			With("previous", prev.String()), nil
	})
}

func (e *Engine) SetMaxPriceAge(ctx context.Context, admin AdminContext, maxAge time.Duration) error {
	if maxAge <= 0 {
		return fmt.Errorf("%w: max price age must be positive", ErrInvalidConfig)
	}

	return e.configure(ctx, admin, func() (events.Event, error) {
		prev := e.threshold.MaxPriceAge
		e.threshold.MaxPriceAge = maxAge

		return events.New(events.MaxPriceAgeUpdated, admin.Caller, nil, e.clock()).
			With("maxPriceAge", maxAge.String()).
			With("previous", prev.String()), nil
	})
}

func (e *Engine) SetPriceSource(ctx context.Context, admin AdminContext, source common.Address) error {
	if source == (common.Address{}) {
		return fmt.Errorf("%w: price source is the zero address", ErrInvalidConfig)
	}

	return e.configure(ctx, admin, func() (events.Event, error) {
		prev := e.feedAddr
		e.setFeed(source)

		return events.New(events.PriceSourceUpdated, admin.Caller, nil, e.clock()).
			With("source", source.Hex()).
			With("previous", prev.Hex()), nil
	})
}

func (e *Engine) Pause(ctx context.Context, admin AdminContext) error {
	return e.configure(ctx, admin, func() (events.Event, error) {
		e.paused = true
		return events.New(events.Paused, admin.Caller, nil, e.clock()), nil
	})
}

func (e *Engine) Unpause(ctx context.Context, admin AdminContext) error {
	return e.configure(ctx, admin, func() (events.Event, error) {
		e.paused = false
		return events.New(events.Unpaused, admin.Caller, nil, e.clock()), nil
	})
}

// TransferOwnership hands the owner role over in one step.
func (e *Engine) TransferOwnership(ctx context.Context, admin AdminContext, owner common.Address) error {
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: owner is the zero address", ErrInvalidConfig)
	}

	return e.configure(ctx, admin, func() (events.Event, error) {
		prev := e.owner
		e.owner = owner

		return events.New(events.OwnershipTransferred, owner, nil, e.clock()).
			With("previous", prev.Hex()), nil
	})
}
