package events

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ubiq/go-ubiq/v3/common"
)

type Type string

const (
	Deposited            Type = "Deposited"
	Withdrawn            Type = "Withdrawn"
	EmergencyWithdrawn   Type = "EmergencyWithdrawn"
	Activated            Type = "Activated"
	Deactivated          Type = "Deactivated"
	Swept                Type = "Swept"
	MinimumUpdated       Type = "MinimumUpdated"
	MaxPriceAgeUpdated   Type = "MaxPriceAgeUpdated"
	PriceSourceUpdated   Type = "PriceSourceUpdated"
	Paused               Type = "Paused"
	Unpaused             Type = "Unpaused"
	OwnershipTransferred Type = "OwnershipTransferred"
	TransferReverted     Type = "TransferReverted"
)

// Event is an append-only record of something the engine committed.
type Event struct {
	ID      uuid.UUID         `json:"id"`
	Type    Type              `json:"type"`
	Account common.Address    `json:"account"`
	Amount  *big.Int          `json:"amount,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
	Time    time.Time         `json:"time"`
}

func New(t Type, account common.Address, amount *big.Int, at time.Time) Event {
	ev := Event{
		ID:      uuid.New(),
		Type:    t,
		Account: account,
		Time:    at,
	}
	if amount != nil {
		ev.Amount = new(big.Int).Set(amount)
	}
	return ev
}

// With attaches a key/value detail to the event.
func (e Event) With(key, value string) Event {
	data := make(map[string]string, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// Sink consumes committed events.
type Sink interface {
	Publish(ctx context.Context, evs ...Event) error
}

// Batch collects the events of one operation so that nothing is published
// for an operation that fails halfway.
type Batch struct {
	evs []Event
}

func (b *Batch) Add(ev Event) {
	b.evs = append(b.evs, ev)
}

func (b *Batch) Events() []Event {
	return b.evs
}

func (b *Batch) Len() int {
	return len(b.evs)
}

// Fanout publishes to every sink and returns the first error.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, evs ...Event) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, evs...); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu  sync.Mutex
	evs []Event
}

func (r *Recorder) Publish(ctx context.Context, evs ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evs = append(r.evs, evs...)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.evs))
	copy(out, r.evs)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.evs {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evs = nil
}
