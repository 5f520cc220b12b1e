package ledger

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ubiq/go-ubiq/v3/common"
)

var (
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrInsufficientEscrow = errors.New("insufficient escrow")
	ErrOverflow           = errors.New("ledger arithmetic overflow")
	ErrImbalanced         = errors.New("ledger total does not match account balances")
)

// MaxAmount bounds every balance and the running total (2^256 - 1).
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Ledger maps accounts to escrowed value and keeps the running total.
//
// Readers take the read lock for balance checks; every mutation updates the
// account and the total under the same write lock so no partial update is
// ever observable.
type Ledger struct {
	mu       sync.RWMutex
	escrowed map[common.Address]*big.Int
	total    *big.Int
}

func New() *Ledger {
	return &Ledger{
		escrowed: make(map[common.Address]*big.Int),
		total:    new(big.Int),
	}
}

func positive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

func (l *Ledger) balance(account common.Address) *big.Int {
	if b, ok := l.escrowed[account]; ok {
		return b
	}
	return new(big.Int)
}

// Credit adds amount to the account and to the total.
func (l *Ledger) Credit(account common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := new(big.Int).Add(l.balance(account), amount)
	total := new(big.Int).Add(l.total, amount)

	if balance.Cmp(MaxAmount) > 0 || total.Cmp(MaxAmount) > 0 {
		return ErrOverflow
	}

	l.escrowed[account] = balance
	l.total = total

	return nil
}

// Debit removes amount from the account and from the total.
func (l *Ledger) Debit(account common.Address, amount *big.Int) error {
	if err := positive(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.debit(account, amount)
}

func (l *Ledger) debit(account common.Address, amount *big.Int) error {
	current := l.balance(account)

	if amount.Cmp(current) > 0 {
		return ErrInsufficientEscrow
	}

	// The total can only trail the accounts after an aggregate-only sweep.
	if amount.Cmp(l.total) > 0 {
		return ErrOverflow
	}

	l.escrowed[account] = new(big.Int).Sub(current, amount)
	l.total = new(big.Int).Sub(l.total, amount)

	return nil
}

// Drain zeroes the account in one step and returns what it held.
func (l *Ledger) Drain(account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := new(big.Int).Set(l.balance(account))

	if amount.Sign() == 0 {
		return nil, ErrZeroAmount
	}

	if err := l.debit(account, amount); err != nil {
		return nil, err
	}

	return amount, nil
}

// ResetTotal zeroes only the aggregate counter, leaving account balances as
// they are, and returns the previous total.
func (l *Ledger) ResetTotal() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.total
	l.total = new(big.Int)

	return prev
}

// Clear zeroes every account and the total, returning the balances it held.
func (l *Ledger) Clear() map[common.Address]*big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := make(map[common.Address]*big.Int, len(l.escrowed))

	for a, b := range l.escrowed {
		prev[a] = b
		l.escrowed[a] = new(big.Int)
	}
	l.total = new(big.Int)

	return prev
}

// Restore replaces the ledger contents. With strict set the total must equal
// the sum of the balances.
func (l *Ledger) Restore(balances map[common.Address]*big.Int, total *big.Int, strict bool) error {
	sum := new(big.Int)
	escrowed := make(map[common.Address]*big.Int, len(balances))

	for a, b := range balances {
		if b == nil || b.Sign() < 0 || b.Cmp(MaxAmount) > 0 {
			return ErrOverflow
		}
		escrowed[a] = new(big.Int).Set(b)
		sum.Add(sum, b)
	}

	if total == nil {
		total = sum
	}

	if total.Sign() < 0 || total.Cmp(MaxAmount) > 0 {
		return ErrOverflow
	}

	if strict && sum.Cmp(total) != 0 {
		return ErrImbalanced
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.escrowed = escrowed
	l.total = new(big.Int).Set(total)

	return nil
}

func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return new(big.Int).Set(l.balance(account))
}

func (l *Ledger) Total() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return new(big.Int).Set(l.total)
}

// Balances returns a copy of every account the ledger has seen, including
// accounts that are back at zero.
func (l *Ledger) Balances() map[common.Address]*big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[common.Address]*big.Int, len(l.escrowed))
	for a, b := range l.escrowed {
		out[a] = new(big.Int).Set(b)
	}
	return out
}

// Active counts accounts holding a non-zero balance.
func (l *Ledger) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, b := range l.escrowed {
		if b.Sign() > 0 {
			n++
		}
	}
	return n
}
