package ledger

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubiq/go-ubiq/v3/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func sum(l *Ledger) *big.Int {
	s := new(big.Int)
	for _, b := range l.Balances() {
		s.Add(s, b)
	}
	return s
}

func TestCreditDebit(t *testing.T) {
	l := New()

	require.NoError(t, l.Credit(alice, big.NewInt(100)))
	require.NoError(t, l.Credit(bob, big.NewInt(50)))
	require.NoError(t, l.Debit(alice, big.NewInt(30)))

	assert.Equal(t, "70", l.BalanceOf(alice).String())
	assert.Equal(t, "50", l.BalanceOf(bob).String())
	assert.Equal(t, "120", l.Total().String())
	assert.Equal(t, "0", l.BalanceOf(carol).String())
	assert.Equal(t, 2, l.Active())
}

func TestRejectsZeroAndNegative(t *testing.T) {
	l := New()

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		assert.ErrorIs(t, l.Credit(alice, amount), ErrZeroAmount)
		assert.ErrorIs(t, l.Debit(alice, amount), ErrZeroAmount)
	}
	assert.Equal(t, "0", l.Total().String())
}

func TestDebitExceedingBalance(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(alice, big.NewInt(10)))

	assert.ErrorIs(t, l.Debit(alice, big.NewInt(11)), ErrInsufficientEscrow)
	assert.ErrorIs(t, l.Debit(bob, big.NewInt(1)), ErrInsufficientEscrow)

	assert.Equal(t, "10", l.BalanceOf(alice).String())
	assert.Equal(t, "10", l.Total().String())
}

func TestCreditOverflow(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(alice, MaxAmount))

	assert.ErrorIs(t, l.Credit(alice, big.NewInt(1)), ErrOverflow)
	assert.ErrorIs(t, l.Credit(bob, big.NewInt(1)), ErrOverflow)

	assert.Equal(t, 0, l.BalanceOf(alice).Cmp(MaxAmount))
	assert.Equal(t, "0", l.BalanceOf(bob).String())
}

func TestDrain(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(alice, big.NewInt(42)))
	require.NoError(t, l.Credit(bob, big.NewInt(8)))

	amount, err := l.Drain(alice)
	require.NoError(t, err)
	assert.Equal(t, "42", amount.String())
	assert.Equal(t, "0", l.BalanceOf(alice).String())
	assert.Equal(t, "8", l.Total().String())

	_, err = l.Drain(alice)
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestResetTotalLeavesBalances(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(alice, big.NewInt(5)))

	prev := l.ResetTotal()
	assert.Equal(t, "5", prev.String())
	assert.Equal(t, "0", l.Total().String())
	assert.Equal(t, "5", l.BalanceOf(alice).String())

	// a phantom balance can no longer be paid out of the aggregate
	assert.ErrorIs(t, l.Debit(alice, big.NewInt(5)), ErrOverflow)
	assert.Equal(t, "5", l.BalanceOf(alice).String())
}

func TestClearAndRestore(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(alice, big.NewInt(3)))
	require.NoError(t, l.Credit(bob, big.NewInt(4)))
	total := l.Total()

	prev := l.Clear()
	assert.Equal(t, "0", l.Total().String())
	assert.Equal(t, "0", l.BalanceOf(bob).String())
	assert.Equal(t, 0, l.Active())

	require.NoError(t, l.Restore(prev, total, true))
	assert.Equal(t, "3", l.BalanceOf(alice).String())
	assert.Equal(t, "7", l.Total().String())
}

func TestRestoreStrict(t *testing.T) {
	l := New()
	balances := map[common.Address]*big.Int{alice: big.NewInt(2), bob: big.NewInt(3)}

	assert.ErrorIs(t, l.Restore(balances, big.NewInt(4), true), ErrImbalanced)
	require.NoError(t, l.Restore(balances, big.NewInt(4), false))
	assert.Equal(t, "4", l.Total().String())

	require.NoError(t, l.Restore(balances, nil, true))
	assert.Equal(t, "5", l.Total().String())

	balances[carol] = big.NewInt(-1)
	assert.ErrorIs(t, l.Restore(balances, nil, false), ErrOverflow)
}

func TestTotalEqualsSumUnderRandomOps(t *testing.T) {
	l := New()
	accounts := []common.Address{alice, bob, carol}
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		a := accounts[rnd.Intn(len(accounts))]
		amount := big.NewInt(rnd.Int63n(1000))

		switch rnd.Intn(3) {
		case 0:
			_ = l.Credit(a, amount)
		case 1:
			_ = l.Debit(a, amount)
		default:
			_, _ = l.Drain(a)
		}

		require.Equal(t, 0, sum(l).Cmp(l.Total()), "step %d", i)
	}
}
