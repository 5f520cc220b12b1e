package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/engine"
	"github.com/octanolabs/go-stakegate/models"
)

var (
	custodian = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func hashOf(n uint64, fork string) common.Hash {
	return common.BytesToHash([]byte(fmt.Sprintf("%s-%d", fork, n)))
}

type fakeChain struct {
	head   uint64
	blocks map[uint64]*models.Block
}

func newChain(head uint64) *fakeChain {
	c := &fakeChain{head: head, blocks: make(map[uint64]*models.Block)}
	for n := uint64(0); n <= head; n++ {
		c.blocks[n] = &models.Block{Number: n, Hash: hashOf(n, "main"), ParentHash: hashOf(n-1, "main")}
	}
	return c
}

func (c *fakeChain) pay(n uint64, from, to common.Address, value int64) {
	b := c.blocks[n]
	b.Transactions = append(b.Transactions, models.Transaction{
		Hash:  common.BytesToHash([]byte(fmt.Sprintf("tx-%d-%d", n, len(b.Transactions)))),
		From:  from,
		To:    to,
		Value: big.NewInt(value),
	})
}

func (c *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.head, nil
}

func (c *fakeChain) BlockByNumber(ctx context.Context, number uint64) (*models.Block, error) {
	b, ok := c.blocks[number]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

type memDB struct {
	cursor   *models.Cursor
	deposits map[string]*models.Deposit
}

func newDB() *memDB {
	return &memDB{deposits: make(map[string]*models.Deposit)}
}

func (m *memDB) Cursor(ctx context.Context, name string) (*models.Cursor, error) {
	if m.cursor == nil {
		return nil, nil
	}
	c := *m.cursor
	return &c, nil
}

func (m *memDB) SaveCursor(ctx context.Context, c *models.Cursor) error {
	cp := *c
	m.cursor = &cp
	return nil
}

func (m *memDB) MarkDeposit(ctx context.Context, d *models.Deposit) (bool, error) {
	if _, ok := m.deposits[d.Hash]; ok {
		return false, nil
	}
	m.deposits[d.Hash] = d
	return true, nil
}

func (m *memDB) UnmarkDeposit(ctx context.Context, hash string) error {
	delete(m.deposits, hash)
	return nil
}

type nopTransfer struct{}

func (nopTransfer) SendValue(context.Context, common.Address, *big.Int) error { return nil }

func newEngine(t *testing.T) *engine.Engine {
	e, err := engine.New(&engine.Config{Mode: "fixed", Minimum: "100", Owner: custodian.Hex()}, nopTransfer{}, nil, log.New())
	require.NoError(t, err)
	return e
}

func TestCreditsConfirmedDeposits(t *testing.T) {
	chain := newChain(10)
	chain.pay(2, alice, custodian, 60)
	chain.pay(2, bob, alice, 1000) // not to the custodian
	chain.pay(5, alice, custodian, 40)
	chain.pay(9, bob, custodian, 500) // not confirmed yet

	db := newDB()
	e := newEngine(t)
	c := New(db, chain, e, custodian, &Config{Confirmations: 2}, log.New())

	c.RunLoop(context.Background())

	assert.Equal(t, "100", e.BalanceOf(alice).String())
	assert.Equal(t, "0", e.BalanceOf(bob).String())
	assert.True(t, e.IsActive(context.Background(), alice))
	assert.Equal(t, uint64(8), db.cursor.Number)
	assert.Len(t, db.deposits, 2)

	chain.head = 11
	chain.blocks[11] = &models.Block{Number: 11, Hash: hashOf(11, "main"), ParentHash: hashOf(10, "main")}
	c.RunLoop(context.Background())

	assert.Equal(t, "500", e.BalanceOf(bob).String())
	assert.Equal(t, uint64(9), db.cursor.Number)
}

func TestReplayDoesNotCreditTwice(t *testing.T) {
	chain := newChain(4)
	chain.pay(3, alice, custodian, 70)

	db := newDB()
	e := newEngine(t)

	New(db, chain, e, custodian, &Config{}, log.New()).RunLoop(context.Background())
	require.Equal(t, "70", e.BalanceOf(alice).String())

	// lost cursor: the same blocks are handled again
	db.cursor = nil
	New(db, chain, e, custodian, &Config{}, log.New()).RunLoop(context.Background())
	assert.Equal(t, "70", e.BalanceOf(alice).String())
}

func TestPausedEngineHoldsTheCursor(t *testing.T) {
	chain := newChain(6)
	chain.pay(1, alice, custodian, 10)
	chain.pay(4, bob, custodian, 20)

	db := newDB()
	e := newEngine(t)
	c := New(db, chain, e, custodian, &Config{}, log.New())

	c.RunLoop(context.Background())
	require.Equal(t, "20", e.BalanceOf(bob).String())

	chain.head = 8
	chain.blocks[7] = &models.Block{Number: 7, Hash: hashOf(7, "main"), ParentHash: hashOf(6, "main")}
	chain.blocks[8] = &models.Block{Number: 8, Hash: hashOf(8, "main"), ParentHash: hashOf(7, "main")}
	chain.pay(7, alice, custodian, 5)

	require.NoError(t, e.Pause(context.Background(), engine.AdminContext{Caller: custodian}))
	c.RunLoop(context.Background())

	assert.Equal(t, uint64(6), db.cursor.Number)
	assert.Equal(t, "10", e.BalanceOf(alice).String())
	assert.Len(t, db.deposits, 2)

	require.NoError(t, e.Unpause(context.Background(), engine.AdminContext{Caller: custodian}))
	c.RunLoop(context.Background())

	assert.Equal(t, uint64(8), db.cursor.Number)
	assert.Equal(t, "15", e.BalanceOf(alice).String())
}

func TestReorgHaltsCrawler(t *testing.T) {
	chain := newChain(5)
	db := newDB()
	e := newEngine(t)
	c := New(db, chain, e, custodian, &Config{}, log.New())

	c.RunLoop(context.Background())
	require.Equal(t, uint64(5), db.cursor.Number)

	chain.head = 6
	chain.blocks[6] = &models.Block{Number: 6, Hash: hashOf(6, "fork"), ParentHash: hashOf(5, "fork")}
	chain.pay(6, alice, custodian, 1000)

	c.RunLoop(context.Background())
	assert.True(t, c.Reorged())
	assert.Equal(t, uint64(5), db.cursor.Number)
	assert.Equal(t, "0", e.BalanceOf(alice).String())
}

func TestBatchSize(t *testing.T) {
	chain := newChain(20)
	db := newDB()
	c := New(db, chain, newEngine(t), custodian, &Config{StartBlock: 3, BatchSize: 5}, log.New())

	c.RunLoop(context.Background())
	assert.Equal(t, uint64(7), db.cursor.Number)

	c.RunLoop(context.Background())
	assert.Equal(t, uint64(12), db.cursor.Number)
}

func TestStartRejectsBadInterval(t *testing.T) {
	c := New(newDB(), newChain(1), newEngine(t), custodian, &Config{Interval: "often"}, log.New())
	assert.Error(t, c.Start(context.Background()))
}
