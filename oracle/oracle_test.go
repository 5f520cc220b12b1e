package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubiq/go-ubiq/v3/log"
)

type fakeSource struct {
	answer    *big.Int
	updatedAt time.Time
	decimals  uint8
	err       error
	calls     int
}

func (f *fakeSource) LatestAnswer(ctx context.Context) (*big.Int, time.Time, error) {
	f.calls++
	return f.answer, f.updatedAt, f.err
}

func (f *fakeSource) Decimals(ctx context.Context) (uint8, error) {
	return f.decimals, nil
}

func TestNormalize(t *testing.T) {
	var tests = []struct {
		answer   int64
		decimals uint8
		want     string
	}{
		{100_00000000, 8, "10000000000"},
		{100, 0, "10000000000"},
		{100_000000, 6, "10000000000"},
		{100_0000000000, 10, "10000000000"},
		// truncates instead of rounding
		{1_999999999, 10, "19999999"},
		{9, 9, "0"},
	}

	for _, tt := range tests {
		got := Normalize(big.NewInt(tt.answer), tt.decimals)
		assert.Equal(t, tt.want, got.String(), "answer %d decimals %d", tt.answer, tt.decimals)
	}
}

func TestFetch(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &fakeSource{answer: big.NewInt(2512_345678), decimals: 6, updatedAt: now}

	q, err := NewAdapter(src, log.New()).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "251234567800", q.Price.String())
	assert.Equal(t, now, q.UpdatedAt)
	assert.True(t, q.Valid())
}

func TestFetchRequeriesEveryTime(t *testing.T) {
	src := &fakeSource{answer: big.NewInt(1), decimals: 8}
	a := NewAdapter(src, log.New())

	for i := 0; i < 3; i++ {
		_, err := a.Fetch(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
}

func TestFetchBadPrice(t *testing.T) {
	for _, answer := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		src := &fakeSource{answer: answer, decimals: 8}
		_, err := NewAdapter(src, log.New()).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrBadPrice)
	}

	// positive, but truncated away by normalization
	src := &fakeSource{answer: big.NewInt(9), decimals: 18}
	_, err := NewAdapter(src, log.New()).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrBadPrice)
}

func TestFetchSourceError(t *testing.T) {
	boom := errors.New("feed unreachable")
	src := &fakeSource{err: boom}

	_, err := NewAdapter(src, log.New()).Fetch(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestAssertFresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	maxAge := 2 * time.Hour

	q := Quote{Price: big.NewInt(1), UpdatedAt: now.Add(-3 * time.Hour)}
	assert.ErrorIs(t, AssertFresh(q, now, maxAge), ErrStalePrice)

	q.UpdatedAt = now.Add(-2 * time.Hour)
	assert.NoError(t, AssertFresh(q, now, maxAge))

	q.UpdatedAt = now.Add(time.Minute)
	assert.NoError(t, AssertFresh(q, now, maxAge))
	assert.Equal(t, time.Duration(0), q.Age(now))
}
