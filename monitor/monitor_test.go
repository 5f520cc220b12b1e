package monitor

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/events"
)

var _ events.Sink = (*Monitor)(nil)

func record(msg string, ctx ...interface{}) *log.Record {
	return &log.Record{Time: time.Now(), Lvl: log.LvlInfo, Msg: msg, Ctx: ctx}
}

func TestGetContext(t *testing.T) {
	ctx := getContext([]interface{}{"pkg", "engine", "feed", "0xfe", "account", "0xa1"})
	assert.Equal(t, "engine -> 0xfe", ctx.String())

	assert.Equal(t, "root", getContext([]interface{}{"account", "0xa1"}).String())
	assert.Empty(t, getContext([]interface{}{"pkg", 7}))
	assert.Empty(t, getContext([]interface{}{"pkg"}))

	assert.Equal(t, "api", getContext([]interface{}{"pkg", "api", "x", "y"}).String())

	assert.True(t, hasKey([]interface{}{"pkg", "engine", "tx", "0x01"}, "tx"))
	assert.False(t, hasKey([]interface{}{"pkg", "engine", "account", "tx"}, "tx"))
}

// drain collects the panes announced so far by title.
func drain(t *testing.T, h *PaneRouter) map[string]*tview.TextView {
	t.Helper()

	views := make(map[string]*tview.TextView)
	for {
		select {
		case v := <-h.Panes():
			_, dup := views[v.GetTitle()]
			require.False(t, dup, "pane %q announced twice", v.GetTitle())
			views[v.GetTitle()] = v
		default:
			return views
		}
	}
}

func TestPaneRouterSplitsByContext(t *testing.T) {
	h := NewPaneRouter()

	require.NoError(t, h.Log(record("deposit", "pkg", "engine", "amount", "5")))
	require.NoError(t, h.Log(record("withdraw", "pkg", "engine")))
	require.NoError(t, h.Log(record("listening", "pkg", "api")))

	views := drain(t, h)
	require.Len(t, views, 2)

	engineView, apiView := views["engine"], views["api"]
	require.NotNil(t, engineView)
	require.NotNil(t, apiView)

	assert.Contains(t, engineView.GetText(true), "deposit")
	assert.Contains(t, engineView.GetText(true), "withdraw")
	assert.NotContains(t, engineView.GetText(true), "listening")
	assert.Contains(t, apiView.GetText(true), "listening")

	require.NoError(t, h.Log(record("again", "pkg", "api")))
	assert.Empty(t, drain(t, h))
}

func TestPaneRouterAlertsAndTransfers(t *testing.T) {
	h := NewPaneRouter()

	pending := record("transfer pending", "pkg", "engine", "tx", "0x01", "amount", "1000")
	pending.Lvl = log.LvlWarn
	require.NoError(t, h.Log(pending))

	require.NoError(t, h.Log(record("credited deposit", "pkg", "crawler", "tx", "0x02")))

	halted := record("deposit crawler halted", "pkg", "crawler")
	halted.Lvl = log.LvlError
	require.NoError(t, h.Log(halted))

	views := drain(t, h)
	require.Len(t, views, 4)

	alerts := views[alertsPane].GetText(true)
	assert.Contains(t, alerts, "transfer pending")
	assert.Contains(t, alerts, "deposit crawler halted")
	assert.NotContains(t, alerts, "credited deposit")

	transfers := views[transfersPane].GetText(true)
	assert.Contains(t, transfers, "transfer pending")
	assert.Contains(t, transfers, "credited deposit")
	assert.NotContains(t, transfers, "halted")

	assert.Contains(t, views["engine"].GetText(true), "transfer pending")
	assert.Contains(t, views["crawler"].GetText(true), "deposit crawler halted")
}

func TestPublishWritesFeed(t *testing.T) {
	m := New(NewPaneRouter(), log.New())

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	err := m.Publish(context.Background(),
		events.New(events.Deposited, account, big.NewInt(1_500_000_000_000_000_000), at),
		events.New(events.Paused, account, nil, at).With("by", "owner"),
	)
	require.NoError(t, err)

	text := m.feed.GetText(true)
	assert.Contains(t, text, "03:04:05")
	assert.Contains(t, text, string(events.Deposited))
	assert.Contains(t, text, account.Hex())
	assert.Contains(t, text, "1.5")
	assert.Contains(t, text, "by=owner")
}
