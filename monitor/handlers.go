package monitor

import (
	"sync"

	"github.com/rivo/tview"
	"github.com/ubiq/go-ubiq/v3/log"
)

const (
	newPaneBuffer = 64

	alertsPane    = "alerts"
	transfersPane = "transfers"
)

// PaneRouter is a log.Handler writing every record to the pane of its logger
// context. Warnings and errors from any component are copied to the alerts
// pane, and records about a transaction to the transfers pane, so pending
// withdrawals, settlements and crawled deposits read as one stream.
type PaneRouter struct {
	mu    sync.Mutex
	panes map[string]log.Handler
	ch    chan *tview.TextView
}

func NewPaneRouter() *PaneRouter {
	return &PaneRouter{
		panes: make(map[string]log.Handler),
		ch:    make(chan *tview.TextView, newPaneBuffer),
	}
}

// Panes delivers a view the first time a pane gets a record.
func (h *PaneRouter) Panes() <-chan *tview.TextView {
	return h.ch
}

func (h *PaneRouter) Log(r *log.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.pane(getContext(r.Ctx).String()).Log(r); err != nil {
		return err
	}

	if r.Lvl <= log.LvlWarn {
		if err := h.pane(alertsPane).Log(r); err != nil {
			return err
		}
	}

	if hasKey(r.Ctx, "tx") {
		return h.pane(transfersPane).Log(r)
	}

	return nil
}

// pane returns the handler of the named pane, creating its view on first use.
// A view that cannot be delivered is never shown, so its records are dropped.
// h.mu must be held.
func (h *PaneRouter) pane(name string) log.Handler {
	if handler, ok := h.panes[name]; ok {
		return handler
	}

	view := tview.NewTextView()
	view.SetTitle(name)

	handler := newPaneHandler(view)
	select {
	case h.ch <- view:
	default:
		handler = log.DiscardHandler()
	}

	h.panes[name] = handler
	return handler
}
