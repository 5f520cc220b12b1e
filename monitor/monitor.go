package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/events"
	"github.com/octanolabs/go-stakegate/util"
)

const eventsPage = "events"

// Monitor is a terminal UI with the live event feed and one log pane per
// logger context. It doubles as an events.Sink.
type Monitor struct {
	handler    *PaneRouter
	newLoggers <-chan *tview.TextView
	loggers    map[string]*tview.TextView
	feed       *tview.TextView
	uiLogger   log.Logger
}

func New(handler *PaneRouter, logger log.Logger) *Monitor {
	feed := tview.NewTextView().SetDynamicColors(true)
	feed.SetTitle(eventsPage).SetBorder(true)

	return &Monitor{
		handler:    handler,
		newLoggers: handler.Panes(),
		loggers:    map[string]*tview.TextView{eventsPage: feed},
		feed:       feed,
		uiLogger:   logger,
	}
}

// Publish appends events to the feed pane.
func (m *Monitor) Publish(ctx context.Context, evs ...events.Event) error {
	for _, ev := range evs {
		if _, err := fmt.Fprintln(m.feed, FormatEvent(ev)); err != nil {
			return err
		}
	}
	return nil
}

func FormatEvent(ev events.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s [yellow]%-20s[white] %s", ev.Time.Format("15:04:05"), ev.Type, ev.Account.Hex())

	if ev.Amount != nil {
		fmt.Fprintf(&b, " %s", util.FromWei(ev.Amount))
	}

	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, ev.Data[k])
	}

	return b.String()
}

// Run blocks until the UI exits.
func (m *Monitor) Run() error {

	app := tview.NewApplication()

	grid := tview.NewGrid().
		SetColumns(-5, -14)

	pages := tview.NewPages()

	root := tview.NewTreeNode("stakegate").
		SetColor(tcell.ColorRed)
	tree := tview.NewTreeView().
		SetRoot(root).
		SetCurrentNode(root)

	show := func(name string) {
		view, ok := m.loggers[name]
		if !ok {
			return
		}

		if !view.HasFocus() {
			app.SetFocus(view)
		}

		pages.SwitchToPage(name)
	}

	tree.SetSelectedFunc(func(node *tview.TreeNode) {
		show(node.GetText())
	})

	addPage := func(name string, view *tview.TextView) {
		root.AddChild(tview.NewTreeNode(name))

		view.SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEscape {
				app.SetFocus(tree)
			}
		})

		view.SetChangedFunc(func() {
			app.Draw()
		})

		frame := tview.NewFrame(view).AddText("ESC returns to the tree; arrows scroll", false, tview.AlignCenter, tcell.ColorWhite)

		pages.AddPage(name, frame, true, false)
	}

	addPage(eventsPage, m.feed)
	pages.SwitchToPage(eventsPage)

	grid.
		AddItem(tview.NewFrame(tree), 0, 0, 1, 1, 0, 0, false).
		AddItem(pages, 0, 1, 1, 1, 0, 0, false)

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case view := <-m.newLoggers:
				name := view.GetTitle()

				app.QueueUpdateDraw(func() {
					m.loggers[name] = view
					view.SetBorder(true)
					addPage(name, view)
				})
			case <-done:
				return
			}
		}
	}()

	m.uiLogger.Debug("starting monitor")

	return app.SetRoot(grid, true).SetFocus(tree).Run()
}
