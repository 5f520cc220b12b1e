package monitor

import (
	"io"

	"github.com/ubiq/go-ubiq/v3/log"
)

// contextKeys are the logger context keys that name a log pane.
var contextKeys = map[string]struct{}{
	"pkg":    {},
	"module": {},
	"feed":   {},
}

type keyValuePair struct {
	key, value string
}

type LoggerContext []keyValuePair

func (lc LoggerContext) String() (str string) {

	for _, v := range lc {
		if len(str) == 0 {
			str = v.value
		} else {
			str = str + " -> " + v.value
		}
	}

	if str == "" {
		str = "root"
	}
	return
}

// getContext collects the leading naming pairs of a record context.
func getContext(ctx []interface{}) (modules LoggerContext) {

	modules = LoggerContext{}

	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			break
		}
		if _, ok := contextKeys[key]; !ok {
			break
		}
		value, ok := ctx[i+1].(string)
		if !ok {
			break
		}
		modules = append(modules, keyValuePair{key: key, value: value})
	}
	return
}

// hasKey reports whether a record context carries key.
func hasKey(ctx []interface{}, key string) bool {
	for i := 0; i < len(ctx); i += 2 {
		if k, ok := ctx[i].(string); ok && k == key {
			return true
		}
	}
	return false
}

func newPaneHandler(writer io.Writer) log.Handler {
	return log.StreamHandler(writer, log.TerminalFormat(false))
}
