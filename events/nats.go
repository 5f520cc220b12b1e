package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/ubiq/go-ubiq/v3/log"
)

type NatsConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	ReconnectWait string `json:"reconnectWait"`
	MaxReconnects int    `json:"maxReconnects"`
}

const flushTimeout = 2 * time.Second

// NatsPublisher forwards events to the off-chain indexer, one message per
// event on <subject>.<type>.
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
	logger  log.Logger
}

func DialNats(cfg *NatsConfig, logger log.Logger) (*NatsPublisher, error) {
	wait := 2 * time.Second
	if cfg.ReconnectWait != "" {
		d, err := time.ParseDuration(cfg.ReconnectWait)
		if err != nil {
			return nil, fmt.Errorf("nats reconnect wait: %w", err)
		}
		wait = d
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(wait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return NewNatsPublisher(conn, cfg.Subject, logger), nil
}

func NewNatsPublisher(conn *nats.Conn, subject string, logger log.Logger) *NatsPublisher {
	if subject == "" {
		subject = "stakegate"
	}
	return &NatsPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *NatsPublisher) Subject(t Type) string {
	return p.subject + "." + strings.ToLower(string(t))
}

func (p *NatsPublisher) Publish(ctx context.Context, evs ...Event) error {
	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		if err := p.conn.Publish(p.Subject(ev.Type), payload); err != nil {
			return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
		}
	}

	if _, ok := ctx.Deadline(); ok {
		return p.conn.FlushWithContext(ctx)
	}
	return p.conn.FlushTimeout(flushTimeout)
}

func (p *NatsPublisher) Close() {
	p.conn.Close()
}
