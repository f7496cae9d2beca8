// Package natsbus publishes task lifecycle events to NATS so downstream
// consumers, billing, cache warmers, notification fanout, can react
// without polling the API.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/phrazzld/atlas-api/internal/events"
)

// Publisher forwards task lifecycle events to subjects derived from the
// event type: <prefix>.queued, <prefix>.succeeded, and so on. A nil
// *Publisher is valid and publishes nothing, which is how a deployment
// without NATS runs.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials the NATS server and returns a Publisher.
func Connect(url, subjectPrefix string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("atlas-api"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", "subject_prefix", subjectPrefix)
	return &Publisher{
		conn:   conn,
		prefix: subjectPrefix,
		logger: logger.With("component", "natsbus"),
	}, nil
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, e *events.TaskEvent) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding task event: %w", err)
	}
	subj := p.subject(e.Type)
	if err := p.conn.Publish(subj, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subj, err)
	}
	return nil
}

// subject maps an event type to its publish subject, dropping the
// "task." namespace the type values carry: task.queued becomes
// <prefix>.queued.
func (p *Publisher) subject(t events.Type) string {
	s := string(t)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return p.prefix + "." + s
}

// Close drains the connection so buffered publishes flush before the
// process exits.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
