// Package notify publishes document lifecycle events for the external
// delivery service. Publishing is best effort: failures are logged and never
// reach the caller.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docsign/internal/logger"

	"github.com/nats-io/nats.go"
)

const EventDocumentSent = "document_sent"

// Publisher receives lifecycle events.
type Publisher interface {
	PublishDocumentSent(ctx context.Context, ev DocumentSent)
	Close()
}

// DocumentSent is the JSON payload published when a document is marked sent.
type DocumentSent struct {
	EventType      string    `json:"event_type"`
	DocumentID     string    `json:"document_id"`
	Title          string    `json:"title"`
	SentTo         string    `json:"sent_to"`
	SentAt         time.Time `json:"sent_at"`
	Actor          string    `json:"actor"`
	ValidationCode string    `json:"validation_code,omitempty"`
}

// NATSPublisher publishes events on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	log     *logger.Logger
}

// NewNATSPublisher connects to url. The connection reconnects on its own;
// publishes during an outage are buffered by the client.
func NewNATSPublisher(url, subject string, log *logger.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("docsign"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject, log: log}, nil
}

func (p *NATSPublisher) PublishDocumentSent(ctx context.Context, ev DocumentSent) {
	if p == nil || p.nc == nil {
		return
	}
	if ev.EventType == "" {
		ev.EventType = EventDocumentSent
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("notification: failed to marshal event", "error", err, "document_id", ev.DocumentID)
		return
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Event-Type", ev.EventType)
	if err := p.nc.PublishMsg(msg); err != nil {
		p.log.Warn("notification: failed to publish event (non-fatal)",
			"error", err,
			"subject", p.subject,
			"document_id", ev.DocumentID,
		)
		return
	}

	p.log.Debug("notification: event published", "subject", p.subject, "document_id", ev.DocumentID)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Nop discards every event. Used when NATS_URL is not configured.
type Nop struct{}

func (Nop) PublishDocumentSent(context.Context, DocumentSent) {}
func (Nop) Close()                                             {}
