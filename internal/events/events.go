// Package events publishes order state changes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to the event type, e.g. "orders.order_placed".
const SubjectPrefix = "orders."

// Publisher sends order events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher publishes each event as JSON on SubjectPrefix+type.
type NATSPublisher struct {
	conn natsConn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := nats.NewMsg(SubjectPrefix + string(event.Type))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set(nats.MsgIdHdr, event.OrderID.String()+":"+string(event.Type)+":"+event.OccurredAt.Format(time.RFC3339Nano))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// NopPublisher drops every event. Used when NATS_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }
