// Package natsutil provides typed NATS publish helpers with OpenTelemetry
// trace propagation.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NewMsg serializes v as JSON into a message for the given subject, with
// trace context from ctx injected into the headers.
func NewMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := NewMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Extract returns a context carrying any trace parent found in the
// message headers.
func Extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
}
