// Package natsutil provides typed NATS publish/subscribe/request helpers
// with OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

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

// Context returns ctx carrying the trace context found in msg headers.
func Context(ctx context.Context, msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, (*natsHeaderCarrier)(msg))
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return PublishRaw(ctx, nc, subject, data, nil)
}

// PublishRaw publishes data with extra headers and the trace context of ctx.
func PublishRaw(ctx context.Context, nc *nats.Conn, subject string, data []byte, hdr nats.Header) error {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	for k, vs := range hdr {
		for _, v := range vs {
			msg.Header.Add(k, v)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the handler.
// Malformed messages are logged and dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			slog.Warn("natsutil: dropping malformed message", "subject", msg.Subject, "err", err)
			return
		}
		handler(Context(context.Background(), msg), v)
	})
}

// ErrorReply is sent back by Respond when the handler fails.
type ErrorReply struct {
	Error string `json:"error"`
}

// Respond serves request/reply on subject within a queue group. Handler
// errors and malformed requests are answered with an ErrorReply.
func Respond[Req, Resp any](nc *nats.Conn, subject, queue string, handler func(context.Context, Req) (Resp, error)) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if msg.Reply == "" {
			return
		}
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			respondJSON(msg, ErrorReply{Error: "malformed request: " + err.Error()})
			return
		}
		resp, err := handler(Context(context.Background(), msg), req)
		if err != nil {
			respondJSON(msg, ErrorReply{Error: err.Error()})
			return
		}
		respondJSON(msg, resp)
	})
}

func respondJSON(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("natsutil: encode reply", "subject", msg.Subject, "err", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn("natsutil: respond", "subject", msg.Subject, "err", err)
	}
}

// Request sends a JSON-encoded request and decodes the response. The
// deadline of ctx bounds the wait; without one nats.DefaultTimeout applies.
// An ErrorReply from the responder is returned as an error.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	data, err := json.Marshal(req)
	if err != nil {
		return zero, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, err
	}
	var failed ErrorReply
	if json.Unmarshal(resp.Data, &failed) == nil && failed.Error != "" {
		return zero, errors.New(failed.Error)
	}
	var result Resp
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return zero, err
	}
	return result, nil
}
