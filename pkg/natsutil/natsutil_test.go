package natsutil

import (
	"context"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type question struct {
	Text string `json:"text"`
}

type answer struct {
	Words int `json:"words"`
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)
	if got := carrier.Get("missing"); got != "" || carrier.Keys() != nil {
		t.Fatalf("empty carrier: %q %v", got, carrier.Keys())
	}

	carrier.Set("traceparent", "00-abc-def-01")
	carrier.Set("traceparent", "00-abc-def-02")
	if got := carrier.Get("traceparent"); got != "00-abc-def-02" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestPublishSubscribe(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan question, 1)
	sub, err := Subscribe(nc, "test.sub", func(_ context.Context, q question) { ch <- q })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	// malformed first; it must be dropped without reaching the handler
	if err := nc.Publish("test.sub", []byte("{bad")); err != nil {
		t.Fatal(err)
	}
	if err := Publish(context.Background(), nc, "test.sub", question{Text: "peace"}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ch:
		if got.Text != "peace" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}

func TestPublishRawKeepsHeaders(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("test.raw", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	hdr := nats.Header{}
	hdr.Set("X-Retry-Count", "2")
	if err := PublishRaw(context.Background(), nc, "test.raw", []byte(`{}`), hdr); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-ch:
		if msg.Header.Get("X-Retry-Count") != "2" || string(msg.Data) != "{}" {
			t.Fatalf("msg = %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}

func TestRespondRequest(t *testing.T) {
	nc := startTestNATS(t)

	sub, err := Respond(nc, "test.analyze", "workers", func(_ context.Context, q question) (answer, error) {
		if q.Text == "" {
			return answer{}, errors.New("empty question")
		}
		return answer{Words: len(q.Text)}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := Request[question, answer](ctx, nc, "test.analyze", question{Text: "peace"})
	if err != nil || got.Words != 5 {
		t.Fatalf("got %+v err=%v", got, err)
	}

	_, err = Request[question, answer](context.Background(), nc, "test.analyze", question{})
	if err == nil || err.Error() != "empty question" {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestRequestNoResponders(t *testing.T) {
	nc := startTestNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Request[question, answer](ctx, nc, "test.nobody", question{Text: "x"}); err == nil {
		t.Fatal("expected error without responders")
	}
}
