package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/natsutil"
)

// ConsumerOpts configures StartConsumer.
type ConsumerOpts struct {
	// MaxRetries is the delivery count after which a document goes to the DLQ.
	MaxRetries int
	// Queue is the queue group shared by ingest workers.
	Queue  string
	Logger *slog.Logger
}

// Ack is the reply sent to producers that used request/reply.
type Ack struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DeadLetter is published to DLQSubject on permanent failure.
type DeadLetter struct {
	Document Document `json:"document"`
	Error    string   `json:"error"`
	Retries  int      `json:"retries"`
}

// StartConsumer subscribes to IngestSubject and runs every document through
// the pipeline. Transient failures are republished with an incremented
// RetryHeader; validation failures and exhausted retries go to DLQSubject.
func StartConsumer(nc *nats.Conn, p *Pipeline, opts ConsumerOpts) (*nats.Subscription, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Queue == "" {
		opts.Queue = "unga-ingest"
	}

	return nc.QueueSubscribe(IngestSubject, opts.Queue, func(msg *nats.Msg) {
		var doc Document
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			log.Error("ingest: unmarshal failed", "err", err)
			reply(msg, Ack{Status: "failed", Error: err.Error()}, log)
			return
		}
		ctx := natsutil.Context(context.Background(), msg)

		retries := 0
		if msg.Header != nil {
			retries, _ = strconv.Atoi(msg.Header.Get(RetryHeader))
		}

		s, err := p.Ingest(ctx, doc)
		if err == nil {
			reply(msg, Ack{ID: s.ID, Status: "stored"}, log)
			return
		}
		if isBenign(err) {
			reply(msg, Ack{Status: status(err)}, log)
			return
		}

		retries++
		log.Error("ingest: pipeline failed", "err", err, "file", doc.Filename, "retry", retries)

		var verr *domain.ValidationError
		if errors.As(err, &verr) || retries >= opts.MaxRetries {
			dead := DeadLetter{Document: doc, Error: err.Error(), Retries: retries}
			if err := natsutil.Publish(ctx, nc, DLQSubject, dead); err != nil {
				log.Error("ingest: DLQ publish failed", "err", err)
			}
		} else {
			hdr := nats.Header{}
			hdr.Set(RetryHeader, strconv.Itoa(retries))
			if err := natsutil.PublishRaw(ctx, nc, IngestSubject, msg.Data, hdr); err != nil {
				log.Error("ingest: retry publish failed", "err", err)
			}
		}
		reply(msg, Ack{Status: "failed", Error: err.Error()}, log)
	})
}

// WatchDeadLetters calls fn for every document parked on DLQSubject.
func WatchDeadLetters(nc *nats.Conn, fn func(context.Context, DeadLetter)) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, DLQSubject, fn)
}

// Submit sends doc to the ingest workers and waits for their Ack.
func Submit(ctx context.Context, nc *nats.Conn, doc Document) (Ack, error) {
	return natsutil.Request[Document, Ack](ctx, nc, IngestSubject, doc)
}

func reply(msg *nats.Msg, ack Ack, log *slog.Logger) {
	if msg.Reply == "" {
		return
	}
	data, _ := json.Marshal(ack)
	if err := msg.Respond(data); err != nil {
		log.Warn("ingest: reply failed", "err", err)
	}
}
