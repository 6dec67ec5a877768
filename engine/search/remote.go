package search

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/natsutil"
)

// AnalyzeSubject is the NATS request/reply subject served by Serve.
const AnalyzeSubject = "unga.analyze"

// AnalyzeRequest is the body of an analyze request.
type AnalyzeRequest struct {
	Question string `json:"question"`
}

// Serve answers analyze requests on AnalyzeSubject within queue so that
// several API replicas share the load.
func Serve(nc *nats.Conn, e *Engine, queue string) (*nats.Subscription, error) {
	if queue == "" {
		queue = "unga-analyze"
	}
	return natsutil.Respond(nc, AnalyzeSubject, queue, func(ctx context.Context, req AnalyzeRequest) (Response, error) {
		if strings.TrimSpace(req.Question) == "" {
			return Response{}, domain.ErrEmptyQuestion
		}
		return e.Analyze(ctx, req.Question), nil
	})
}

// Remote sends question to an engine served over NATS.
func Remote(ctx context.Context, nc *nats.Conn, question string) (Response, error) {
	return natsutil.Request[AnalyzeRequest, Response](ctx, nc, AnalyzeSubject, AnalyzeRequest{Question: question})
}
