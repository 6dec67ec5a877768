// Package main implements the UNGA speech query API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/unga-engine/engine/app"
	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/engine/rag"
	"github.com/WessleyAI/unga-engine/engine/search"
	"github.com/WessleyAI/unga-engine/pkg/config"
	"github.com/WessleyAI/unga-engine/pkg/metrics"
	"github.com/WessleyAI/unga-engine/pkg/mid"
)

// maxBodyBytes caps request bodies; questions are short.
const maxBodyBytes = 64 << 10

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	// --- Corpus store and vector index ---
	stores, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer stores.Close(context.Background())

	// --- Engine and synthesis ---
	opts := search.DefaultOptions()
	opts.Metrics = met
	opts.Logger = logger
	engine := app.NewEngine(ctx, cfg, stores, opts)

	completer, err := app.Completer(cfg)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	ragOpts := rag.DefaultOptions()
	ragOpts.TopK = cfg.Models.AnswerTopK
	ragOpts.MaxTokens = cfg.Models.AnswerTokens
	var regions rag.RegionLister
	if stores.Graph != nil {
		regions = stores.Graph
	}
	ragSvc := rag.New(engine, completer, regions, ragOpts, logger)

	// --- NATS analyze responder ---
	nc, err := app.ConnectNATS(cfg, "unga-api", logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Drain()
		if _, err := search.Serve(nc, engine, ""); err != nil {
			return fmt.Errorf("serve %s: %w", search.AnalyzeSubject, err)
		}
		logger.Info("answering analyze requests over nats", "subject", search.AnalyzeSubject)
	}

	// --- HTTP server ---
	mux := newMux(engine, ragSvc, stores.Corpus, logger)
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.WithRequestID(),
		mid.Logger(logger),
		mid.Metrics(met),
		mid.CORS(cfg.HTTP.CORSOrigin),
		mid.MaxBody(maxBodyBytes),
		mid.OTel("unga-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.HTTP.Port, "backend", cfg.Corpus.Backend,
			"degraded", engine.Degraded(), "llm", cfg.Models.LLM)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

type analyzer interface {
	Analyze(ctx context.Context, question string) search.Response
	Degraded() bool
}

type asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

type summarizer interface {
	Summary(ctx context.Context) (domain.CorpusSummary, error)
}

func newMux(a analyzer, ask asker, sum summarizer, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth(a))
	mux.HandleFunc("POST /api/analyze", handleAnalyze(a))
	mux.HandleFunc("POST /api/ask", handleAsk(ask, logger))
	mux.HandleFunc("GET /api/summary", handleSummary(sum, logger))
	return mux
}

// HealthResponse is the JSON response for GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Degraded bool   `json:"degraded"`
}

func handleHealth(a analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mid.JSON(w, http.StatusOK, HealthResponse{Status: "ok", Degraded: a != nil && a.Degraded()})
	}
}

// QuestionRequest is the JSON body for POST /api/analyze and POST /api/ask.
type QuestionRequest struct {
	Question string `json:"question"`
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mid.Error(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if err := domain.ValidateQuestion(req.Question); err != nil {
		mid.Error(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return req.Question, true
}

// handleAnalyze always answers 200 once the question is valid; an empty or
// failed retrieval is described by the response's summary and flags.
func handleAnalyze(a analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := decodeQuestion(w, r)
		if !ok {
			return
		}
		mid.JSON(w, http.StatusOK, a.Analyze(r.Context(), q))
	}
}

func handleAsk(ask asker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := decodeQuestion(w, r)
		if !ok {
			return
		}
		answer, err := ask.Ask(r.Context(), q)
		if err != nil {
			logger.Error("ask failed", "err", err)
			if answer == nil {
				mid.Error(w, http.StatusInternalServerError, "internal server error")
				return
			}
			// The retrieval is still useful without the synthesis.
			mid.JSON(w, http.StatusBadGateway, answer)
			return
		}
		mid.JSON(w, http.StatusOK, answer)
	}
}

func handleSummary(sum summarizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sum.Summary(r.Context())
		if err != nil {
			logger.Error("summary failed", "err", err)
			mid.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		mid.JSON(w, http.StatusOK, s)
	}
}
