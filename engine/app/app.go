// Package app builds the engine's collaborators from configuration: the
// corpus store, the optional Qdrant index, the embedding and completion
// providers and the NATS connection. Every binary wires itself through here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/unga-engine/engine/corpus"
	"github.com/WessleyAI/unga-engine/engine/corpus/memory"
	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/engine/graph"
	"github.com/WessleyAI/unga-engine/engine/ingest"
	"github.com/WessleyAI/unga-engine/engine/retrieval"
	"github.com/WessleyAI/unga-engine/engine/search"
	"github.com/WessleyAI/unga-engine/engine/semantic"
	"github.com/WessleyAI/unga-engine/pkg/config"
	"github.com/WessleyAI/unga-engine/pkg/llm"
	"github.com/WessleyAI/unga-engine/pkg/ollama"
	"github.com/WessleyAI/unga-engine/pkg/openai"
)

// Records is a primary corpus store that can also be backfilled.
type Records interface {
	corpus.Primary
	ingest.EmbeddingStore
}

// Corpus is what the engine and the ingest pipeline talk to.
type Corpus interface {
	retrieval.Store
	ingest.Sink
	Summary(ctx context.Context) (domain.CorpusSummary, error)
}

// Stores holds the opened backends. Close releases all of them.
type Stores struct {
	// Corpus routes similarity queries to Index when one is configured.
	Corpus Corpus
	// Records is the primary store behind Corpus.
	Records Records
	// Index is nil unless Qdrant is configured.
	Index *semantic.Index
	// Graph is nil unless the neo4j backend is selected.
	Graph *graph.Store

	closers []func(context.Context) error
}

// Close closes every backend in reverse opening order.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects the configured corpus backend and, when QDRANT_ADDR is
// set, the vector index in front of it.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stores{}

	switch cfg.Corpus.Backend {
	case config.BackendSQLite:
		db, err := corpus.Open(cfg.Corpus.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
		s.Records = db
	case config.BackendNeo4j:
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Password, ""))
		if err != nil {
			return nil, fmt.Errorf("app: neo4j driver: %w", err)
		}
		s.closers = append(s.closers, driver.Close)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("app: neo4j verify: %w", err)
		}
		g := graph.New(driver)
		dims := 0
		if cfg.Qdrant.Addr == "" {
			dims = cfg.Qdrant.Dims
		}
		if err := g.EnsureSchema(ctx, dims); err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.Records, s.Graph = g, g
		logger.Info("app: connected to neo4j", "url", cfg.Neo4j.URL)
	case config.BackendMemory:
		s.Records = memory.New()
	default:
		return nil, fmt.Errorf("app: unknown corpus backend %q", cfg.Corpus.Backend)
	}
	s.Corpus = s.Records

	if cfg.Qdrant.Addr != "" {
		idx, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return idx.Close() })
		if err := idx.EnsureCollection(ctx, cfg.Qdrant.Dims); err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.Index = idx
		s.Corpus = corpus.NewIndexed(s.Records, idx, logger)
		logger.Info("app: vector index ready", "collection", cfg.Qdrant.Collection, "dims", cfg.Qdrant.Dims)
	}
	return s, nil
}

// EmbedderLoader returns the loader for the configured embedding provider,
// or nil when embeddings are disabled. The loader fails when the provider
// does not answer, which leaves the engine in degraded mode.
func EmbedderLoader(cfg config.Config) search.EmbedderLoader {
	switch cfg.Models.Embedder {
	case config.ProviderOllama:
		return func(ctx context.Context) (retrieval.Embedder, error) {
			c := ollama.New(cfg.Models.OllamaURL, cfg.Models.EmbedModel, cfg.Models.ChatModel)
			if err := c.Ping(ctx); err != nil {
				return nil, err
			}
			return c, nil
		}
	case config.ProviderOpenAI:
		return func(context.Context) (retrieval.Embedder, error) {
			c, err := openaiClient(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	default:
		return nil
	}
}

// Embedder loads the configured embedding provider for ingestion. It
// returns nil, nil when embeddings are disabled.
func Embedder(ctx context.Context, cfg config.Config) (llm.Embedder, error) {
	load := EmbedderLoader(cfg)
	if load == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Models.LoadTimeout)
	defer cancel()
	return load(ctx)
}

// Completer returns the configured completion provider, or nil when
// synthesis is disabled.
func Completer(cfg config.Config) (llm.Completer, error) {
	switch cfg.Models.LLM {
	case config.ProviderOllama:
		return ollama.New(cfg.Models.OllamaURL, cfg.Models.EmbedModel, cfg.Models.ChatModel), nil
	case config.ProviderOpenAI:
		c, err := openaiClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, nil
	}
}

func openaiClient(cfg config.Config) (*openai.Client, error) {
	return openai.New(openai.Config{
		APIKey:    cfg.Models.OpenAIKey,
		BaseURL:   cfg.Models.OpenAIURL,
		ChatModel: openaiChatModel(cfg),
		Timeout:   time.Minute,
	})
}

// openaiChatModel keeps the Ollama default model name away from OpenAI.
func openaiChatModel(cfg config.Config) string {
	if cfg.Models.ChatModel == config.Default().Models.ChatModel {
		return ""
	}
	return cfg.Models.ChatModel
}

// ConnectNATS connects when NATS_URL is set; it returns nil, nil otherwise.
func ConnectNATS(cfg config.Config, name string, logger *slog.Logger) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("app: nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("app: nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("app: nats connect %s: %w", cfg.NATS.URL, err)
	}
	return nc, nil
}

// NewEngine builds the query engine over stores.
func NewEngine(ctx context.Context, cfg config.Config, stores *Stores, opts search.Options) *search.Engine {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = cfg.Models.LoadTimeout
	}
	return search.New(ctx, stores.Corpus, EmbedderLoader(cfg), opts)
}
