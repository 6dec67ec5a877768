// Package config loads process configuration. Values are layered:
// built-in defaults, then an optional YAML file, then environment
// variables (a .env file in the working directory is loaded first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend and provider names.
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
	BackendMemory = "memory"

	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config is the full process configuration.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	Corpus CorpusConfig `yaml:"corpus"`
	Qdrant QdrantConfig `yaml:"qdrant"`
	Neo4j  Neo4jConfig  `yaml:"neo4j"`
	NATS   NATSConfig   `yaml:"nats"`
	Models ModelsConfig `yaml:"models"`
	Ingest IngestConfig `yaml:"ingest"`
}

type HTTPConfig struct {
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`
	CORSOrigin  string `yaml:"cors_origin"`
}

// CorpusConfig selects the primary store.
type CorpusConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// QdrantConfig enables the vector index when Addr is set.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
	Dims       int    `yaml:"dims"`
}

type Neo4jConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// NATSConfig enables the ingest consumer and the analyze responder when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// ModelsConfig selects the embedding and completion providers.
type ModelsConfig struct {
	Embedder     string        `yaml:"embedder"`
	LLM          string        `yaml:"llm"`
	OllamaURL    string        `yaml:"ollama_url"`
	EmbedModel   string        `yaml:"embed_model"`
	ChatModel    string        `yaml:"chat_model"`
	OpenAIKey    string        `yaml:"-"`
	OpenAIURL    string        `yaml:"openai_url"`
	LoadTimeout  time.Duration `yaml:"load_timeout"`
	EmbedRPS     float64       `yaml:"embed_rps"`
	EmbedBurst   int           `yaml:"embed_burst"`
	AnswerTopK   int           `yaml:"answer_top_k"`
	AnswerTokens int           `yaml:"answer_tokens"`
}

type IngestConfig struct {
	Dir        string `yaml:"dir"`
	Watch      bool   `yaml:"watch"`
	Workers    int    `yaml:"workers"`
	LedgerPath string `yaml:"ledger_path"`
	MaxRetries int    `yaml:"max_retries"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:   HTTPConfig{Port: "8080", MetricsPort: "9090", CORSOrigin: "*"},
		Corpus: CorpusConfig{Backend: BackendSQLite, SQLitePath: "unga_speeches.db"},
		Qdrant: QdrantConfig{Collection: "unga_speeches", Dims: 768},
		Neo4j:  Neo4jConfig{User: "neo4j"},
		Models: ModelsConfig{
			Embedder:     ProviderNone,
			LLM:          ProviderNone,
			OllamaURL:    "http://localhost:11434",
			EmbedModel:   "nomic-embed-text",
			ChatModel:    "llama3",
			LoadTimeout:  30 * time.Second,
			EmbedRPS:     5,
			EmbedBurst:   5,
			AnswerTopK:   5,
			AnswerTokens: 1024,
		},
		Ingest: IngestConfig{Dir: "data", Workers: 4, LedgerPath: "ingest-ledger", MaxRetries: 3},
	}
}

// Load builds the configuration. The YAML file named by UNGA_CONFIG is
// optional; a missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("UNGA_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTP.Port = envOr("PORT", c.HTTP.Port)
	c.HTTP.MetricsPort = envOr("METRICS_PORT", c.HTTP.MetricsPort)
	c.HTTP.CORSOrigin = envOr("CORS_ORIGIN", c.HTTP.CORSOrigin)

	c.Corpus.Backend = envOr("CORPUS_BACKEND", c.Corpus.Backend)
	c.Corpus.SQLitePath = envOr("SQLITE_PATH", c.Corpus.SQLitePath)

	c.Qdrant.Addr = envOr("QDRANT_ADDR", c.Qdrant.Addr)
	c.Qdrant.Collection = envOr("QDRANT_COLLECTION", c.Qdrant.Collection)
	c.Qdrant.Dims = envInt("QDRANT_DIMS", c.Qdrant.Dims)

	c.Neo4j.URL = envOr("NEO4J_URL", c.Neo4j.URL)
	c.Neo4j.User = envOr("NEO4J_USER", c.Neo4j.User)
	c.Neo4j.Password = envOr("NEO4J_PASS", c.Neo4j.Password)

	c.NATS.URL = envOr("NATS_URL", c.NATS.URL)

	c.Models.Embedder = envOr("EMBEDDER", c.Models.Embedder)
	c.Models.LLM = envOr("LLM", c.Models.LLM)
	c.Models.OllamaURL = envOr("OLLAMA_URL", c.Models.OllamaURL)
	c.Models.EmbedModel = envOr("EMBED_MODEL", c.Models.EmbedModel)
	c.Models.ChatModel = envOr("CHAT_MODEL", c.Models.ChatModel)
	c.Models.OpenAIKey = envOr("OPENAI_API_KEY", c.Models.OpenAIKey)
	c.Models.OpenAIURL = envOr("OPENAI_BASE_URL", c.Models.OpenAIURL)
	c.Models.LoadTimeout = envDuration("EMBEDDER_LOAD_TIMEOUT", c.Models.LoadTimeout)
	c.Models.EmbedRPS = envFloat("EMBED_RPS", c.Models.EmbedRPS)

	c.Ingest.Dir = envOr("INGEST_DIR", c.Ingest.Dir)
	c.Ingest.Workers = envInt("INGEST_WORKERS", c.Ingest.Workers)
	c.Ingest.LedgerPath = envOr("INGEST_LEDGER", c.Ingest.LedgerPath)
	c.Ingest.MaxRetries = envInt("INGEST_MAX_RETRIES", c.Ingest.MaxRetries)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Corpus.Backend {
	case BackendSQLite:
		if c.Corpus.SQLitePath == "" {
			return fmt.Errorf("config: sqlite backend needs sqlite_path")
		}
	case BackendNeo4j:
		if c.Neo4j.URL == "" {
			return fmt.Errorf("config: neo4j backend needs NEO4J_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown corpus backend %q", c.Corpus.Backend)
	}
	for name, p := range map[string]string{"embedder": c.Models.Embedder, "llm": c.Models.LLM} {
		switch p {
		case ProviderNone, ProviderOllama:
		case ProviderOpenAI:
			if c.Models.OpenAIKey == "" {
				return fmt.Errorf("config: %s openai needs OPENAI_API_KEY", name)
			}
		default:
			return fmt.Errorf("config: unknown %s provider %q", name, p)
		}
	}
	if c.Qdrant.Addr != "" && c.Qdrant.Dims <= 0 {
		return fmt.Errorf("config: qdrant dims must be positive, got %d", c.Qdrant.Dims)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("config: ingest workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.MaxRetries < 0 {
		return fmt.Errorf("config: ingest max_retries must not be negative")
	}
	if c.Models.EmbedRPS < 0 {
		return fmt.Errorf("config: embed_rps must not be negative (0 disables throttling)")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
