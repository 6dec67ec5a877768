// Package rag answers questions in prose. It retrieves evidence with the
// search engine, optionally adds region membership from the graph, builds
// a cited prompt and asks a completion model for the final answer.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/engine/enrich"
	"github.com/WessleyAI/unga-engine/engine/search"
	"github.com/WessleyAI/unga-engine/pkg/llm"
)

// Analyzer retrieves and enriches evidence for a question.
type Analyzer interface {
	Analyze(ctx context.Context, question string) search.Response
}

// RegionLister lists the countries the graph links to a region.
type RegionLister interface {
	RegionCountries(ctx context.Context, region string) ([]string, error)
}

// Options configures the pipeline.
type Options struct {
	// TopK is how many enriched results become evidence blocks.
	TopK         int
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	UseGraph     bool
	// GraphTimeout bounds region lookups.
	GraphTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:         5,
		Temperature:  0.3,
		MaxTokens:    1024,
		SystemPrompt: defaultSystemPrompt,
		UseGraph:     true,
		GraphTimeout: 2 * time.Second,
	}
}

const defaultSystemPrompt = `You are an analyst of United Nations General Assembly debates.
Answer the question using ONLY the numbered speech excerpts provided. If they
do not contain enough information, say so. Cite excerpts as [n].`

// Service is the answer pipeline.
type Service struct {
	analyzer Analyzer
	llm      llm.Completer
	regions  RegionLister
	opts     Options
	logger   *slog.Logger
}

// New creates a Service. regions may be nil.
func New(analyzer Analyzer, completer llm.Completer, regions RegionLister, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.GraphTimeout <= 0 {
		opts.GraphTimeout = DefaultOptions().GraphTimeout
	}
	return &Service{analyzer: analyzer, llm: completer, regions: regions, opts: opts, logger: logger}
}

// Answer is the prose answer together with the retrieval it was built on.
type Answer struct {
	Text       string          `json:"text"`
	Sources    []Source        `json:"sources"`
	TokensUsed int             `json:"tokens_used"`
	Model      string          `json:"model,omitempty"`
	Retrieval  search.Response `json:"retrieval"`
}

// Source is a citation backing the answer. N matches the [n] marker.
type Source struct {
	N         int     `json:"n"`
	SpeechID  string  `json:"speech_id"`
	Citation  string  `json:"citation"`
	Relevance float64 `json:"relevance_score"`
}

// Ask runs the pipeline for one question. When retrieval yields no
// evidence the model is not called and the answer carries the engine's
// summary. A completion error is returned together with the answer so the
// retrieval remains available to the caller.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	resp := s.analyzer.Analyze(ctx, question)
	ans := &Answer{Retrieval: resp, Sources: []Source{}}

	evidence := resp.Results
	if len(evidence) > s.opts.TopK {
		evidence = evidence[:s.opts.TopK]
	}
	if len(evidence) == 0 || s.llm == nil {
		ans.Text = resp.Summary
		s.logger.Info("rag: answered from summary", "results", resp.TotalFound, "llm", s.llm != nil)
		return ans, nil
	}

	for i, r := range evidence {
		ans.Sources = append(ans.Sources, Source{
			N:         i + 1,
			SpeechID:  r.Speech.ID,
			Citation:  r.Citation,
			Relevance: r.Relevance,
		})
	}

	var graphContext string
	if s.opts.UseGraph && s.regions != nil {
		graphContext = s.regionContext(ctx, resp.Analysis.Entities.Regions)
	}

	reply, err := s.llm.Complete(ctx, llm.Request{
		System:      s.opts.SystemPrompt,
		Prompt:      buildPrompt(question, evidence, graphContext),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		ans.Text = resp.Summary
		return ans, fmt.Errorf("rag: complete: %w", err)
	}
	ans.Text = reply.Text
	ans.TokensUsed = reply.TokensUsed
	ans.Model = reply.Model
	s.logger.Info("rag: answered", "sources", len(ans.Sources), "tokens", reply.TokensUsed, "model", reply.Model)
	return ans, nil
}

// regionContext lists member countries for the mentioned regions. Lookup
// failures are logged and skipped.
func (s *Service) regionContext(ctx context.Context, labels []string) string {
	regions := domain.ExpandRegions(labels)
	if len(regions) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.GraphTimeout)
	defer cancel()

	var b strings.Builder
	for _, r := range regions {
		codes, err := s.regions.RegionCountries(ctx, r)
		if err != nil {
			s.logger.Warn("rag: region lookup failed, continuing without", "region", r, "err", err)
			continue
		}
		if len(codes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", r, strings.Join(codes, ", "))
	}
	if b.Len() == 0 {
		return ""
	}
	return "Countries with speeches in the corpus, by region:\n" + b.String()
}

func buildPrompt(question string, evidence []enrich.Result, graphContext string) string {
	var b strings.Builder
	b.WriteString("Speech excerpts:\n\n")
	for i, r := range evidence {
		b.WriteString(enrich.Block(i+1, r))
		b.WriteString("\n")
	}
	if graphContext != "" {
		b.WriteString(graphContext)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
