package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/unga-engine/engine/app"
	"github.com/WessleyAI/unga-engine/engine/ingest"
	"github.com/WessleyAI/unga-engine/engine/rag"
	"github.com/WessleyAI/unga-engine/engine/search"
	"github.com/WessleyAI/unga-engine/pkg/config"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
)

// options are the global flags.
type options struct {
	format  string
	verbose bool
	remote  bool
	timeout time.Duration
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "unga",
		Short: "Query UN General Assembly speeches",
		Long: `unga answers natural-language questions about UN General Assembly
speeches (1946 to present) with ranked, cited excerpts.

Configuration comes from UNGA_CONFIG (YAML), a .env file and the
environment; see CORPUS_BACKEND, SQLITE_PATH, QDRANT_ADDR, EMBEDDER, LLM.

Examples:
  unga analyze "How has China's focus on climate change evolved over the past decade?"
  unga ask "What did Kenya say about peace in 1999?"
  unga ingest ./data
  unga summary`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.format, "format", "text", "output format: text or json")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall deadline")

	analyze := newAnalyzeCmd(opts)
	analyze.Flags().BoolVar(&opts.remote, "remote", false, "send the question to an API server over NATS")
	root.AddCommand(analyze, newAskCmd(opts), newIngestCmd(opts), newSummaryCmd(opts))
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *options) validate() error {
	if o.format != "text" && o.format != "json" {
		return fmt.Errorf("--format must be text or json, got %q", o.format)
	}
	return nil
}

// session holds everything a command needs; close releases it.
type session struct {
	cfg    config.Config
	stores *app.Stores
	engine *search.Engine
	logger *slog.Logger
}

func (o *options) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := o.logger(cmd)
	stores, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	opts := search.DefaultOptions()
	opts.Logger = log
	return &session{cfg: cfg, stores: stores, engine: app.NewEngine(ctx, cfg, stores, opts), logger: log}, nil
}

func (s *session) close() { s.stores.Close(context.Background()) }

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func newAnalyzeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <question>",
		Short: "Retrieve ranked, cited speech excerpts for a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			if o.remote {
				return o.analyzeRemote(ctx, cmd, args[0])
			}
			s, err := o.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			return o.printResponse(cmd.OutOrStdout(), s.engine.Analyze(ctx, args[0]))
		},
	}
}

func (o *options) analyzeRemote(ctx context.Context, cmd *cobra.Command, question string) error {
	if err := o.validate(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	nc, err := app.ConnectNATS(cfg, "unga-cli", o.logger(cmd))
	if err != nil {
		return err
	}
	if nc == nil {
		return fmt.Errorf("--remote needs NATS_URL")
	}
	defer nc.Close()
	resp, err := search.Remote(ctx, nc, question)
	if err != nil {
		return fmt.Errorf("remote analyze: %w", err)
	}
	return o.printResponse(cmd.OutOrStdout(), resp)
}

func newAskCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question in prose, citing speech excerpts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			s, err := o.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			completer, err := app.Completer(s.cfg)
			if err != nil {
				return err
			}
			ropts := rag.DefaultOptions()
			ropts.TopK = s.cfg.Models.AnswerTopK
			ropts.MaxTokens = s.cfg.Models.AnswerTokens
			var regions rag.RegionLister
			if s.stores.Graph != nil {
				regions = s.stores.Graph
			}
			ans, askErr := rag.New(s.engine, completer, regions, ropts, s.logger).Ask(ctx, args[0])
			if ans == nil {
				return askErr
			}
			if err := o.printAnswer(cmd.OutOrStdout(), ans); err != nil {
				return err
			}
			return askErr
		},
	}
}

func newIngestCmd(o *options) *cobra.Command {
	var (
		workers int
		ledger  string
	)
	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Load {ISO3}_{session}_{year}.txt speech files into the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			s, err := o.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			embedder, err := app.Embedder(ctx, s.cfg)
			if err != nil {
				s.logger.Warn("embedder unavailable, storing speeches without embeddings", "err", err)
				embedder = nil
			}
			deps := ingest.Deps{
				Store:    s.stores.Corpus,
				Embedder: embedder,
				Limiter:  resilience.NewLimiter(resilience.LimiterOpts{Rate: s.cfg.Models.EmbedRPS, Burst: s.cfg.Models.EmbedBurst}),
				Logger:   s.logger,
			}
			if ledger != "" {
				l, err := ingest.OpenLedger(ledger, s.logger)
				if err != nil {
					return err
				}
				defer l.Close()
				deps.Ledger = l
			}

			rep, err := ingest.NewImporter(ingest.NewPipeline(deps), workers, s.logger).ImportDir(ctx, args[0])
			if err != nil {
				return err
			}
			return o.printReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent files")
	cmd.Flags().StringVar(&ledger, "ledger", "", "dedup ledger directory")
	return cmd
}

func newSummaryCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show what the corpus holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			s, err := o.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			sum, err := s.stores.Corpus.Summary(ctx)
			if err != nil {
				return err
			}
			if o.format == "json" {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "speeches\t%d\n", sum.Speeches)
			fmt.Fprintf(w, "countries\t%d\n", sum.Countries)
			fmt.Fprintf(w, "embedded\t%d\n", sum.Embedded)
			fmt.Fprintf(w, "years\t%d-%d\n", sum.FirstYear, sum.LastYear)
			return w.Flush()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
