package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/embedder"
	"github.com/54b3r/pressqa-go/internal/generation"
	"github.com/54b3r/pressqa-go/internal/index"
	"github.com/54b3r/pressqa-go/internal/ingestion"
	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/qa"
	"github.com/54b3r/pressqa-go/internal/rag"
	"github.com/54b3r/pressqa-go/internal/scheduler"
	"github.com/54b3r/pressqa-go/internal/scraper"
	"github.com/54b3r/pressqa-go/internal/server"
	"github.com/54b3r/pressqa-go/internal/tracing"
)

// serveFlags holds the `pressqa serve` flag values.
type serveFlags struct {
	host            string
	port            int
	askTimeout      time.Duration
	refreshSchedule string
	refreshTimezone string
}

// NewServeCmd constructs `pressqa serve`, which exposes question answering
// over HTTP and optionally refreshes the corpus on a schedule.
func NewServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pressqa HTTP API",
		Long: `Start the HTTP API on localhost.

Routes:
  POST /api/ask       {"question": "...", "top_k": 5, "similarity_threshold": 0.5}
  GET  /api/search    ?q=...&top_k=...&similarity_threshold=...
  GET  /api/history   ?limit=20
  GET  /api/health    liveness
  GET  /api/ready     index, cache, and Ollama reachability
  GET  /metrics       Prometheus metrics

PRESSQA_API_KEY enables Bearer authentication on the /api/ask, /api/search,
and /api/history routes. --refresh-schedule (or PRESSQA_REFRESH_SCHEDULE)
takes a cron expression; on each tick the feed is re-scraped and the
articles re-ingested.

Examples:
  pressqa serve
  pressqa serve --port 9090
  pressqa serve --refresh-schedule "0 4 * * *" --refresh-timezone Europe/Berlin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			flush, traced := tracing.Setup()
			defer flush()
			log.Info("langfuse tracing", slog.Bool("enabled", traced))

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			idx, err := buildIndex(ctx, emb, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer idx.Close()

			retriever, err := rag.NewRetriever(emb, idx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			history := openHistory(log)
			if history != nil {
				defer history.Close()
			}

			svc, err := qa.NewService(retriever, buildGenerator(ctx, log), history)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			topK, threshold, err := retrievalDefaults()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			schedule := f.refreshSchedule
			if schedule == "" {
				schedule = os.Getenv("PRESSQA_REFRESH_SCHEDULE")
			}
			if schedule != "" {
				sched, err := startRefresh(emb, idx, schedule, f.refreshTimezone, log)
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				defer sched.Stop()
			}

			srv, err := server.New(svc, history, &server.Config{
				Host:             f.host,
				Port:             f.port,
				AskTimeout:       f.askTimeout,
				Logger:           log,
				Pingers:          buildPingers(emb, idx),
				APIKey:           os.Getenv("PRESSQA_API_KEY"),
				DefaultTopK:      topK,
				DefaultThreshold: &threshold,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&f.host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&f.port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().DurationVar(&f.askTimeout, "ask-timeout", 2*time.Minute, "Upper bound for one /api/ask request")
	cmd.Flags().StringVar(&f.refreshSchedule, "refresh-schedule", "", "Cron expression for scrape-and-ingest refreshes (default: $PRESSQA_REFRESH_SCHEDULE)")
	cmd.Flags().StringVar(&f.refreshTimezone, "refresh-timezone", "UTC", "IANA timezone the refresh schedule is evaluated in")
	return cmd
}

// buildPingers returns the readiness probes for the configured stack: the
// index always, the Redis embedding cache when present, and Ollama when
// either generation or embedding runs on it.
func buildPingers(emb rag.Embedder, idx index.Index) []server.Pinger {
	pingers := []server.Pinger{server.NewFuncPinger("index", idx.Ping)}

	if c, ok := emb.(*embedder.Cached); ok && strings.TrimSpace(os.Getenv("EMBEDDING_CACHE")) != "memory" {
		pingers = append(pingers, server.NewFuncPinger("embedding_cache", c.Ping))
	}

	return append(pingers, ollamaPingers()...)
}

// ollamaPingers probes /api/tags on every Ollama server in use. Embedding
// and generation may point at different hosts; a shared host is probed once.
func ollamaPingers() []server.Pinger {
	var hosts []string
	if embedder.Backend() == "ollama" {
		hosts = append(hosts, embedder.OllamaHost())
	}
	if gen := generation.ConfigFromEnv(); gen.Backend == generation.BackendOllama {
		hosts = append(hosts, gen.Ollama.Host)
	}
	if len(hosts) == 2 && strings.TrimRight(hosts[0], "/") == strings.TrimRight(hosts[1], "/") {
		hosts = hosts[:1]
	}

	pingers := make([]server.Pinger, 0, len(hosts))
	for i, host := range hosts {
		name := "ollama"
		if len(hosts) == 2 {
			name = []string{"ollama_embedding", "ollama_generation"}[i]
		}
		pingers = append(pingers, server.NewHTTPPinger(name, strings.TrimRight(host, "/")+"/api/tags"))
	}
	return pingers
}

// startRefresh schedules scrape-then-ingest runs against idx and starts
// the scheduler. Each run replaces the chunks of every re-scraped article.
func startRefresh(emb rag.Embedder, idx rag.VectorIndex, expr, timezone string, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(timezone, log)
	if err != nil {
		return nil, err
	}
	task := func(ctx context.Context) error {
		cfg := scraper.ConfigFromEnv()
		s, err := scraper.New(cfg)
		if err != nil {
			return err
		}
		if _, err := s.Run(ctx, progressLogger(log)); err != nil {
			return err
		}
		stats, err := ingestDir(ctx, emb, idx, cfg.OutputDir, &ingestion.Config{})
		if err != nil {
			return err
		}
		log.Info("refresh ingested",
			slog.Int("articles", stats.Articles),
			slog.Int("chunks", stats.Chunks),
		)
		return nil
	}
	if err := sched.Schedule(expr, task); err != nil {
		return nil, err
	}
	sched.Start()
	log.Info("refresh scheduled",
		slog.String("schedule", expr),
		slog.String("timezone", timezone),
		slog.Time("next", sched.Next()),
	)
	return sched, nil
}
