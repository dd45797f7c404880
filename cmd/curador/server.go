package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kalambet/curador/internal/api"
	"github.com/kalambet/curador/internal/composer"
	"github.com/kalambet/curador/internal/config"
	"github.com/kalambet/curador/internal/document"
	"github.com/kalambet/curador/internal/engine"
	"github.com/kalambet/curador/internal/ingest"
	"github.com/kalambet/curador/internal/metrics"
	"github.com/kalambet/curador/internal/ollama"
	"github.com/kalambet/curador/internal/pipeline"
	"github.com/kalambet/curador/internal/retrieval"
	"github.com/kalambet/curador/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the curation HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the curation tools over MCP (stdio)",
	Long: `Serve curate_document, categorize_document and search_knowledge over the
Model Context Protocol on stdin/stdout.

MCP client configuration:
  {
    "mcpServers": {
      "curador": {"command": "/path/to/curador", "args": ["mcp"]}
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show curador system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

// service is the wired curation stack shared by serve and mcp.
type service struct {
	cfg       config.Config
	store     *storage.Store
	vectors   *retrieval.SQLiteStore
	retriever *retrieval.Retriever // nil when the knowledge base is disabled
	embedder  retrieval.TextEmbedder
	extractor *document.Extractor
	curator   *pipeline.Curator
	metrics   *metrics.Metrics
	redis     *redis.Client
}

func (s *service) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			printWarning("closing redis: %v", err)
		}
	}
	if err := s.store.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}

// contextRetriever returns the retriever as a pipeline dependency, nil when
// the knowledge base is disabled.
func (s *service) contextRetriever() pipeline.ContextRetriever {
	if s.retriever == nil {
		return nil
	}
	return s.retriever
}

func buildService(ctx context.Context, cfg config.Config) (*service, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	s := &service{
		cfg:       cfg,
		store:     store,
		vectors:   retrieval.NewSQLiteStore(store.DB()),
		extractor: document.NewExtractor(nil, cfg.Curation.MaxPDFPages),
		metrics:   metrics.New(),
	}

	if cfg.Knowledge.Enabled {
		oc := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureModel(ctx, oc, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
			printWarning("knowledge base lookups will fail until the embedding model is available: %v", err)
		}
		var emb retrieval.TextEmbedder = retrieval.NewEmbedder(oc, cfg.Ollama.EmbedModel)
		if cfg.Knowledge.RedisURL != "" {
			rdb, err := retrieval.NewRedisClient(cfg.Knowledge.RedisURL)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("connecting to redis: %w", err)
			}
			s.redis = rdb
			emb = retrieval.NewCachedEmbedder(emb, rdb, cfg.Ollama.EmbedModel, cfg.Knowledge.CacheTTL)
		}
		s.embedder = emb
		s.retriever = retrieval.NewRetriever(emb, s.vectors, retrieval.Options{
			Collection:   cfg.Knowledge.Collection,
			QueryChars:   cfg.Curation.QueryChars,
			SnippetChars: cfg.Curation.SnippetChars,
		})
	}

	active := cfg.ActiveBackend()
	eng := engine.New(engine.Options{
		Backend:           cfg.Generation.Backend,
		BaseURL:           active.BaseURL,
		APIKey:            active.APIKey,
		Model:             active.Model,
		Timeout:           cfg.Generation.Timeout,
		RequestsPerMinute: cfg.Generation.RequestsPerMinute,
	})
	if u, ok := eng.(*engine.Unavailable); ok {
		printWarning("generation disabled: %s", u.Reason())
	} else if err := engine.CheckReady(ctx, eng, os.Stderr); err != nil {
		printWarning("generation backend not ready: %v", err)
	}

	partition, err := composer.PartitionByName(cfg.Curation.Partition)
	if err != nil {
		store.Close()
		return nil, err
	}
	if cfg.Curation.DefaultDomain != "" {
		if partition, err = partition.WithDefault(composer.Domain(cfg.Curation.DefaultDomain)); err != nil {
			store.Close()
			return nil, err
		}
	}

	s.curator = pipeline.NewCurator(
		s.extractor,
		s.contextRetriever(),
		composer.New(partition, cfg.Curation.ExcerptChars),
		eng,
		pipeline.Options{
			TopK:                cfg.Knowledge.TopK,
			QueryChars:          cfg.Curation.QueryChars,
			CurateMinChars:      cfg.Curation.CurateMinChars,
			CategorizeMinChars:  cfg.Curation.CategorizeMinChars,
			CurateMaxTokens:     cfg.Curation.CurateMaxTokens,
			CategorizeMaxTokens: cfg.Curation.CategorizeMaxTokens,
			LenientSchema:       !cfg.Curation.StrictSchema,
		},
	)
	s.curator.SetObserver(s.metrics)
	s.metrics.SetBuildInfo(version, eng.Backend(), eng.Model(), partition.Name)

	slog.Info("service.ready",
		"backend", eng.Backend(),
		"model", eng.Model(),
		"partition", partition.Name,
		"knowledge", s.retriever != nil,
	)
	return s, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "curador version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if svc.embedder != nil {
		worker := ingest.NewWorker(svc.store, svc.embedder, svc.vectors, 500*time.Millisecond)
		worker.SetObserver(svc.metrics.ObserveIngest)
		go worker.Run(ctx)
	}

	deps := api.Deps{
		Curator:    svc.curator,
		Extractor:  svc.extractor,
		Store:      svc.store,
		Vectors:    svc.vectors,
		Metrics:    svc.metrics,
		Version:    version,
		Collection: cfg.Knowledge.Collection,
		Token:      cfg.Server.APIToken,
	}

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "curador listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol; startup progress goes to stderr.
	svc, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Curator:   svc.curator,
		Retriever: svc.contextRetriever(),
		Version:   version,
	})
	slog.Info("mcp.started", "transport", "stdio")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	base := baseURL(cfg)
	client := &http.Client{Timeout: 2 * time.Second}

	var info api.ServiceInfo
	resp, err := client.Get(base + "/")
	running := err == nil
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		running = false
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	default:
		if err := decodeJSON(resp, &info); err != nil {
			printStatus("Server", "running at %s (unreadable descriptor: %v)", base, err)
		} else {
			printStatus("Server", "running at %s (version %s)", base, info.Version)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	active := cfg.ActiveBackend()
	printStatus("Backend", "%s (%s)", cfg.Generation.Backend, active.BaseURL)
	printStatus("Model", "%s", active.Model)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Partition", "%s", cfg.Curation.Partition)

	if running && info.Status != "" {
		c := &apiClient{baseURL: base, token: cfg.Server.APIToken, httpClient: client}
		if docs, err := listKnowledge(context.Background(), c, 100, 0); err == nil {
			printStatus("Knowledge docs", "%s", countLabel(len(docs), 100))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Config file", "%s", config.FilePath())
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
