package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paperchase/paperchase/internal/api"
	"github.com/paperchase/paperchase/internal/config"
	"github.com/paperchase/paperchase/internal/hits"
	"github.com/paperchase/paperchase/internal/logging"
	"github.com/paperchase/paperchase/internal/notify"
	"github.com/paperchase/paperchase/internal/output"
	"github.com/paperchase/paperchase/internal/progress"
	progresssinks "github.com/paperchase/paperchase/internal/progress/sinks"
	"github.com/paperchase/paperchase/internal/render"
	"github.com/paperchase/paperchase/internal/retrieval"
	"github.com/paperchase/paperchase/internal/storage"
	pgstore "github.com/paperchase/paperchase/internal/store/postgres"
)

type retrieveFlags struct {
	keyword  string
	years    []int
	location string
	maxPages int
}

// newRetrieveCmd creates and configures the 'retrieve' subcommand.
func newRetrieveCmd() *cobra.Command {
	var flags retrieveFlags
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Runs one retrieval for a keyword",
		Long: `Compiles the search query, walks the paginated result set in
concurrent batches, enriches each record with its match count, and
streams articles to the configured exporters and stores.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRetrieve(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.keyword, "keyword", "k", "", "search keyword (required)")
	cmd.Flags().IntSliceVarP(&flags.years, "year", "y", nil, "year filter: one value for a single year, two for an inclusive range")
	cmd.Flags().StringVarP(&flags.location, "location", "l", "", "location filter: country code (us) or region code (us-ny)")
	cmd.Flags().IntVarP(&flags.maxPages, "max-pages", "m", 0, "cap on result pages fetched; 0 means all")
	_ = cmd.MarkFlagRequired("keyword") //nolint:errcheck // flag exists

	return cmd
}

func runRetrieve(ctx context.Context, flags retrieveFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.New()
	query := retrieval.Query{
		Keyword:  flags.keyword,
		Years:    flags.years,
		Location: flags.location,
		MaxPages: flags.maxPages,
	}

	pool, err := render.NewPool(render.Config{
		PoolSize:   cfg.Browser.PoolSize,
		UserAgent:  cfg.Search.UserAgent,
		NavTimeout: time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
		Headless:   cfg.Browser.Headless,
	}, logger)
	if err != nil {
		return fmt.Errorf("init render pool: %w", err)
	}

	hitsClient, err := hits.New(hits.Config{
		BaseURL:   cfg.Search.HitsURL,
		UserAgent: cfg.Search.UserAgent,
		Timeout:   time.Duration(cfg.Hits.TimeoutSeconds) * time.Second,
		QPS:       cfg.Hits.QPS,
	}, logger)
	if err != nil {
		return fmt.Errorf("init hits client: %w", err)
	}

	archiver, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		return err
	}

	enricher := retrieval.NewEnricher(
		hitsClient,
		retrieval.NewRetryPolicy(retrieval.DefaultHitProfile()),
		cfg.Retrieval.ConcurrentHits,
		logger,
	)
	fetcher := retrieval.NewPageFetcher(
		retrieval.PageFetcherConfig{
			SearchURL:     cfg.Search.SearchURL,
			ArchivePrefix: fmt.Sprintf("%s/%s", cfg.Archive.Prefix, runID),
		},
		pool,
		render.NewChallengeDetector(render.DefaultSignatures(), render.DefaultSelectors()),
		enricher,
		retrieval.NewRetryPolicy(retrieval.DefaultPageProfile()),
		archiver,
		logger,
	)

	status := progresssinks.NewStatusSink()
	sinkList, store, err := buildSinks(ctx, cfg, status, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinkList...)

	stopServer := startStatusServer(cfg, status, logger)
	defer stopServer()

	orch := retrieval.NewOrchestrator(retrieval.OrchestratorConfig{
		RunID:           runID,
		ConcurrentPages: cfg.Retrieval.ConcurrentPages,
		ResultsPerPage:  cfg.Retrieval.ResultsPerPage,
		BatchDelay:      time.Duration(cfg.Retrieval.BatchDelaySeconds) * time.Second,
	}, fetcher, progress.NewBridge(runID, hub), pool, logger)

	runErr := orch.Run(ctx, query)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("event hub close failed", zap.Error(err))
	}

	if runErr == nil {
		publishCompletion(closeCtx, cfg, flags.keyword, runID, status, logger)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("retrieval run: %w", runErr)
	}
	return nil
}

// buildArchiver selects the raw payload archive backend; nil disables
// archiving.
func buildArchiver(ctx context.Context, cfg config.Config, logger *zap.Logger) (retrieval.Archiver, error) {
	switch cfg.Archive.Backend {
	case "", "none":
		return nil, nil
	case "local":
		provider, err := storage.NewLocalProvider(cfg.Archive.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return provider, nil
	case "gcs":
		provider, err := storage.NewGCSProvider(ctx, cfg.Archive.GCSBucket, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

// buildSinks assembles the run event sinks from configuration. The returned
// store, when non-nil, must be closed after the hub drains.
func buildSinks(
	ctx context.Context,
	cfg config.Config,
	status *progresssinks.StatusSink,
	logger *zap.Logger,
) ([]progress.Sink, *pgstore.RecordStore, error) {
	sinkList := []progress.Sink{status, progresssinks.NewLogSink(logger)}

	promSink, err := progresssinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	sinkList = append(sinkList, promSink)

	if cfg.Output.CSVPath != "" {
		csvExporter, err := output.NewCSVExporter(cfg.Output.CSVPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init csv exporter: %w", err)
		}
		sinkList = append(sinkList, csvExporter)
	}
	if cfg.Output.JSONPath != "" {
		jsonExporter, err := output.NewJSONExporter(cfg.Output.JSONPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init json exporter: %w", err)
		}
		sinkList = append(sinkList, jsonExporter)
	}

	var store *pgstore.RecordStore
	if cfg.DB.DSN != "" {
		store, err = pgstore.NewRecordStore(ctx, pgstore.RecordStoreConfig{
			DSN:           cfg.DB.DSN,
			ArticlesTable: cfg.DB.ArticlesTable,
			RunsTable:     cfg.DB.RunsTable,
			MaxConns:      int32(cfg.DB.MaxConns), //nolint:gosec // bounded config value
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init record store: %w", err)
		}
		sinkList = append(sinkList, progresssinks.NewRecordStoreSink(store, logger))
	}

	return sinkList, store, nil
}

// startStatusServer runs the HTTP status server when enabled and returns a
// shutdown func.
func startStatusServer(cfg config.Config, status *progresssinks.StatusSink, logger *zap.Logger) func() {
	if !cfg.Server.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(status, nil, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown error", zap.Error(err))
		}
	}
}

// publishCompletion sends the run completion notice when Pub/Sub is
// configured. Failures are logged, not fatal; the export already succeeded.
func publishCompletion(
	ctx context.Context,
	cfg config.Config,
	keyword string,
	runID uuid.UUID,
	status *progresssinks.StatusSink,
	logger *zap.Logger,
) {
	if cfg.PubSub.ProjectID == "" {
		return
	}
	publisher, err := notify.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, logger)
	if err != nil {
		logger.Warn("completion publisher init failed", zap.Error(err))
		return
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Warn("completion publisher close failed", zap.Error(closeErr))
		}
	}()

	completion := notify.Completion{
		RunID:       runID,
		Keyword:     keyword,
		CompletedAt: time.Now().UTC(),
	}
	if snapshot, ok := status.Snapshot(); ok {
		completion.Articles = snapshot.Articles
		completion.Unresolved = snapshot.Unresolved
		if snapshot.Summary != nil {
			completion.Elapsed = snapshot.Summary.TimeElapsed.String()
		}
	}
	id, err := notify.Notify(ctx, publisher, cfg.PubSub.TopicName, completion)
	if err != nil {
		logger.Warn("completion publish failed", zap.Error(err))
		return
	}
	logger.Info("completion published",
		zap.String("topic", cfg.PubSub.TopicName),
		zap.String("message_id", id),
	)
}
