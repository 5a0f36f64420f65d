package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/searchstudy/internal/config"
	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/identity"
	"github.com/rpggio/searchstudy/internal/domain/survey"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/mcp"
	"github.com/rpggio/searchstudy/internal/metrics"
	"github.com/rpggio/searchstudy/internal/provider/airtable"
	"github.com/rpggio/searchstudy/internal/provider/article"
	"github.com/rpggio/searchstudy/internal/provider/gemini"
	"github.com/rpggio/searchstudy/internal/provider/search"
	"github.com/rpggio/searchstudy/internal/sqlite"
	"github.com/rpggio/searchstudy/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// app holds the wired services of one server process.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sqlite.DB

	metrics     *metrics.Metrics
	events      *activity.Service
	assignments *assignment.Service
	registry    *task.Registry
	router      http.Handler
}

// openDB opens and migrates the study database.
func openDB(cfg config.Config) (*sqlite.DB, error) {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	kv := sqlite.NewKVRepository(db)
	eventRepo := sqlite.NewEventRepository(db)
	m := metrics.New()

	air := cfg.Providers.Airtable
	tables := airtable.NewClient(air.APIKey, air.BaseID, logger)
	if air.BaseURL != "" {
		tables.BaseURL = air.BaseURL
	}
	tables.Recorder = m
	sink := airtable.NewLogSink(tables, air.LogTable, logger)

	eventSvc := activity.NewService(sink, eventRepo, m, logger)
	identitySvc := identity.NewService(kv, tables, identity.Options{
		StudyID:      cfg.Study.ID,
		ConsentTable: air.ConsentTable,
	}, logger)
	assignmentSvc := assignment.NewService(kv, assignment.Options{
		StudyID:  cfg.Study.ID,
		Topics:   cfg.Study.Topics,
		Cap:      cfg.Study.CellCap,
		Recorder: m,
	}, logger)
	surveySvc := survey.NewService(kv, tables, assignmentSvc, survey.Options{
		StudyID:          cfg.Study.ID,
		PreTable:         air.PreSurveyTable,
		PostTable:        air.PostSurveyTable,
		DemographicTable: air.DemographicTable,
	}, logger)

	searcher := search.NewClient(cfg.Providers.Search.APIKey, cfg.Providers.Search.EngineID, logger)
	if cfg.Providers.Search.BaseURL != "" {
		searcher.BaseURL = cfg.Providers.Search.BaseURL
	}
	searcher.Recorder = m

	var model gemini.Model
	if cfg.Providers.Gemini.APIKey != "" {
		gm, err := gemini.NewGenAIModel(ctx, cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		model = gm
	} else {
		logger.Warn("GEMINI_API_KEY not set, conversational answers disabled")
	}
	generator := gemini.NewAdapter(model, m, logger)

	fetcher := article.NewFetcher(article.Options{
		Timeout:  cfg.Providers.Article.Timeout,
		MaxChars: cfg.Providers.Article.MaxChars,
	}, logger)
	fetcher.Recorder = m

	registry := task.NewRegistry(task.Deps{
		Searcher:  searcher,
		Generator: generator,
		Emitter:   eventSvc,
		Logger:    logger,
	}, task.Config{
		TimeThreshold:        cfg.Study.TimeThreshold,
		InteractionThreshold: cfg.Study.InteractionThreshold,
		ResultsPerQuery:      cfg.Study.ResultsPerQuery,
		FlushTimeout:         cfg.Study.FlushTimeout,
	}, m)

	opts := transport.Options{
		StudyID:         cfg.Study.ID,
		Backend:         kv,
		SecureCookies:   cfg.Server.SecureCookies,
		CompletionURL:   cfg.Study.CompletionURL,
		DeclineURL:      cfg.Study.DeclineURL,
		ResultsPerQuery: cfg.Study.ResultsPerQuery,
		Metrics:         m,
		Logger:          logger,
	}
	if cfg.Console.Token != "" {
		console := mcp.NewServer(mcp.Config{
			Services: mcp.Services{
				Assignments: assignmentSvc,
				Sessions:    registry,
				Events:      eventSvc,
			},
			StudyID: cfg.Study.ID,
			Version: version,
			Logger:  logger,
		})
		opts.Console = sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return console },
			&sdkmcp.StreamableHTTPOptions{
				Stateless:      false,
				SessionTimeout: 30 * time.Minute,
			},
		)
		opts.ConsoleAuth = transport.AuthMiddleware(transport.StaticToken{Token: cfg.Console.Token})
	} else {
		logger.Info("console disabled, set STUDY_CONSOLE_TOKEN to enable")
	}

	router := transport.NewServer(transport.Services{
		Identity:    identitySvc,
		Assignments: assignmentSvc,
		Surveys:     surveySvc,
		Sessions:    registry,
		Events:      eventSvc,
		Searcher:    searcher,
		Generator:   generator,
		Articles:    fetcher,
	}, opts)

	return &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		metrics:     m,
		events:      eventSvc,
		assignments: assignmentSvc,
		registry:    registry,
		router:      router,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *app) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server listening", "addr", addr, "study_id", a.cfg.Study.ID)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		waitForShutdown(a.logger, httpServer, a.registry)
		return nil
	})
	return g.Wait()
}

// Close releases the database.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("database close failed", "error", err)
	}
}

func waitForShutdown(logger *slog.Logger, server *http.Server, registry *task.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	registry.CloseAll()
}
