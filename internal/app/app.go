// Package app builds the service graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/williammiras/dash/internal/auth"
	"github.com/williammiras/dash/internal/config"
	"github.com/williammiras/dash/internal/db"
	"github.com/williammiras/dash/internal/handlers"
	"github.com/williammiras/dash/internal/llm"
	"github.com/williammiras/dash/internal/parsing"
	"github.com/williammiras/dash/internal/prompt"
	"github.com/williammiras/dash/internal/server"
	"github.com/williammiras/dash/internal/tools"
	"github.com/williammiras/dash/internal/tracing"
	"github.com/williammiras/dash/pkg/logger"
)

const tokenRefresh = 5 * time.Minute

type Options struct {
	// Stateless drops conversation history. The serverless handler runs this way.
	Stateless bool
	// JSONLogs forces the JSON log formatter.
	JSONLogs  bool
	LogOutput io.Writer
}

type App struct {
	Config *config.Config
	Logger logger.Logger

	Agent    llm.Agent
	Parser   *parsing.OutputParser
	Tools    *tools.Registry
	Service  *handlers.QueryService
	History  db.HistoryStore
	Archive  db.Archive
	Embedder handlers.QueryEmbedder

	Authorizer *auth.AccessTokenAuthorizer

	closers []func(context.Context) error
}

func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(cfg.Log.Level)
	logCfg.JSON = cfg.Log.JSON || opts.JSONLogs
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	logger.Init(logCfg)
	a.Logger = logger.GetDefault()

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	model, err := llm.NewOpenAIModel(llm.OpenAIConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if a.Tools, err = buildTools(cfg); err != nil {
		return nil, err
	}

	if a.Parser, err = parsing.NewOutputParser(); err != nil {
		return nil, err
	}
	a.Agent = llm.NewToolAgent(model, a.Tools, prompt.New(prompt.Persona, a.Parser.FormatInstructions()),
		llm.WithMaxIterations(cfg.LLM.MaxIterations),
		llm.WithTemperature(cfg.LLM.Temperature),
	)

	if err := a.openStores(model, opts.Stateless); err != nil {
		return nil, err
	}

	a.Service = &handlers.QueryService{
		Agent:    a.Agent,
		Parser:   a.Parser,
		History:  a.History,
		MaxTurns: cfg.History.MaxTurns,
		Model:    cfg.LLM.Model,
		Archive:  a.Archive,
		Embedder: a.Embedder,
	}

	a.Logger.Info("DASH initialised",
		"model", cfg.LLM.Model,
		"tools", a.Tools.Names(),
		"history", historyDriver(cfg, opts.Stateless),
		"archive", a.Archive != nil,
		"auth", a.Authorizer != nil,
	)
	return a, nil
}

func buildTools(cfg *config.Config) (*tools.Registry, error) {
	registry, err := tools.NewRegistry(tools.NewSerpAPI(tools.SerpAPIConfig{
		APIKey:     cfg.Search.APIKey,
		Endpoint:   cfg.Search.Endpoint,
		NumResults: cfg.Search.NumResults,
		Timeout:    cfg.Search.Timeout,
		CacheTTL:   cfg.Search.CacheTTL,
		CacheSize:  cfg.Search.CacheSize,
	}))
	if err != nil {
		return nil, err
	}
	if cfg.Reader.Enabled {
		reader := tools.NewPageReader(tools.PageReaderConfig{
			MaxBytes: cfg.Reader.MaxBytes,
			MaxChars: cfg.Reader.MaxChars,
			Timeout:  cfg.Reader.Timeout,
		})
		if err := registry.Register(reader); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *App) openStores(model *openai.LLM, stateless bool) error {
	cfg := a.Config
	var pg *db.PostgresDB

	if !stateless {
		switch cfg.History.Driver {
		case "sqlite":
			store, err := db.NewSQLiteDB(cfg.History.SQLitePath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			a.History = store
		case "postgres":
			store, err := db.NewPostgresDB(cfg.History.PostgresDSN, cfg.Archive.Enabled)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			a.History, pg = store, store
		default:
			a.History = db.NewMemoryDB()
		}
		a.closers = append(a.closers, func(context.Context) error { return a.History.Close() })
	}

	if cfg.Archive.Enabled {
		if pg == nil {
			store, err := db.NewPostgresDB(cfg.History.PostgresDSN, true)
			if err != nil {
				return fmt.Errorf("failed to initialize archive database: %w", err)
			}
			pg = store
			a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		}
		embedder, err := llm.NewEmbedder(model)
		if err != nil {
			return err
		}
		a.Archive, a.Embedder = pg, embedder
	}

	if len(cfg.Server.AccessTokens) > 0 {
		sources := auth.Sources{auth.StaticTokens(cfg.Server.AccessTokens)}
		if pg != nil {
			sources = append(sources, pg)
		}
		a.Authorizer = auth.NewAccessTokenAuthorizer(sources, tokenRefresh)
	}
	return nil
}

func historyDriver(cfg *config.Config, stateless bool) string {
	if stateless {
		return "none"
	}
	return cfg.History.Driver
}

// Router returns the HTTP router for the local server.
func (a *App) Router() *gin.Engine {
	routes := server.Routes{
		Query:      &handlers.QueryHandler{Service: a.Service, Timeout: a.Config.Server.RequestTimeout},
		Authorizer: a.Authorizer,
	}
	if a.History != nil {
		routes.Sessions = &handlers.SessionHandler{Store: a.History}
	}
	if a.Archive != nil {
		routes.Recommendations = &handlers.RecommendationHandler{Archive: a.Archive, Embedder: a.Embedder}
	}
	return server.NewRouter(a.Config.Server, a.Logger, routes)
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	ctx = logger.ContextWithLogger(ctx, a.Logger)
	return server.Run(ctx, a.Config.Server.Addr(), a.Router(), a.Config.Server.RequestTimeout)
}

// Close waits for background work and releases every resource, newest first.
func (a *App) Close(ctx context.Context) error {
	if a.Service != nil {
		a.Service.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
