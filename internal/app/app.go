package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wireroom/internal/auth"
	"github.com/vovakirdan/wireroom/internal/command"
	"github.com/vovakirdan/wireroom/internal/config"
	"github.com/vovakirdan/wireroom/internal/core"
	"github.com/vovakirdan/wireroom/internal/history"
	"github.com/vovakirdan/wireroom/internal/provider"
	"github.com/vovakirdan/wireroom/internal/store"
	"github.com/vovakirdan/wireroom/internal/store/badgerstore"
	"github.com/vovakirdan/wireroom/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wireroom/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             core.Hub
	closers         []io.Closer
	log             *zerolog.Logger
}

// Storage is the opened persistence layer: identities and activities always live in
// SQLite, chat events in the configured history backend.
type Storage struct {
	SQL     *sqlite.SQLiteStore
	Events  store.EventStore
	closers []io.Closer
}

// Close releases every opened database, events first.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// OpenStorage opens the SQLite database and the history backend selected by cfg.
func OpenStorage(cfg *config.Config, logger *zerolog.Logger) (*Storage, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	storage := &Storage{SQL: st, Events: st, closers: []io.Closer{st}}

	if cfg.History.Backend == "badger" {
		events, err := badgerstore.Open(cfg.History.BadgerPath)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init badger history: %w", err)
		}
		storage.Events = events
		storage.closers = append(storage.closers, events)
		logger.Info().Str("badger_path", cfg.History.BadgerPath).Msg("badger history initialized")
	}

	return storage, nil
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	ctx := context.Background()

	storage, err := OpenStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	identities := auth.NewService(storage.SQL, &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}, cfg.AllowPlainIdentity)

	// Nobody is connected yet; clear flags left over from an unclean shutdown.
	if err := identities.ResetPresence(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("reset presence: %w", err)
	}

	hist, err := history.Open(ctx, storage.Events)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}

	dispatcher := command.NewDispatcher(cfg.Commands.Timeout, logger)
	if err := command.RegisterBuiltins(dispatcher, buildProviders(cfg, logger), command.Options{
		MovieParserTemplate: cfg.Commands.MovieParserTemplate,
		AIRemoteTimeout:     cfg.Providers.AI.Timeout,
	}); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("register commands: %w", err)
	}

	hub := core.NewHub(core.Config{
		Room:        cfg.Room,
		ReplayLimit: cfg.History.ReplayLimit,
		Workers:     cfg.Commands.Workers,
	}, core.Deps{
		Identities: identities,
		History:    hist,
		Dispatcher: dispatcher,
		Activities: storage.SQL,
	}, logger)

	server := transporthttp.NewServer(transporthttp.Services{
		Hub:        hub,
		Identities: identities,
		History:    hist,
		Commands:   dispatcher,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		closers:         []io.Closer{storage},
		log:             logger,
	}, nil
}

func buildProviders(cfg *config.Config, logger *zerolog.Logger) command.Providers {
	var p command.Providers
	pc := cfg.Providers

	if pc.AI.APIKey != "" {
		p.AIRemote = provider.NewOpenAIChat(provider.OpenAIConfig{
			BaseURL: pc.AI.BaseURL,
			APIKey:  pc.AI.APIKey,
			Model:   pc.AI.Model,
		})
	} else {
		logger.Info().Msg("ai provider not configured, using local replies")
	}
	if pc.Weather.APIKey != "" {
		p.Weather = provider.NewWeather(pc.Weather.BaseURL, pc.Weather.APIKey, nil)
	} else {
		logger.Info().Msg("weather provider not configured")
	}
	if pc.News.APIKey != "" {
		p.News = provider.NewNews(pc.News.BaseURL, pc.News.APIKey, pc.News.PageSize, nil)
	} else {
		logger.Info().Msg("news provider not configured")
	}
	if pc.Music.BaseURL != "" {
		p.Music = provider.NewMusic(pc.Music.BaseURL, pc.Music.SearchLimit, nil)
	} else {
		logger.Info().Msg("music provider not configured, using placeholder results")
	}
	return p
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(gctx)
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources once the hub has stopped.
func (a *App) cleanup() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
