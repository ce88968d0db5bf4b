// Package application assembles the service graph shared by the HTTP server
// and the CLI: contact storage, metadata backend, delivery client,
// dispatcher and service.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/wabatch/internal/config"
	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/delivery"
	"github.com/JonMunkholm/wabatch/internal/metrics"
	"github.com/JonMunkholm/wabatch/internal/storage"
)

// App is a wired application. Close releases the database pool, if any.
type App struct {
	Config  *config.Config
	Service *core.Service
	Client  *delivery.Client
	Store   *storage.FileStore

	pool *pgxpool.Pool
}

// New wires an App from cfg. opts are applied to the dispatcher after the
// metrics observers.
func New(ctx context.Context, cfg *config.Config, opts ...core.DispatcherOption) (*App, error) {
	app := &App{Config: cfg}

	meta, err := app.metadataStore(ctx)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(cfg.Contacts.Dir, meta)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	app.Client = delivery.NewClient(cfg.Messaging.BackendURL, delivery.Timeouts{
		Text:   cfg.Messaging.TextTimeout,
		Media:  cfg.Messaging.MediaTimeout,
		Logout: cfg.Messaging.LogoutTimeout,
		Auth:   cfg.Messaging.AuthTimeout,
	})

	dispatcherOpts := append([]core.DispatcherOption{
		core.WithStateObserver(metrics.ObserveBatchState),
		core.WithBatchObserver(metrics.RecordBatch),
	}, opts...)
	dispatcher := core.NewDispatcher(app.Client, core.DispatcherConfig{
		CountryCode: cfg.Messaging.DefaultCountryCode,
		Pacing:      cfg.Messaging.BatchSendDelay,
	}, dispatcherOpts...)

	app.Service = core.NewService(core.ServiceConfig{
		Store:        store,
		Templates:    storage.NewTemplateFile(cfg.Contacts.TemplateFile),
		Dispatcher:   dispatcher,
		Limiter:      core.NewSessionLimiter(core.DefaultSessionSlots, cfg.Messaging.BusyWait),
		PreviewLimit: core.Limits(cfg.Contacts.PreviewRowLimit, cfg.Contacts.PreviewColumnLimit),
	})
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func (a *App) metadataStore(ctx context.Context) (storage.MetadataStore, error) {
	if !a.Config.UsesPostgres() {
		path := filepath.Join(a.Config.Contacts.Dir, storage.MetadataFileName)
		slog.Info("contacts metadata in file", "path", path)
		return storage.NewJSONMetadataStore(path), nil
	}

	pool, err := openPool(ctx, &a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	meta := storage.NewPostgresMetadataStore(pool)
	if err := meta.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return meta, nil
}

// openPool connects to PostgreSQL with the configured pool limits.
func openPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
