// Package app assembles the import service from configuration. Both the
// HTTP server and the CLI start here.
package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rosterload/internal/config"
	"github.com/JonMunkholm/rosterload/internal/core"
	_ "github.com/JonMunkholm/rosterload/internal/core/tables" // Register roster entities
	"github.com/JonMunkholm/rosterload/internal/database"
	"github.com/JonMunkholm/rosterload/internal/progress"
	"github.com/JonMunkholm/rosterload/internal/web"
)

// App holds the long-lived collaborators of a process.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Runs    *database.RunStore
	Service *core.Service

	closers []func() error
}

// New connects to the database and the configured progress sinks and
// builds the import service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Pool: pool}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	sinks, closers, err := progressSinks(ctx, cfg.Progress)
	a.closers = append(a.closers, closers...)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Runs = database.NewRunStore(pool)
	sinks = append(sinks, a.Runs)

	scope := database.NewScope(pool, cfg.Import.LockKey, cfg.Import.Atomic)
	a.Service = core.NewPoolService(pool, scope, cfg.Import.BatchSize, core.ServiceOptions{
		Timeout:   cfg.Import.Timeout,
		MaxWait:   cfg.Import.MaxWaitTime,
		ResultTTL: cfg.Import.ResultTTL,
		Sinks:     sinks,
		History:   a.Runs,
	})

	slog.Info("import service ready",
		"atomic", cfg.Import.Atomic,
		"batch_size", cfg.Import.BatchSize,
		"entities", len(core.All()),
		"sinks", len(sinks)+1,
	)
	return a, nil
}

// Server returns the HTTP server for this app.
func (a *App) Server() *web.Server {
	return web.NewServer(a.Service, a.Config, web.Options{
		Runs:     a.Runs,
		Database: a.Pool,
	})
}

// Shutdown waits for running imports, then releases every connection.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Service.Shutdown(ctx)
	a.Close()
	return err
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// progressSinks connects the external sinks enabled in cfg. Closers are
// returned even on error so partial connections can be released.
func progressSinks(ctx context.Context, cfg config.ProgressConfig) ([]core.ProgressSink, []func() error, error) {
	var (
		sinks   []core.ProgressSink
		closers []func() error
	)

	if cfg.RedisURL != "" {
		client, err := progress.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return sinks, closers, err
		}
		closers = append(closers, client.Close)
		sinks = append(sinks, progress.NewRedisSink(client, cfg.RedisKeyPrefix, cfg.RedisTTL))
		slog.Info("progress sink enabled", "sink", "redis", "prefix", cfg.RedisKeyPrefix)
	}

	if cfg.AMQPURL != "" {
		conn, err := progress.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return sinks, closers, err
		}
		closers = append(closers, conn.Close)
		sinks = append(sinks, progress.NewAMQPSink(conn.Ch, cfg.AMQPExchange, cfg.AMQPRoutingKey))
		slog.Info("progress sink enabled", "sink", "amqp", "exchange", cfg.AMQPExchange)
	}

	return sinks, closers, nil
}
