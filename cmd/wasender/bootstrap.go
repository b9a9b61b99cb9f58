package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/wasender/internal/ai"
	"github.com/LeventeLantos/wasender/internal/app"
	"github.com/LeventeLantos/wasender/internal/config"
	"github.com/LeventeLantos/wasender/internal/kv"
	"github.com/LeventeLantos/wasender/internal/metrics"
	"github.com/LeventeLantos/wasender/internal/model"
	"github.com/LeventeLantos/wasender/internal/opener"
	"github.com/LeventeLantos/wasender/internal/state"
	"github.com/LeventeLantos/wasender/internal/templating"
)

// runtime is everything a command needs, plus the teardown for it.
type runtime struct {
	cfg     *config.Config
	app     *app.App
	metrics *metrics.Metrics
	hub     *opener.Hub // nil unless the hub opener is enabled

	closers []func() error
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.app != nil {
		rt.app.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setupLogger(level slog.Level) {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

// bootstrap wires the app. withOpeners=false is used by one-shot commands,
// which never open links and only log them if they did.
func bootstrap(ctx context.Context, withOpeners bool) (*runtime, error) {
	cfg, err := config.LoadAll()
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.LogLevel)

	rt := &runtime{cfg: cfg, metrics: metrics.New()}

	store, err := openStore(ctx, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	defaults, err := loadDefaults(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	var drafter ai.Drafter
	if cfg.AI.Enabled() {
		g, err := ai.NewGenAI(ctx, ai.GenAIConfig{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model})
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("init ai drafter: %w", err)
		}
		drafter = g
	}

	var op opener.Opener = opener.NewLog(slog.Default())
	if withOpeners {
		op = buildOpeners(rt)
	}

	a, err := app.New(ctx, app.Config{
		Repo:         state.NewRepository(store),
		Opener:       op,
		Drafter:      drafter,
		Metrics:      rt.metrics,
		DraftTimeout: cfg.AI.Timeout,
		Defaults:     defaults,
		Location:     cfg.Location,
		ExportPrefix: cfg.Export.Prefix,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.app = a

	slog.Info("wasender ready",
		"backend", cfg.Store.Backend,
		"openers", cfg.Opener.Kinds,
		"ai", cfg.AI.Enabled(),
	)
	return rt, nil
}

func openStore(ctx context.Context, rt *runtime) (kv.Store, error) {
	cfg := rt.cfg

	switch cfg.Store.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return kv.NewRedis(rdb, cfg.Redis.KeyPrefix, cfg.Redis.TTL), nil

	case config.BackendPostgres:
		s, err := kv.OpenSQL(ctx, kv.Postgres, cfg.Store.PostgresURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, s.Close)
		return s, nil

	case config.BackendSQLite:
		s, err := kv.OpenSQL(ctx, kv.SQLite, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, s.Close)
		return s, nil

	default:
		slog.Warn("using in-memory store; state is lost on exit")
		return kv.NewMemory(), nil
	}
}

func loadDefaults(cfg *config.Config) (state.Snapshot, error) {
	templates := templating.Defaults()
	if cfg.Defaults.TemplatesFile != "" {
		seed, err := templating.LoadSeed(cfg.Defaults.TemplatesFile)
		if err != nil {
			return state.Snapshot{}, err
		}
		templates = seed
	}

	return state.Snapshot{
		Templates:        templates,
		ActiveTemplateID: templates[0].ID,
		Settings: model.Settings{
			Delay:      cfg.Defaults.Delay,
			SenderName: cfg.Defaults.SenderName,
		},
	}, nil
}

func buildOpeners(rt *runtime) opener.Opener {
	cfg := rt.cfg

	var multi opener.Multi
	for _, kind := range cfg.Opener.Kinds {
		switch kind {
		case config.OpenerHub:
			rt.hub = opener.NewHub(originChecker(cfg.Server.CORSOrigins))
			rt.closers = append(rt.closers, func() error { rt.hub.Close(); return nil })
			multi = append(multi, rt.hub)
		case config.OpenerBrowser:
			b := opener.NewBrowser(opener.BrowserConfig{
				ControlURL: cfg.Opener.BrowserControlURL,
				AutoClose: func() bool {
					return rt.app != nil && rt.app.AutoCloseTab()
				},
				CloseAfter: cfg.Opener.AutoCloseAfter,
			})
			rt.closers = append(rt.closers, b.Close)
			multi = append(multi, b)
		case config.OpenerSystem:
			multi = append(multi, opener.NewSystem())
		case config.OpenerLog:
			multi = append(multi, opener.NewLog(slog.Default()))
		}
	}
	return multi
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
