package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/crimson-sun/predictor/internal/batch"
	"github.com/crimson-sun/predictor/internal/cache"
	"github.com/crimson-sun/predictor/internal/config"
	"github.com/crimson-sun/predictor/internal/engine"
	"github.com/crimson-sun/predictor/internal/engine/artifact"
	"github.com/crimson-sun/predictor/internal/fixtures"
	"github.com/crimson-sun/predictor/internal/logging"
	"github.com/crimson-sun/predictor/internal/server"
	"github.com/crimson-sun/predictor/internal/store"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	batchOnly := flag.Bool("batch-only", false, "run the fixture batch and exit without serving HTTP")
	flag.Parse()

	if *showVersion {
		fmt.Println("predictor", config.Version)
		return
	}

	if err := run(*batchOnly); err != nil {
		slog.Error("predictor failed", "error", err)
		os.Exit(1)
	}
}

func run(batchOnly bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.HasOutput("stdout"), logging.ParseLevel(cfg.Log.Level))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := loadEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()
	slog.Info("artifacts loaded",
		"model_dir", cfg.Engine.ModelDir,
		"version", eng.Version(),
		"features", eng.Vocabulary().Len(),
	)

	var st *store.Store
	if cfg.Store.PostgresDSN != "" {
		if st, err = store.Open(ctx, cfg.Store.PostgresDSN); err != nil {
			return err
		}
		defer st.Close()
	}

	latest := &batch.Latest{}
	if cfg.Batch.Enabled || batchOnly {
		if err := runBatch(ctx, cfg, eng, st, latest); err != nil {
			if batchOnly || errors.Is(err, context.Canceled) {
				return err
			}
			// The API stays useful without batch results.
			slog.Error("startup batch failed", "error", err)
		}
	}
	if batchOnly {
		return nil
	}

	opts := []server.Option{
		server.WithLatest(latest),
		server.WithReadTimeout(cfg.Server.ReadTimeout),
	}
	if st != nil {
		opts = append(opts, server.WithStore(st))
	}
	if cfg.Cache.Enabled {
		c, err := newCache(ctx, cfg, eng.Version())
		if err != nil {
			return err
		}
		defer c.Close()
		opts = append(opts, server.WithCache(c))
	}

	srv := server.New(eng, opts...)
	if err := srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func loadEngine(cfg config.Config) (*engine.Engine, error) {
	var opts []artifact.Option
	if cfg.Engine.Backend != "" {
		opts = append(opts, artifact.WithBackend(cfg.Engine.Backend))
	}
	if cfg.Engine.ONNXLibrary != "" {
		opts = append(opts, artifact.WithONNXLibrary(cfg.Engine.ONNXLibrary))
	}
	l, err := artifact.NewLoader(cfg.Engine.ModelDir, opts...)
	if err != nil {
		return nil, err
	}
	a, err := engine.LoadArtifacts(l, cfg.Engine.DataDir)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(a)
	if err != nil {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("closing rejected artifacts", "error", cerr)
		}
		return nil, err
	}
	return eng, nil
}

func runBatch(ctx context.Context, cfg config.Config, eng *engine.Engine, st *store.Store, latest *batch.Latest) error {
	out, err := buildOutputs(cfg, st)
	if err != nil {
		return err
	}

	var opts []batch.Option
	if st != nil {
		opts = append(opts, batch.WithRecorder(st))
	}
	src := fixtures.Open(cfg.Batch.Fixtures, cfg.Batch.APIKey)
	res, runErr := batch.New(eng, src, out, opts...).Run(ctx)
	if err := out.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	latest.Set(res)
	return nil
}

func newCache(ctx context.Context, cfg config.Config, version string) (*cache.Cache, error) {
	var opts []cache.Option
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cache.WithRedis(client))
	}
	return cache.New(version, cfg.Cache.TTL, opts...), nil
}
