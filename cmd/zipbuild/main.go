// zipbuild builds ZIP archives from a YAML definition file.
//
// Usage:
//
//	zipbuild -c archives.yaml [-o dir] [--cache-dir dir] [-j N] [-v]
//
// Archives are built concurrently. With --cache-dir, archives whose
// fingerprint matches an earlier build are copied from the cache instead of
// being rebuilt.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/zipbuild"
	"github.com/meigma/zipbuild/cache"
	"github.com/meigma/zipbuild/cache/disk"
)

type options struct {
	configPath string
	outDir     string
	cacheDir   string
	jobs       int
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("zipbuild", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "archive definition file (YAML)")
	flagSet.StringVarP(&opts.outDir, "output-dir", "o", "", "directory for relative outputs (default: next to the config file)")
	flagSet.StringVar(&opts.cacheDir, "cache-dir", "", "reuse archives with matching fingerprints from this directory")
	flagSet.IntVarP(&opts.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of archives to build concurrently")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if opts.configPath == "" {
		return options{}, errors.New("--config is required")
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	if opts.jobs < 1 {
		opts.jobs = 1
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	base := filepath.Dir(opts.configPath)
	outDir := opts.outDir
	if outDir == "" {
		outDir = base
	}

	var store *cache.Store
	if opts.cacheDir != "" {
		backend, err := disk.New(opts.cacheDir)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		store = cache.New(backend, cache.WithLogger(logger))
	}

	res := resolver{base: base}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)
	for _, a := range cfg.Archives {
		g.Go(func() error {
			out := a.Output
			if !filepath.IsAbs(out) {
				out = filepath.Join(outDir, out)
			}
			if err := produce(gctx, a, res, out, store, logger); err != nil {
				return fmt.Errorf("%s: %w", a.Output, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("done",
		slog.Int("archives", len(cfg.Archives)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// produce builds one archive and writes it to out.
func produce(ctx context.Context, a archiveConfig, res resolver, out string, store *cache.Store, logger *slog.Logger) error {
	archive, err := a.build(ctx, res, zipbuild.WithLogger(logger))
	if err != nil {
		return err
	}
	if store == nil {
		return archive.WriteFile(ctx, out)
	}

	result, err := store.Materialize(ctx, archive)
	if err != nil {
		return err
	}
	if err := result.WriteFile(out); err != nil {
		return err
	}
	logger.Info("archive ready",
		slog.String("output", out),
		slog.Bool("cached", result.Hit),
		slog.String("digest", result.Descriptor.Digest.String()),
		slog.Int64("bytes", result.Descriptor.Size))
	return nil
}
