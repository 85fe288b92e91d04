package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"sideo/internal/config"
	"sideo/internal/live"
	"sideo/internal/pending"
	"sideo/internal/repository"
	"sideo/internal/storage"
	"sideo/internal/surface"
	"sideo/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "todo: %v\n", err)
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:           "todo",
	Short:         "A small personal task list",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

// app holds everything a command needs, opened from the resolved config.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	store   *storage.Store
	repo    *repository.Repository
	logFile *os.File
}

func openApp() (*app, error) {
	cfg, err := config.LoadOrCreate(config.ResolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}
	var out io.Writer = io.Discard
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		a.logFile = f
		out = f
	}
	a.logger = log.New(out, "todo ", log.LstdFlags)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.store = store

	a.repo = repository.New(store, repository.WithLogger(a.logger))
	a.repo.AddHook(surface.New(cfg.SurfacePath, cfg.SurfaceItems, a.repo, a.logger).Hook())
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// withApp opens the app around a command body.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, args)
	}
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	deleter := pending.New(a.repo, a.cfg.PendingDeleteDelay(), pending.WithLogger(a.logger))
	defer deleter.Close()
	feed := live.New(a.repo, a.store,
		live.WithRefresh(a.cfg.RefreshInterval()),
		live.WithLogger(a.logger),
	)

	if err := ui.Run(a.repo, feed, deleter, a.cfg); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
