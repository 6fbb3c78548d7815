package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"finsview/internal/catalog"
	"finsview/internal/config"
	"finsview/internal/search"
	"finsview/internal/store"
	"finsview/internal/trace"
	"finsview/internal/tui"
	"finsview/internal/util"
	"finsview/pkg/gofins"
)

const version = "0.1.0"

func main() {
	cfgPath := flag.String("config", "", "configuration file (default $FINSVIEW_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource of the session so its deferred cleanup (trace
// flush, database and log file close) completes before main exits.
func run(cfgPath string) error {
	cfg, err := config.Load(config.ResolvePath(cfgPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The terminal belongs to the UI, so logs and spans go to a file.
	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = util.DailyLogPath(os.TempDir(), "finsview", time.Now())
	}
	logFile, err := util.OpenLogFile(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, logFile)
	util.SetDefault(logger)

	if err := trace.Init(trace.Options{Enabled: cfg.Tracing.Enabled, Version: version, Writer: logFile}); err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(ctx); err != nil {
			logger.Warn("trace shutdown", "error", err)
		}
	}()

	client := gofins.NewClient(gofins.Options{
		BaseURL:         cfg.API.BaseURL,
		Username:        cfg.API.Username,
		Password:        cfg.API.Password,
		Timeout:         cfg.API.Timeout,
		Retries:         cfg.API.Retries,
		RateLimitPerMin: cfg.API.RateLimitPerMin,
		Logger:          logger,
	})

	cat := catalog.New(logger)
	idx, err := search.New(cat, logger)
	if err != nil {
		logger.Error("creating search index", "error", err)
		return fmt.Errorf("creating search index: %w", err)
	}
	defer idx.Close()

	opts := tui.Options{
		API:          client,
		Catalog:      cat,
		Lists:        catalog.NewListCache(),
		Search:       idx,
		Prices:       store.NewParquetPriceCache(cfg.Storage.DataDir, cfg.Storage.PriceCacheTTL),
		PageSize:     cfg.UI.PageSize,
		PollInterval: cfg.Poller.Interval,
		BaseURL:      client.BaseURL(),
		Logger:       logger,
	}

	// Saved list filters are a convenience; run without them if the
	// database cannot be opened.
	states, err := store.NewSQLiteStore(filepath.Clean(cfg.Storage.SQLitePath))
	if err != nil {
		logger.Warn("view state disabled", "path", cfg.Storage.SQLitePath, "error", err)
	} else {
		defer states.Close()
		opts.ViewStates = states
	}

	logger.Info("starting finsview", "version", version, "api", client.BaseURL(), "log", logPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := tui.New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if fm, ok := final.(tui.Model); ok {
		fm.Close()
	}
	if err != nil {
		logger.Error("terminal UI stopped", "error", err)
		return err
	}
	logger.Info("finsview exited")
	return nil
}
