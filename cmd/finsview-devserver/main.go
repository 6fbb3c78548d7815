package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"finsview/internal/config"
	"finsview/internal/httpapi"
	"finsview/internal/trace"
	"finsview/internal/util"
)

const version = "0.1.0"

type options struct {
	configPath string
	delay      time.Duration
	user       string
	admin      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "configuration file (default $FINSVIEW_CONFIG or "+config.DefaultPath+")")
	flag.DurationVar(&opts.delay, "processing-delay", 5*time.Second, "how long new analyses stay in processing")
	flag.StringVar(&opts.user, "user", "dev", "name of the signed-in user")
	flag.BoolVar(&opts.admin, "admin", true, "serve the user as an admin")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("%v", err)
	}
}

// run serves until SIGINT/SIGTERM; its deferred cleanup completes before
// main exits.
func run(opts options) error {
	cfg, err := config.Load(config.ResolvePath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logging.
	logFile, err := util.OpenLogFile(util.DailyLogPath(os.TempDir(), "finsview-devserver", time.Now()))
	if err != nil {
		return err
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
	util.SetDefault(logger)

	if err := trace.Init(trace.Options{Enabled: cfg.Tracing.Enabled, Version: version, Writer: logFile}); err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(ctx); err != nil {
			logger.Error("trace shutdown error", "error", err)
		}
	}()

	// Create backend and server. Credentials are enforced when configured.
	data := httpapi.NewBackend(httpapi.BackendOptions{
		ProcessingDelay: opts.delay,
		UserName:        opts.user,
		Admin:           opts.admin,
	}, logger)
	srv := httpapi.NewServer(data, httpapi.Options{
		Username: cfg.API.Username,
		Password: cfg.API.Password,
	}, logger)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort))
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", grpcAddr, err)
	}
	health := httpapi.NewHealthServer(logger)
	defer health.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := health.Serve(lis); err != nil {
			logger.Error("grpc health server error", "error", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("dev server listening", "addr", httpServer.Addr, "user", opts.user, "admin", opts.admin)
		health.SetServing(true)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down dev server")
	health.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving HTTP: %w", err)
	default:
		return nil
	}
}
