package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coffersTech/photon/internal/controller"
	"github.com/coffersTech/photon/internal/server"
)

var (
	listenAddr    string
	webDir        string
	authTokenHash string
	debounce      time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the datasets over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:3333", "Address to listen on")
	serveCmd.Flags().StringVar(&webDir, "web", "", "Directory served under /_static/")
	serveCmd.Flags().StringVar(&authTokenHash, "auth-token-hash", os.Getenv("PHOTON_AUTH_TOKEN_HASH"), "bcrypt hash of the API bearer token (see hash-token)")
	serveCmd.Flags().DurationVar(&debounce, "reload-debounce", controller.DefaultDebounce, "Quiet period before reloading changed configs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := controller.NewStore(configDir, logger, reg)
	if _, err := store.Load(); err != nil {
		return err
	}

	srv := server.New(store, server.Config{
		Version:       Version,
		WebDir:        webDir,
		AuthTokenHash: authTokenHash,
	}, logger, reg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return store.Watch(ctx, debounce)
	})
	g.Go(func() error {
		return srv.Start(listenAddr)
	})
	g.Go(func() error {
		<-ctx.Done()
		level.Info(logger).Log("msg", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
