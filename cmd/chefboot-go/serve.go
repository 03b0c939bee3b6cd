package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/John-Robertt/chefboot-go/internal/app"
	"github.com/John-Robertt/chefboot-go/internal/config"
	"github.com/John-Robertt/chefboot-go/internal/httpapi"
)

type serveFlags struct {
	listen    string
	rateLimit float64
}

func (f *serveFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.listen, "listen", "", "override listen address")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "override http.rate_limit_rps (per client)")
}

func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("listen") {
		cfg.Listen = f.listen
	}
	if fs.Changed("rate-limit") {
		cfg.HTTP.RateLimitRPS = f.rateLimit
		if cfg.HTTP.RateLimitBurst <= 0 {
			cfg.HTTP.RateLimitBurst = int(f.rateLimit*2) + 1
		}
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve boot scripts over HTTP",
		Long: "Serve GET /bootstrap/{group}?os=unix|windows.\n\n" +
			"SIGHUP reloads the config file: the chef server URL is swapped and the group cache dropped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd.Flags(), cfg)
			return runServe(cmd.Context(), opts, cfg)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger(cfg)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: httpapi.NewHandler(a.Synth, httpapi.Options{
			RequestTimeout: cfg.HTTP.RequestTimeout,
			RateLimitRPS:   cfg.HTTP.RateLimitRPS,
			RateLimitBurst: cfg.HTTP.RateLimitBurst,
			Logger:         logger,
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	logger.Info("listening", "addr", "http://"+cfg.Listen, "groups", cfg.Groups.Source)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	for {
		select {
		case <-hup:
			next, err := opts.loadConfig()
			if err != nil {
				logger.Error("reload failed, keeping current config", "err", err)
				continue
			}
			if err := a.Reload(next); err != nil {
				logger.Error("reload failed, keeping current config", "err", err)
				continue
			}
			logger.Info("config reloaded", "server_url", next.Chef.ServerURL)
		case <-ctx.Done():
			logger.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shCtx); err != nil {
				logger.Error("graceful shutdown failed", "err", err)
				_ = srv.Close()
			}

			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	}
}
