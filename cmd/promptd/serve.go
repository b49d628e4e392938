package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"promptd/internal/config"
	"promptd/internal/httpapi"
	"promptd/internal/manager"
)

type serveOptions struct {
	addr         string
	idleTimeout  int
	inferTimeout time.Duration
	maxBody      int64
	cors         bool
	corsOrigins  string
	pull         bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = o.addr
			}
			if flags.Changed("idle-timeout") {
				cfg.IdleTimeoutSeconds = o.idleTimeout
			}
			if flags.Changed("max-body-bytes") {
				cfg.MaxBodyBytes = o.maxBody
			}
			if flags.Changed("cors") {
				cfg.CORSEnabled = o.cors
			}
			if flags.Changed("cors-origins") {
				cfg.CORSAllowedOrigins = config.SplitCSV(o.corsOrigins)
			}
			return serve(cmd.Context(), cfg, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "", "HTTP listen address, e.g. 127.0.0.1:8080")
	f.IntVar(&o.idleTimeout, "idle-timeout", 0, "Seconds of inactivity before the model is unloaded (0 disables)")
	f.DurationVar(&o.inferTimeout, "infer-timeout", 0, "Deadline for a single /infer request (0 disables)")
	f.Int64Var(&o.maxBody, "max-body-bytes", 0, "Maximum JSON request body size")
	f.BoolVar(&o.cors, "cors", false, "Enable CORS")
	f.StringVar(&o.corsOrigins, "cors-origins", "", "Comma separated allowed CORS origins")
	f.BoolVar(&o.pull, "pull", false, "Download the selected model at startup if it is missing")
	return cmd
}

func serve(parent context.Context, cfg config.Config, o *serveOptions) error {
	mgr, err := newManager(cfg, managerOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("stopping inference session")
		}
	}()

	httpapi.SetLogger(log.Logger)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeout(o.inferTimeout)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	if o.pull {
		if id := mgr.Selected(); id != "" {
			if e, ok := mgr.Entry(id); ok && !e.State.Busy() && e.State != manager.StateReady {
				if err := mgr.DownloadModel(id); err != nil {
					log.Warn().Err(err).Str("model", id).Msg("startup download")
				}
			}
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", mgr.ModelsDir()).Str("strategy", cfg.Strategy).Msg("promptd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Unblock streaming handlers before Shutdown waits on them.
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}
