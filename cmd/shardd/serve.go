package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shardd/internal/engine"
	"shardd/internal/httpapi"
	"shardd/internal/node"
)

func newServeCmd() *cobra.Command {
	var (
		addr         string
		engineName   string
		corsOrigins  string
		inferTimeout int64
		maxBody      int64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if engineName != "" {
				cfg.EngineName = engineName
			}
			if origins := splitCSV(corsOrigins); len(origins) > 0 {
				cfg.CORSEnabled = true
				cfg.CORSOrigins = origins
			}
			log := newLogger(cfg)

			dl, closeDB, err := newDownloader(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			eng := engine.New(engine.Config{
				Name:          cfg.EngineName,
				Acquirer:      dl,
				MaxQueueDepth: cfg.MaxQueueDepth,
				MaxWait:       cfg.MaxWait.D(),
				Logger:        log.With().Str("component", "engine").Logger(),
				Publisher:     engine.NewLogPublisher(log.With().Str("component", "engine").Logger()),
			})
			svc := node.New(node.Config{
				Engine:            eng,
				Downloader:        dl,
				BroadcastInterval: cfg.BroadcastInterval.D(),
				Logger:            log.With().Str("component", "node").Logger(),
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			httpapi.SetLogger(log.With().Str("component", "http").Logger())
			httpapi.SetBaseContext(ctx)
			httpapi.SetMaxBodyBytes(maxBody)
			httpapi.SetInferTimeoutSeconds(inferTimeout)
			httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewMux(svc),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("engine", cfg.EngineName).Str("cache_dir", cfg.CacheDir).Msg("shardd listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			svc.Wait()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&engineName, "engine", "", "Engine namespace for download statuses")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	cmd.Flags().Int64Var(&inferTimeout, "infer-timeout", 0, "Per-request inference timeout in seconds (0 disables)")
	cmd.Flags().Int64Var(&maxBody, "max-body-bytes", 0, "Maximum JSON request body size (0 uses the default)")
	return cmd
}
