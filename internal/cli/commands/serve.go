package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/conduit-lang/catalog/internal/metrics"
	"github.com/conduit-lang/catalog/internal/watch"
	"github.com/conduit-lang/catalog/internal/web/server"
	"github.com/conduit-lang/catalog/runtime/catalog"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var (
		address string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP and keep it live",
		Long: `Scan the source tree, watch it for changes and serve the registry.

Endpoints:
  GET  /api/components      list with category, search, sortBy, sortDirection, limit, offset
  GET  /api/components/*    one component by path
  GET  /api/changes         change log
  GET  /api/dependents      components importing ?path
  GET  /api/dependencies    dependency graph of ?path
  GET  /api/regressions     render time regressions
  POST /api/performance     record a performance sample for ?path
  POST /api/rescan          full rescan (rate limited)
  GET  /api/events          websocket stream of registry changes
  GET  /healthz, /metrics

Examples:
  catalog serve
  catalog serve --address 127.0.0.1:8080 --no-watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ws, err := openWorkspace(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ws.Close()
			cfg, logger := ws.cfg, ws.logger

			m := metrics.New(metrics.Config{})
			apiOpts := []catalog.Option{catalog.WithMetrics(m)}

			var watcher *watch.Watcher
			if !noWatch {
				watcher = watch.New(ws.registry, ws.locator, ws.extractor,
					watch.WithDebounce(cfg.Watch.Debounce),
					watch.WithConcurrency(cfg.Concurrency),
					watch.WithLogger(logger),
					watch.WithObserver(func(path string, removed bool, err error) {
						switch {
						case err != nil:
							logger.Warn("extraction failed", zap.String("path", path), zap.Error(err))
						case removed:
							logger.Info("component file removed", zap.String("path", path))
						default:
							logger.Info("component file updated", zap.String("path", path))
						}
					}),
				)
				apiOpts = append(apiOpts, catalog.WithLiveSource(watcher))
			}
			api := ws.newAPI(apiOpts...)
			m.AttachRegistry(ws.registry)

			start := time.Now()
			if watcher != nil {
				res, err := watcher.Start(ctx)
				if err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				if res != nil {
					m.ObserveScan(res.Files, len(res.Failures), res.Duration)
					logger.Info("initial scan complete",
						zap.Int("files", res.Files),
						zap.Int("components", len(res.Components)),
						zap.Int("failures", len(res.Failures)),
						zap.Duration("duration", res.Duration))
				}
			} else if _, err := api.RescanComponents(ctx); err != nil {
				return fmt.Errorf("initial scan failed: %w", err)
			}

			hub := watch.NewHub(logger)
			hub.Attach(ws.registry)

			limit := rate.Every(server.DefaultRescanInterval)
			if cfg.Server.RescanRate > 0 {
				limit = rate.Every(cfg.Server.RescanRate)
			}
			handler := server.NewHandler(server.HandlerConfig{
				API:         api,
				Events:      hub,
				Metrics:     m,
				Logger:      logger,
				RescanRate:  limit,
				RescanBurst: 1,
			})

			srvCfg := server.DefaultConfig(handler)
			srvCfg.Address = cfg.Server.Address
			if address != "" {
				srvCfg.Address = address
			}
			srv, err := server.New(srvCfg)
			if err != nil {
				return err
			}

			shutdownCfg := server.DefaultShutdownConfig()
			shutdownCfg.Logger = logger
			gs := server.NewGracefulShutdown(srv, shutdownCfg)
			if watcher != nil {
				gs.RegisterHook(func(context.Context) error { return watcher.Stop() })
			}
			gs.RegisterHook(func(context.Context) error {
				hub.Close()
				return nil
			})

			out := cmd.OutOrStdout()
			banner := color.New(color.FgCyan, color.Bold)
			fmt.Fprintln(out)
			banner.Fprintln(out, "📦 Component catalog")
			fmt.Fprintf(out, "   Components: %d (ready in %s)\n", ws.registry.Len(), time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(out, "   API:        http://%s/api/components\n", displayAddr(srvCfg.Address))
			if watcher != nil {
				fmt.Fprintf(out, "   Watching:   %d root(s)\n", len(ws.locator.Roots()))
			}
			fmt.Fprintln(out)
			color.New(color.FgYellow).Fprintln(out, "⌨️  Press Ctrl+C to stop")

			return gs.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (default: server.address)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Serve a one-off scan without watching for changes")

	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
