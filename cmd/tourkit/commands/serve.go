package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/metrics"
	"github.com/rushteam/tourkit/pkg/logging"
	"github.com/rushteam/tourkit/server"
	"github.com/rushteam/tourkit/serving"
	"github.com/rushteam/tourkit/snapshot"
	"github.com/rushteam/tourkit/store"
)

func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the active snapshot over HTTP",
		Long: `Load the active snapshot from the store and serve /recommend, /rank, /search
and /similar. SIGHUP or POST /admin/reload swaps in the currently active snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log := logging.Component("serve")

			s, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()
			repo := snapshot.NewRepository(s, cfg.Store.KeyPrefix)

			holder := snapshot.NewHolder(nil)
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			orch := serving.New(holder,
				serving.WithLoader(repo.LoadActive),
				serving.WithMetrics(metrics.New(reg)),
				serving.WithOptions(serving.Options{
					DefaultTopN: cfg.Serving.DefaultTopN,
					MaxTopN:     cfg.Serving.MaxTopN,
					RerankDepth: cfg.Serving.RerankDepth,
				}),
			)

			// 没有激活快照时仍然启动，/healthz 返回 503 直到 reload 成功
			if _, err := orch.Reload(ctx); err != nil {
				if !core.IsNotFound(err) {
					return err
				}
				log.Warn().Err(err).Msg("no active snapshot, serving unavailable until reload")
			}

			go reloadOnHangup(ctx, orch)

			srv := server.New(server.Config{
				Addr:               cfg.Server.Addr,
				ReadTimeout:        cfg.Server.ReadTimeout,
				WriteTimeout:       cfg.Server.WriteTimeout,
				RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
				Gatherer:           reg,
			}, orch)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	return cmd
}

// reloadOnHangup 收到 SIGHUP 时重新加载激活快照，失败保留旧快照
func reloadOnHangup(ctx context.Context, orch *serving.Orchestrator) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			_, _ = orch.Reload(ctx)
		}
	}
}
