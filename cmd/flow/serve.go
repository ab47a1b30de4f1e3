package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/schedule"
	"github.com/KramerO/ollama-flow-sub002/internal/server"
	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run drone loops, the HTTP API and scheduled queries",
		Long: "Starts every drone's mailbox loop, serves the JSON API and fires configured\n" +
			"schedules until interrupted. Drones are marked inactive on shutdown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a, cmd)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "API port (overrides config)")
	return cmd
}

func serve(ctx context.Context, a *app, cmd *cobra.Command) error {
	coord, err := a.coordinator()
	if err != nil {
		return err
	}
	sched, err := schedule.New(a.cfg.Schedules, coord, a.log)
	if err != nil {
		return err
	}
	if err := coord.Register(ctx); err != nil {
		return err
	}
	defer func() {
		if err := drone.NewRegistry(a.db).Deactivate(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn("deactivate drones", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving %d schedule(s); press Ctrl-C to stop\n", sched.Len())

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return coord.RunDrones(gctx) })
	grp.Go(func() error { return sched.Run(gctx) })
	grp.Go(func() error {
		return server.Start(gctx, server.StartOpts{
			Coordinator: coord,
			Reader:      workflow.NewStore(a.db),
			Port:        a.cfg.Server.Port,
			Out:         out,
			Logger:      a.log,
		})
	})
	return grp.Wait()
}
