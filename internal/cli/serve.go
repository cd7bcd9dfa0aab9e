package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gravitas-games/foundry/internal/server"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the world on a wall clock and stream it to websocket observers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.sim.Close()

			srv, err := server.New(a.cfg, a.sim, a.world.Catalog,
				server.WithLogger(a.logger),
				server.WithEventBus(a.bus),
				server.WithMetrics(a.collector, a.registry),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errChan := make(chan error, 2)
			go func() {
				if err := srv.Start(a.cfg.Address()); err != nil {
					errChan <- err
				}
			}()

			interval := time.Second / time.Duration(a.cfg.Server.TickRate)
			go func() {
				errChan <- a.sim.Run(ctx, interval, a.cfg.Simulation.MaxTicks, srv.BroadcastTick)
			}()

			select {
			case err = <-errChan:
				if err != nil {
					a.logger.Error("stopping after failure", "error", err)
				}
			case <-ctx.Done():
				a.logger.Info("received signal, shutting down")
			}

			stop()
			if shutdownErr := srv.Shutdown(); shutdownErr != nil && err == nil {
				err = shutdownErr
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
