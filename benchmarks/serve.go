package benchmarks

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zeu5/platformer-rl/server"
	"github.com/zeu5/platformer-rl/sim"
	"golang.org/x/sync/errgroup"
)

var addr string

// Serve runs the simulation in real time next to the control server. A quit
// command stops both.
func Serve(ctx context.Context) error {
	store, closeStore, err := newStore()
	if err != nil {
		return err
	}
	defer closeStore()

	opts, err := recorderOptions()
	if err != nil {
		return err
	}
	opts = append(opts, sim.WithStore(store))
	cfg := simConfig()
	driver, err := newDriver(cfg, layout, 0, opts...)
	if err != nil {
		return err
	}
	defer driver.Close()
	if loadTable {
		driver.Load()
	}

	srv := server.NewControlServer(addr, driver.Controller(), slog.Default())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return driver.Run(gCtx)
	})
	g.Go(func() error {
		return srv.Run(gCtx)
	})
	err = g.Wait()
	slog.Info("simulation stopped", "episodes", driver.Status().Completed, "best_time", driver.BestTime())
	return err
}

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation in real time with an HTTP control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return Serve(ctx)
		},
	}
	addDriverFlags(cmd)
	cmd.PersistentFlags().StringVar(&addr, "addr", "localhost:8080", "Address of the control server")
	return cmd
}
