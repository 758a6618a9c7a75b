package benchmarks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zeu5/platformer-rl/sim"
	"github.com/zeu5/platformer-rl/types"
)

// trainProgress prints a single updating line of training progress
type trainProgress struct {
	completed int
	bestTime  float64
}

func (p *trainProgress) OnEpisode(rec types.EpisodeRecord) {
	if rec.Completed() {
		p.completed += 1
		if p.bestTime == 0 || rec.Time < p.bestTime {
			p.bestTime = rec.Time
		}
	}
	fmt.Printf("\rEps:%*d/%d, Exit:%*d, Best:%7.2fs, Epsilon:%.4f, Last:%-7s",
		len(fmt.Sprint(episodes)), rec.Episode, episodes, len(fmt.Sprint(episodes)), p.completed, p.bestTime, rec.Epsilon, rec.Reason)
}

func Train(ctx context.Context) error {
	if human {
		return errors.New("human control needs an input source, use the serve command")
	}
	if episodes <= 0 {
		return errors.New("headless training needs a positive number of episodes")
	}

	store, closeStore, err := newStore()
	if err != nil {
		return err
	}
	defer closeStore()

	opts, err := recorderOptions()
	if err != nil {
		return err
	}
	progress := &trainProgress{}
	opts = append(opts, sim.WithStore(store), sim.WithObserver(progress))

	driver, err := newDriver(simConfig(), layout, 0, opts...)
	if err != nil {
		return err
	}
	defer driver.Close()
	if loadTable {
		driver.Load()
	}

	stopProfiling, err := startProfiling()
	if err != nil {
		return err
	}
	defer stopProfiling()

	_, err = driver.RunEpisodes(ctx, episodes)
	fmt.Println("")
	if err != nil && ctx.Err() != nil {
		// interrupted, flush what was learned so far
		driver.Quit()
		return nil
	}
	return err
}

func TrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the agent headless for the given number of episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return Train(ctx)
		},
	}
	addDriverFlags(cmd)
	return cmd
}
