package sim

import (
	"context"
	"time"

	"github.com/zeu5/platformer-rl/types"
)

// Run drives the simulation in real time, one frame per tick of the frame
// clock, until the context is cancelled or the driver quits. Cancellation
// quits the driver, which flushes the q-table first.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(d.config.FPS))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.Quit()
			return nil
		case now := <-ticker.C:
			d.Frame(now.Sub(last).Seconds())
			last = now
			if d.stopped {
				return nil
			}
		}
	}
}

// RunEpisodes runs n episodes as fast as possible. It stops early when the
// driver quits, for instance when the episode budget is spent.
func (d *Driver) RunEpisodes(ctx context.Context, n int) ([]types.EpisodeRecord, error) {
	records := make([]types.EpisodeRecord, 0, n)
	for i := 0; i < n; i++ {
		_, rec, err := d.RunEpisode(ctx)
		if err == ErrStopped {
			break
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
		if d.stopped {
			break
		}
	}
	return records, nil
}
