package benchmarks

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/sim"
	"github.com/zeu5/platformer-rl/types"
)

var (
	recordTraces bool
	recordPolicy bool
	recordTimes  bool
	rewardWindow int
	printEvery   int
)

// experimentAgent returns a factory creating a fresh driver for every run
func experimentAgent(cfg sim.Config, layoutIndex int) types.AgentFactory {
	return func(run int) (types.Agent, error) {
		// the experiment controls the episode count
		cfg.Episodes = 0
		d, err := newDriver(cfg, layoutIndex, run)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func Compare(ctx context.Context) error {
	cfg := simConfig()
	cfg.AIControl = true
	cfg.Training = true

	c, err := types.NewComparison(&types.ComparisonConfig{
		Runs:         runs,
		Episodes:     episodes,
		RecordPath:   saveFile,
		RecordTraces: recordTraces,
		RecordTimes:  recordTimes,
		RecordPolicy: recordPolicy,

		PrintFrequency: printEvery,
		Parameters: map[string]interface{}{
			"sim":     cfg,
			"rewards": platformer.DefaultRewardConfig(),
			"policy":  policyConfig(0),
			"horizon": horizon,
		},
	})
	if err != nil {
		return err
	}
	plots := path.Join(saveFile, "plots")
	c.AddAnalysis("coverage", types.NewCoverageAnalyzer, types.CoveragePlotter(plots))
	c.AddAnalysis("reward", types.NewRewardAnalyzer, types.RewardPlotter(plots, rewardWindow))
	c.AddAnalysis("completion", types.NewCompletionAnalyzer, types.CompletionPlotter(plots))
	c.AddAnalysis("summary", types.NewCompletionAnalyzer, types.SummaryComparator(saveFile))

	for l := 0; l < platformer.NumLayouts; l++ {
		c.AddExperiment(types.NewExperiment(fmt.Sprintf("layout-%d", l), experimentAgent(cfg, l)))
	}
	noHold := cfg
	noHold.MinActionHold = 0
	c.AddExperiment(types.NewExperiment(fmt.Sprintf("layout-%d-nohold", layout), experimentAgent(noHold, layout)))

	stopProfiling, err := startProfiling()
	if err != nil {
		return err
	}
	defer stopProfiling()
	return c.Run(ctx)
}

func CompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the learning curves of the agent on every layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return Compare(ctx)
		},
	}
	addDriverFlags(cmd)
	cmd.PersistentFlags().BoolVar(&recordTraces, "traces", false, "Record the trace of every episode")
	cmd.PersistentFlags().BoolVar(&recordPolicy, "policies", true, "Record the learned q-tables")
	cmd.PersistentFlags().BoolVar(&recordTimes, "record-times", false, "Record the wall time of every episode in milliseconds")
	cmd.PersistentFlags().IntVar(&rewardWindow, "reward-window", 50, "Episodes averaged in the reward plot")
	cmd.PersistentFlags().IntVar(&printEvery, "print-every", 1, "Seconds between progress refreshes, 0 disables them")
	return cmd
}
