package benchmarks

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	episodes int
	horizon  int
	saveFile string
	runs     int
	seed     uint64
	logLevel string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "platformer-rl",
		Short:         "Tabular Q-learning agent for a side scrolling platformer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 1000, "Number of episodes to run, 0 runs until quit")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 0, "Maximum steps of each episode, 0 disables the limit")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of experiment runs")
	rootCommand.PersistentFlags().Uint64Var(&seed, "seed", 123, "Seed of the exploration")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCommand.PersistentFlags().StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to file in the save folder")
	rootCommand.PersistentFlags().StringVar(&memprofile, "memprofile", "", "write memory profile to file in the save folder")
	// adding the subcommands here
	rootCommand.AddCommand(TrainCommand())
	rootCommand.AddCommand(CompareCommand())
	rootCommand.AddCommand(ServeCommand())
	rootCommand.AddCommand(QTableCommand())
	return rootCommand
}

func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
