package benchmarks

import (
	"fmt"
	"log/slog"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/policies"
	"github.com/zeu5/platformer-rl/sim"
)

// flags shared by the commands that run a driver
var (
	layout      int
	noTrain     bool
	human       bool
	loadTable   bool
	saveOnExit  bool
	speedup     float64
	fps         int
	storeKind   string
	qtablePath  string
	redisAddr   string
	redisKey    string
	xlsxPath    string
	actionHold  int
	updateEvery int
)

func addStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&storeKind, "store", "file", "Where the q-table is persisted (file, redis)")
	cmd.PersistentFlags().StringVar(&qtablePath, "qtable", "qtable.json", "Path of the q-table file store")
	cmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "127.0.0.1:6379", "Address of the redis store")
	cmd.PersistentFlags().StringVar(&redisKey, "redis-key", "platformer:qtable", "Key of the q-table in the redis store")
}

func addDriverFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().IntVar(&layout, "layout", 0, "Initial layout index")
	cmd.PersistentFlags().BoolVar(&noTrain, "no-train", false, "Act greedily on the loaded table without learning")
	cmd.PersistentFlags().BoolVar(&human, "human", false, "Start under human control")
	cmd.PersistentFlags().BoolVar(&loadTable, "load", false, "Load the q-table from the store before starting")
	cmd.PersistentFlags().BoolVar(&saveOnExit, "save-on-exit", false, "Save the q-table when the episode budget is spent")
	cmd.PersistentFlags().Float64Var(&speedup, "speedup", 1.0, "Simulation speed multiplier")
	cmd.PersistentFlags().IntVar(&fps, "fps", 60, "Simulation steps per simulated second")
	cmd.PersistentFlags().IntVar(&actionHold, "action-hold", 4, "Minimum number of steps an action is held")
	cmd.PersistentFlags().IntVar(&updateEvery, "update-every", 1, "Steps between action decisions")
	cmd.PersistentFlags().StringVar(&xlsxPath, "xlsx", "", "Also record the episodes to this spreadsheet")
	addStoreFlags(cmd)
}

// newStore builds the q-table store selected by the flags. The returned
// function releases it.
func newStore() (policies.Store, func(), error) {
	switch storeKind {
	case "file":
		return policies.NewFileStore(qtablePath), func() {}, nil
	case "redis":
		s := policies.NewRedisStore(redisAddr, redisKey)
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", storeKind)
	}
}

func simConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.FPS = fps
	cfg.Speedup = speedup
	cfg.MinActionHold = actionHold
	cfg.AIUpdateEvery = updateEvery
	cfg.Episodes = episodes
	cfg.SaveOnExit = saveOnExit
	cfg.AIControl = !human
	cfg.Training = !noTrain
	return cfg
}

func policyConfig(run int) policies.Config {
	cfg := policies.DefaultConfig()
	cfg.Seed = seed + uint64(run)
	if noTrain {
		// no exploration without learning
		cfg.Epsilon = cfg.MinEpsilon
	}
	return cfg
}

// newDriver wires the environment, the agent and the recorders of one run
func newDriver(cfg sim.Config, layoutIndex int, run int, opts ...sim.DriverOption) (*sim.Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pCfg := policyConfig(run)
	if err := pCfg.Validate(); err != nil {
		return nil, err
	}
	rewards := platformer.DefaultRewardConfig()
	if err := rewards.Validate(); err != nil {
		return nil, err
	}

	envCfg := platformer.DefaultEnvConfig()
	envCfg.Layout = layoutIndex
	envCfg.Horizon = horizon
	env := platformer.NewEnvironment(envCfg, rewards)
	return sim.NewDriver(cfg, env, rewards, policies.NewQLearningPolicy(pCfg), opts...), nil
}

// recorderOptions returns the episode recorders writing to the save folder
func recorderOptions() ([]sim.DriverOption, error) {
	logs, err := sim.NewLogRecorder(saveFile, slog.Default())
	if err != nil {
		return nil, err
	}
	opts := []sim.DriverOption{sim.WithObserver(logs)}
	if xlsxPath != "" {
		opts = append(opts, sim.WithObserver(sim.NewWorkbookRecorder(path.Join(saveFile, xlsxPath), slog.Default())))
	}
	return opts, nil
}
