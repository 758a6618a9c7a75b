package types

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeu5/platformer-rl/util"
	"golang.org/x/sync/errgroup"
)

type experimentRunConfig struct {
	// execution configuration
	CurrentRun int
	Episodes   int
	Analyzers  map[string]Analyzer
	Context    context.Context

	// thresholds to abort the experiment
	ConsecutiveErrorsAbort int

	// record flags
	RecordTraces bool
	RecordTimes  bool
	RecordPolicy bool

	ReportSavePath string
	Output         *ParallelOutput

	//misc
	LongestExpNameLen int
}

// Experiment encapsulates the agent and the analysis of its episodes
type Experiment struct {
	Name     string
	newAgent AgentFactory
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, newAgent AgentFactory) *Experiment {
	return &Experiment{
		Name:     name,
		newAgent: newAgent,
	}
}

func (e *Experiment) recordTrace(rConfig *experimentRunConfig, rec EpisodeRecord, trace *Trace) {
	tracesFile := path.Join(rConfig.ReportSavePath, "traces", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun)+".jsonl")
	bs, err := json.Marshal(map[string]interface{}{
		"record": rec,
		"steps":  trace.Steps(),
	})
	if err != nil {
		return
	}
	util.AppendToFile(tracesFile, string(bs))
}

func (e *Experiment) status(rConfig *experimentRunConfig, episodes, completed, errors int, epsilon float64) string {
	EPPadding := len(strconv.Itoa(rConfig.Episodes))
	return fmt.Sprintf("Exp:%*s, Eps:%*d/%d, Exit:%*d [%5.1f%%], Err:%*d, Epsilon:%.4f",
		rConfig.LongestExpNameLen, e.Name, EPPadding, episodes, rConfig.Episodes,
		EPPadding, completed, float32(completed)/float32(max(episodes, 1))*100, EPPadding, errors, epsilon)
}

// Run the experiment for the specified number of episodes, feeding every
// episode to the analyzers
func (e *Experiment) Run(rConfig *experimentRunConfig) error {
	agent, err := e.newAgent(rConfig.CurrentRun)
	if err != nil {
		return fmt.Errorf("creating agent for %s: %w", e.Name, err)
	}

	totalEpisodes := 0
	totalCompleted := 0
	totalWithError := 0
	consecutiveErrors := 0
	episodeTimes := make([]time.Duration, 0)
	epsilon := 0.0

	rConfig.Output.Set(e.status(rConfig, 0, 0, 0, epsilon))

	for totalEpisodes < rConfig.Episodes {
		select {
		case <-rConfig.Context.Done():
			return nil
		default:
		}

		start := time.Now()
		trace, rec, err := agent.RunEpisode(rConfig.Context)
		episodeTimes = append(episodeTimes, time.Since(start))
		totalEpisodes += 1

		if err != nil {
			totalWithError += 1
			consecutiveErrors += 1
			if consecutiveErrors >= rConfig.ConsecutiveErrorsAbort {
				rConfig.Output.Set(e.status(rConfig, totalEpisodes, totalCompleted, totalWithError, epsilon) + " (aborted)")
				return fmt.Errorf("aborting experiment %s: %d consecutive errors, last: %w", e.Name, consecutiveErrors, err)
			}
			continue
		}
		consecutiveErrors = 0
		epsilon = rec.Epsilon
		if rec.Completed() {
			totalCompleted += 1
		}

		if rConfig.RecordTraces {
			e.recordTrace(rConfig, rec, trace)
		}

		for _, a := range rConfig.Analyzers {
			a.Analyze(rConfig.CurrentRun, rec, trace)
		}

		// print episode times
		if len(episodeTimes) == 10 {
			if rConfig.RecordTimes {
				e.printEpTimesMs(episodeTimes, rConfig.ReportSavePath)
			}
			episodeTimes = make([]time.Duration, 0)
		}

		rConfig.Output.TrySet(e.status(rConfig, totalEpisodes, totalCompleted, totalWithError, epsilon))
	}
	rConfig.Output.Set(e.status(rConfig, totalEpisodes, totalCompleted, totalWithError, epsilon))

	if rConfig.RecordPolicy {
		return agent.Record(path.Join(rConfig.ReportSavePath, "policies", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun)+".json"))
	}
	return nil
}

func (e *Experiment) printEpTimesMs(epTimes []time.Duration, basePath string) {
	tMilliseconds := ""
	for _, tm := range epTimes {
		tMilliseconds = fmt.Sprintf("%s%7d, ", tMilliseconds, tm.Milliseconds())
	}
	filePath := path.Join(basePath, "epTimes", e.Name+"_ms.txt")
	util.AppendToFile(filePath, tMilliseconds)
}

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs     int // number of runs
	Episodes int // number of episodes

	RecordPath string // path to store the results

	// thresholds to abort the experiment
	ConsecutiveErrorsAbort int

	// record flags
	RecordTraces bool
	RecordTimes  bool
	RecordPolicy bool

	// seconds between refreshes of the terminal printer, 0 disables it
	PrintFrequency int

	// free form parameters recorded alongside the configuration
	Parameters map[string]interface{}
}

// record the configuration of the comparison
func (c *Comparison) recordConfig() error {
	cfg := c.cConfig

	out := make(map[string]interface{})
	out["id"] = c.ID.String()
	out["runs"] = cfg.Runs
	out["episodes"] = cfg.Episodes
	out["record_traces"] = cfg.RecordTraces
	out["record_times"] = cfg.RecordTimes
	out["record_policy"] = cfg.RecordPolicy
	out["parameters"] = cfg.Parameters

	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0)
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	out["analyzers"] = analyzers

	bs, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(cfg.RecordPath, "comparison_config.json"), bs, 0644)
}

// Comparison contains the different experiments to compare
// The episodes of the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	ID          uuid.UUID
	Experiments []*Experiment
	analyzers   map[string]AnalyzerFactory
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
}

// NewComparison creates a comparison instance and prepares the record folders
func NewComparison(config *ComparisonConfig) (*Comparison, error) {
	if config.ConsecutiveErrorsAbort == 0 {
		config.ConsecutiveErrorsAbort = 10
	}
	if config.Runs < 1 {
		config.Runs = 1
	}

	if _, err := os.Stat(config.RecordPath); err == nil {
		if err := RemoveContents(config.RecordPath); err != nil {
			return nil, err
		}
	}

	foldersToCreate := []string{""}
	if config.RecordTraces {
		foldersToCreate = append(foldersToCreate, "traces")
	}
	if config.RecordTimes {
		foldersToCreate = append(foldersToCreate, "epTimes")
	}
	if config.RecordPolicy {
		foldersToCreate = append(foldersToCreate, "policies")
	}
	for _, s := range foldersToCreate {
		if err := os.MkdirAll(path.Join(config.RecordPath, s), 0777); err != nil {
			return nil, err
		}
	}

	return &Comparison{
		ID:          uuid.New(),
		Experiments: make([]*Experiment, 0),
		analyzers:   make(map[string]AnalyzerFactory),
		comparators: make(map[string]Comparator),
		cConfig:     config,
	}, nil
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer AnalyzerFactory, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// Run the comparison. The experiments of a run execute in parallel, each
// with its own agent and analyzers.
func (c *Comparison) Run(ctx context.Context) error {
	if err := c.recordConfig(); err != nil { // store configuration details to a file
		return err
	}

	longestNameLen := 0
	for _, e := range c.Experiments {
		if len(e.Name) > longestNameLen {
			longestNameLen = len(e.Name)
		}
	}

	// one set of analyzers per experiment, reset at the start of every run
	analyzers := make([]map[string]Analyzer, len(c.Experiments))
	for i := range c.Experiments {
		analyzers[i] = make(map[string]Analyzer)
		for name, newAnalyzer := range c.analyzers {
			analyzers[i][name] = newAnalyzer()
		}
	}

	for run := 0; run < c.cConfig.Runs; run++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		fmt.Printf("Run %d\n", run+1)

		outputs := make([]*ParallelOutput, len(c.Experiments))
		rConfigs := make([]*experimentRunConfig, len(c.Experiments))
		for i := range c.Experiments {
			outputs[i] = NewParallelOutput()
			for _, a := range analyzers[i] {
				a.Reset()
			}
			rConfigs[i] = c.prepareRunConfig(ctx, run, longestNameLen, outputs[i], analyzers[i])
		}

		var printer *TerminalPrinter
		if c.cConfig.PrintFrequency > 0 {
			printer = NewTerminalPrinter(ctx, &outputs, c.cConfig.PrintFrequency)
			printer.Start()
		}

		g, gCtx := errgroup.WithContext(ctx)
		for i, e := range c.Experiments {
			e, rCfg := e, rConfigs[i]
			rCfg.Context = gCtx
			g.Go(func() error {
				defer rCfg.Output.Done()
				return e.Run(rCfg)
			})
		}
		err := g.Wait()
		if printer != nil {
			printer.Stop()
		}
		for _, o := range outputs {
			fmt.Println(o.Get())
		}
		if err != nil {
			return err
		}

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			names[i] = e.Name
		}
		for name, comp := range c.comparators {
			datasets := make([]DataSet, len(c.Experiments))
			for i := range c.Experiments {
				datasets[i] = rConfigs[i].Analyzers[name].DataSet()
			}
			comp(run, c.cConfig.Episodes, names, datasets) // make the plots
		}
	}
	return nil
}

// prepare the run configuration for the experiment
func (c *Comparison) prepareRunConfig(ctx context.Context, run int, longestExpNameLen int, output *ParallelOutput, analyzers map[string]Analyzer) *experimentRunConfig {
	return &experimentRunConfig{
		CurrentRun:             run,
		Episodes:               c.cConfig.Episodes,
		Analyzers:              analyzers,
		RecordTraces:           c.cConfig.RecordTraces,
		RecordTimes:            c.cConfig.RecordTimes,
		RecordPolicy:           c.cConfig.RecordPolicy,
		ReportSavePath:         c.cConfig.RecordPath,
		ConsecutiveErrorsAbort: c.cConfig.ConsecutiveErrorsAbort,
		Context:                ctx,
		Output:                 output,

		LongestExpNameLen: longestExpNameLen,
	}
}

// Delete everything in the directory except the outtext.txt file
func RemoveContents(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	names, err := d.Readdirnames(-1)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name != "outtext.txt" {
			err = os.RemoveAll(path.Join(dir, name))
			if err != nil {
				return err
			}
		}
	}
	return nil
}
