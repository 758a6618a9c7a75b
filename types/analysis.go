package types

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"
	"strconv"

	"github.com/zeu5/platformer-rl/util"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information of the episodes of one experiment
// into a DataSet
type Analyzer interface {
	// run, record and trace of the episode
	Analyze(int, EpisodeRecord, *Trace)
	// Resulting dataset
	DataSet() DataSet
	// Reset the analyzer
	Reset()
}

// Analyzers are created per experiment so that experiments can run in parallel
type AnalyzerFactory func() Analyzer

// Comparator differentiates between different datasets with associated names
// run, total episodes, experiment names, datasets
type Comparator func(int, int, []string, []DataSet)

func NoopComparator() Comparator {
	return func(_, _ int, _ []string, _ []DataSet) {}
}

// CoverageAnalyzer counts the distinct states visited, cumulative per episode
type CoverageAnalyzer struct {
	uniqueStates    map[string]bool
	numUniqueStates []int
}

var _ Analyzer = &CoverageAnalyzer{}

func NewCoverageAnalyzer() Analyzer {
	return &CoverageAnalyzer{
		uniqueStates:    make(map[string]bool),
		numUniqueStates: make([]int, 0),
	}
}

func (c *CoverageAnalyzer) Analyze(_ int, _ EpisodeRecord, trace *Trace) {
	for j := 0; j < trace.Len(); j++ {
		s, _, ns, _, _ := trace.Get(j)
		c.uniqueStates[s.Hash()] = true
		c.uniqueStates[ns.Hash()] = true
	}
	c.numUniqueStates = append(c.numUniqueStates, len(c.uniqueStates))
}

func (c *CoverageAnalyzer) DataSet() DataSet {
	out := make([]int, len(c.numUniqueStates))
	copy(out, c.numUniqueStates)
	return out
}

func (c *CoverageAnalyzer) Reset() {
	c.uniqueStates = make(map[string]bool)
	c.numUniqueStates = make([]int, 0)
}

// RewardAnalyzer keeps the reward collected in every episode
type RewardAnalyzer struct {
	rewards []float64
}

var _ Analyzer = &RewardAnalyzer{}

func NewRewardAnalyzer() Analyzer {
	return &RewardAnalyzer{rewards: make([]float64, 0)}
}

func (r *RewardAnalyzer) Analyze(_ int, rec EpisodeRecord, _ *Trace) {
	r.rewards = append(r.rewards, rec.EpisodeReward)
}

func (r *RewardAnalyzer) DataSet() DataSet {
	out := make([]float64, len(r.rewards))
	copy(out, r.rewards)
	return out
}

func (r *RewardAnalyzer) Reset() {
	r.rewards = make([]float64, 0)
}

// CompletionDataSet holds the completion time of every episode, NaN when
// the episode did not reach the exit
type CompletionDataSet struct {
	Times   []float64
	Reasons map[Reason]int
}

// Completed returns the episode indices and times of the completed episodes
func (c CompletionDataSet) Completed() ([]float64, []float64) {
	eps := make([]float64, 0)
	times := make([]float64, 0)
	for i, t := range c.Times {
		if !math.IsNaN(t) {
			eps = append(eps, float64(i))
			times = append(times, t)
		}
	}
	return eps, times
}

type CompletionAnalyzer struct {
	data CompletionDataSet
}

var _ Analyzer = &CompletionAnalyzer{}

func NewCompletionAnalyzer() Analyzer {
	c := &CompletionAnalyzer{}
	c.Reset()
	return c
}

func (c *CompletionAnalyzer) Analyze(_ int, rec EpisodeRecord, _ *Trace) {
	c.data.Reasons[rec.Reason] += 1
	if rec.Completed() {
		c.data.Times = append(c.data.Times, rec.Time)
	} else {
		c.data.Times = append(c.data.Times, math.NaN())
	}
}

func (c *CompletionAnalyzer) DataSet() DataSet {
	times := make([]float64, len(c.data.Times))
	copy(times, c.data.Times)
	reasons := make(map[Reason]int, len(c.data.Reasons))
	for k, v := range c.data.Reasons {
		reasons[k] = v
	}
	return CompletionDataSet{Times: times, Reasons: reasons}
}

func (c *CompletionAnalyzer) Reset() {
	c.data = CompletionDataSet{
		Times:   make([]float64, 0),
		Reasons: make(map[Reason]int),
	}
}

func ensureDir(p string) {
	if _, err := os.Stat(p); err != nil {
		os.MkdirAll(p, os.ModePerm)
	}
}

func CoveragePlotter(plotPath string) Comparator {
	ensureDir(plotPath)
	return func(run, _ int, names []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "Comparison"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "States covered"
		for i := 0; i < len(names); i++ {
			uniqueStates := ds[i].([]int)
			if len(uniqueStates) == 0 {
				continue
			}
			points := make(plotter.XYs, len(uniqueStates))
			for j, v := range uniqueStates {
				points[j] = plotter.XY{
					X: float64(j),
					Y: float64(v),
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
			fmt.Printf("Number of unique states: %d for experiment: %s\n", uniqueStates[len(uniqueStates)-1], names[i])
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_coverage.png"))
	}
}

// movingAverage smooths the values over the given window
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		from := i - window + 1
		if from < 0 {
			from = 0
		}
		out[i] = stat.Mean(values[from:i+1], nil)
	}
	return out
}

// RewardPlotter plots the per episode reward, smoothed over window episodes
func RewardPlotter(plotPath string, window int) Comparator {
	ensureDir(plotPath)
	if window < 1 {
		window = 1
	}
	return func(run, _ int, names []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "Episode reward"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "Reward (moving average)"
		for i := 0; i < len(names); i++ {
			rewards := movingAverage(ds[i].([]float64), window)
			points := make(plotter.XYs, len(rewards))
			for j, v := range rewards {
				points[j] = plotter.XY{X: float64(j), Y: v}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_reward.png"))
	}
}

// CompletionPlotter scatters the completion times of every experiment
func CompletionPlotter(plotPath string) Comparator {
	ensureDir(plotPath)
	return func(run, _ int, names []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "Completion times"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "Seconds"
		for i := 0; i < len(names); i++ {
			eps, times := ds[i].(CompletionDataSet).Completed()
			if len(eps) == 0 {
				continue
			}
			points := make(plotter.XYs, len(eps))
			for j := range eps {
				points[j] = plotter.XY{X: eps[j], Y: times[j]}
			}
			scatter, err := plotter.NewScatter(points)
			if err != nil {
				continue
			}
			scatter.GlyphStyle.Color = plotutil.Color(i)
			scatter.GlyphStyle.Shape = plotutil.Shape(i)
			p.Add(scatter)
			p.Legend.Add(names[i], scatter)
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_completion.png"))
	}
}

// Summary of one experiment in one run
type Summary struct {
	Run            int            `json:"run"`
	Experiment     string         `json:"experiment"`
	Episodes       int            `json:"episodes"`
	Completed      int            `json:"completed"`
	CompletionRate float64        `json:"completion_rate"`
	MeanTime       float64        `json:"mean_time"`
	StdTime        float64        `json:"std_time"`
	BestTime       float64        `json:"best_time"`
	Reasons        map[Reason]int `json:"reasons"`
}

// Summarize computes the completion statistics of a dataset
func Summarize(run int, name string, ds CompletionDataSet) Summary {
	_, times := ds.Completed()
	s := Summary{
		Run:        run,
		Experiment: name,
		Episodes:   len(ds.Times),
		Completed:  len(times),
		Reasons:    ds.Reasons,
	}
	if s.Episodes > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Episodes)
	}
	if len(times) > 0 {
		s.MeanTime, s.StdTime = stat.MeanStdDev(times, nil)
		if len(times) == 1 {
			s.StdTime = 0
		}
		best := times[0]
		for _, t := range times[1:] {
			best = math.Min(best, t)
		}
		s.BestTime = best
	}
	return s
}

// SummaryComparator appends one json line per experiment to summary.jsonl
func SummaryComparator(savePath string) Comparator {
	ensureDir(savePath)
	return func(run, _ int, names []string, ds []DataSet) {
		for i, name := range names {
			s := Summarize(run, name, ds[i].(CompletionDataSet))
			bs, err := json.Marshal(s)
			if err != nil {
				continue
			}
			util.AppendToFile(path.Join(savePath, "summary.jsonl"), string(bs))
			fmt.Printf("Experiment %s: completed %d/%d, mean time %.2fs, best %.2fs\n", name, s.Completed, s.Episodes, s.MeanTime, s.BestTime)
		}
	}
}
