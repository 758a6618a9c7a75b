package types

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState string

func (s testState) Hash() string { return string(s) }

type testAction string

func (a testAction) Hash() string { return string(a) }

func testTrace(states ...string) *Trace {
	t := NewTrace()
	for i := 0; i+1 < len(states); i++ {
		t.Append(i, testState(states[i]), testAction("right"), testState(states[i+1]), 1)
	}
	return t
}

func TestTraceAccessors(t *testing.T) {
	trace := testTrace("a", "b", "c", "d")
	assert.Equal(t, 3, trace.Len())
	assert.Equal(t, 3.0, trace.TotalReward())

	s, a, ns, r, ok := trace.Get(1)
	require.True(t, ok)
	assert.Equal(t, "b", s.Hash())
	assert.Equal(t, "right", a.Hash())
	assert.Equal(t, "c", ns.Hash())
	assert.Equal(t, 1.0, r)

	_, _, _, _, ok = trace.Get(3)
	assert.False(t, ok)
	_, _, _, _, ok = trace.Get(-1)
	assert.False(t, ok)

	steps := trace.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, TraceStep{State: "c", Action: "right", NextState: "d", Reward: 1}, steps[2])
}

func TestCoverageAnalyzerIsCumulative(t *testing.T) {
	a := NewCoverageAnalyzer()
	a.Analyze(0, EpisodeRecord{}, testTrace("a", "b"))
	a.Analyze(0, EpisodeRecord{}, testTrace("b", "a"))
	a.Analyze(0, EpisodeRecord{}, testTrace("a", "c"))
	assert.Equal(t, []int{2, 2, 3}, a.DataSet())
	a.Reset()
	assert.Empty(t, a.DataSet())
}

func TestCompletionSummary(t *testing.T) {
	a := NewCompletionAnalyzer()
	a.Analyze(0, EpisodeRecord{Reason: ReasonFell, Time: 3}, NewTrace())
	a.Analyze(0, EpisodeRecord{Reason: ReasonExit, Time: 20}, NewTrace())
	a.Analyze(0, EpisodeRecord{Reason: ReasonExit, Time: 10}, NewTrace())
	a.Analyze(0, EpisodeRecord{Reason: ReasonTimeout, Time: 120}, NewTrace())

	ds := a.DataSet().(CompletionDataSet)
	assert.True(t, math.IsNaN(ds.Times[0]))
	eps, times := ds.Completed()
	assert.Equal(t, []float64{1, 2}, eps)
	assert.Equal(t, []float64{20, 10}, times)

	s := Summarize(0, "exp", ds)
	assert.Equal(t, 4, s.Episodes)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 0.5, s.CompletionRate)
	assert.Equal(t, 15.0, s.MeanTime)
	assert.Equal(t, 10.0, s.BestTime)
	assert.Equal(t, 1, s.Reasons[ReasonTimeout])
}

func TestMovingAverage(t *testing.T) {
	assert.Equal(t, []float64{1, 1.5, 2.5}, movingAverage([]float64{1, 2, 3}, 2))
}

func TestEpisodeRecordCSV(t *testing.T) {
	rec := EpisodeRecord{Episode: 3, Time: 12.5, Reward: -4.25, Epsilon: 0.1, Steps: 750, Reason: ReasonExit}
	assert.Equal(t, "3,12.500,-4.250,0.10000,750,exit", rec.CSV())
	assert.True(t, rec.Completed())
}

// countingAgent completes every other episode
type countingAgent struct {
	episodes int
	failAll  bool
}

func (c *countingAgent) RunEpisode(_ context.Context) (*Trace, EpisodeRecord, error) {
	if c.failAll {
		return nil, EpisodeRecord{}, errors.New("broken")
	}
	rec := EpisodeRecord{Episode: c.episodes, Time: 5, Reason: ReasonFell, EpisodeReward: float64(c.episodes)}
	if c.episodes%2 == 1 {
		rec.Reason = ReasonExit
	}
	c.episodes += 1
	return testTrace("a", "b"), rec, nil
}

func (c *countingAgent) Record(p string) error {
	return os.WriteFile(p, []byte("{}"), 0644)
}

func TestComparisonRunsEveryExperiment(t *testing.T) {
	dir := path.Join(t.TempDir(), "results")
	c, err := NewComparison(&ComparisonConfig{
		Runs:         2,
		Episodes:     6,
		RecordPath:   dir,
		RecordTraces: true,
		RecordPolicy: true,
	})
	require.NoError(t, err)

	summaries := make(map[string]Summary)
	c.AddAnalysis("completion", NewCompletionAnalyzer, func(run, _ int, names []string, ds []DataSet) {
		for i, name := range names {
			summaries[name] = Summarize(run, name, ds[i].(CompletionDataSet))
		}
	})
	c.AddAnalysis("rewards", NewRewardAnalyzer, NoopComparator())
	for _, name := range []string{"one", "two"} {
		c.AddExperiment(NewExperiment(name, func(int) (Agent, error) { return &countingAgent{}, nil }))
	}
	require.NoError(t, c.Run(context.Background()))

	require.Len(t, summaries, 2)
	assert.Equal(t, 3, summaries["one"].Completed)
	assert.Equal(t, 6, summaries["two"].Episodes)
	assert.FileExists(t, path.Join(dir, "policies", "one_1.json"))
	assert.FileExists(t, path.Join(dir, "traces", "two_0.jsonl"))

	bs, err := os.ReadFile(path.Join(dir, "comparison_config.json"))
	require.NoError(t, err)
	cfg := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(bs, &cfg))
	assert.Equal(t, c.ID.String(), cfg["id"])
	assert.ElementsMatch(t, []interface{}{"one", "two"}, cfg["experiments"])
}

func TestComparisonAbortsOnConsecutiveErrors(t *testing.T) {
	c, err := NewComparison(&ComparisonConfig{
		Episodes:               20,
		RecordPath:             t.TempDir(),
		ConsecutiveErrorsAbort: 3,
	})
	require.NoError(t, err)
	c.AddExperiment(NewExperiment("broken", func(int) (Agent, error) { return &countingAgent{failAll: true}, nil }))
	assert.Error(t, c.Run(context.Background()))
}

func TestComparisonRecordsEpisodeTimes(t *testing.T) {
	dir := t.TempDir()
	c, err := NewComparison(&ComparisonConfig{
		Episodes:    25,
		RecordPath:  dir,
		RecordTimes: true,
	})
	require.NoError(t, err)
	c.AddExperiment(NewExperiment("timed", func(int) (Agent, error) { return &countingAgent{}, nil }))
	require.NoError(t, c.Run(context.Background()))

	bs, err := os.ReadFile(path.Join(dir, "epTimes", "timed_ms.txt"))
	require.NoError(t, err)
	// one line per ten episodes
	lines := strings.Split(strings.TrimSpace(string(bs)), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, strings.Split(strings.TrimSuffix(strings.TrimSpace(lines[0]), ","), ","), 10)
}
