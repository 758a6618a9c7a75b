package sim

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/policies"
	"github.com/zeu5/platformer-rl/types"
)

func newTestDriver(cfg Config, horizon int, opts ...DriverOption) *Driver {
	envCfg := platformer.DefaultEnvConfig()
	envCfg.Layout = 2
	envCfg.Horizon = horizon
	rewards := platformer.DefaultRewardConfig()
	env := platformer.NewEnvironment(envCfg, rewards)
	return NewDriver(cfg, env, rewards, policies.NewQLearningPolicy(policies.DefaultConfig()), opts...)
}

type fixedInput platformer.InputState

func (f fixedInput) Input() platformer.InputState { return platformer.InputState(f) }

func TestFrameCapsStepsPerFrame(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 0)
	assert.Equal(t, 4, d.Frame(1.0))
	// the backlog is cut to one frame's budget
	assert.LessOrEqual(t, d.accumulator, 4*d.config.FixedDt())
	assert.Equal(t, 4, d.Frame(0.1))
	assert.Equal(t, 8, d.env.Steps)
}

func TestFastSpeedupKeepsAccumulatorBounded(t *testing.T) {
	frame := 1.0 / 60
	run := func(speedup float64) (*Driver, int) {
		d := newTestDriver(DefaultConfig(), 0)
		require.NoError(t, d.Controller().SetSpeedup(speedup))
		steps := 0
		for i := 0; i < 600; i++ {
			steps += d.Frame(frame)
			require.Less(t, d.accumulator, d.config.FixedDt(), "frame %d", i)
		}
		return d, steps
	}

	_, eight := run(8)
	d, sixteen := run(maxSpeedup)
	assert.Greater(t, sixteen, eight)
	assert.InDelta(t, 600*frame*d.config.TimeScale*maxSpeedup/d.config.FixedDt(), float64(sixteen), 1)

	// nothing is left to catch up once the speed goes back down
	require.NoError(t, d.Controller().SetSpeedup(1))
	for i := 0; i < 10; i++ {
		assert.LessOrEqual(t, d.Frame(frame), 1)
	}
}

func TestFrameScalesWallTime(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 0)
	frame := 1.0 / 60
	assert.Equal(t, 0, d.Frame(frame))
	assert.Equal(t, 1, d.Frame(frame))

	require.NoError(t, d.Controller().SetSpeedup(2))
	assert.Equal(t, 2, d.Frame(frame))
	assert.Error(t, d.Controller().SetSpeedup(0))
}

func TestActionIsHeldBetweenDecisions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Training = false
	d := newTestDriver(cfg, 50)
	d.policy = policies.NewQLearningPolicy(policies.Config{Alpha: 0.2, Gamma: 0.98, Epsilon: 1, MinEpsilon: 1, Decay: 1, Seed: 7})

	trace, rec, err := d.RunEpisode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ReasonTimeout, rec.Reason)
	require.Equal(t, 50, trace.Len())

	hold := cfg.MinActionHold + 1
	for i := 0; i < trace.Len(); i++ {
		s, a, _, _, _ := trace.Get(i)
		first, firstAction, _, _, _ := trace.Get(i - i%hold)
		assert.Equal(t, firstAction, a, "step %d", i)
		assert.Equal(t, first, s, "step %d", i)
	}
}

func TestDecisionThrottle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AIUpdateEvery = 3
	cfg.MinActionHold = 0
	d := newTestDriver(cfg, 9)

	trace, _, err := d.RunEpisode(context.Background())
	require.NoError(t, err)
	// no decision state exists before the first decision on the third tick
	assert.Equal(t, 7, trace.Len())
}

func TestEpisodeRecords(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 20)
	_, rec, err := d.RunEpisode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Episode)
	assert.Equal(t, 20, rec.Steps)
	assert.Equal(t, types.ReasonTimeout, rec.Reason)
	assert.True(t, rec.AIControl)
	assert.Equal(t, 2, rec.Layout)
	assert.InDelta(t, 20.0/60, rec.Time, 1e-9)
	assert.Equal(t, d.policy.Epsilon(), rec.Epsilon)

	_, rec, err = d.RunEpisode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Episode)
	assert.Equal(t, 2, d.Status().Completed)
	assert.Equal(t, 0, d.env.Steps)
}

func TestEpisodeBudgetStopsAndSaves(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 2
	cfg.SaveOnExit = true
	file := filepath.Join(t.TempDir(), "qtable.json")
	d := newTestDriver(cfg, 10, WithStore(policies.NewFileStore(file)))

	records, err := d.RunEpisodes(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.True(t, d.Stopped())
	assert.FileExists(t, file)
	assert.Equal(t, 0, d.Frame(1))

	_, _, err = d.RunEpisode(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestQuitCommandFlushesTable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "qtable.json")
	d := newTestDriver(DefaultConfig(), 0, WithStore(policies.NewFileStore(file)))
	d.Frame(0.1)
	d.Controller().Submit(CommandQuit)
	assert.Equal(t, 0, d.Frame(0.1))
	assert.True(t, d.Stopped())
	assert.True(t, d.Controller().Status().Stopped)

	restored := policies.NewQLearningPolicy(policies.DefaultConfig())
	require.NoError(t, restored.Load(context.Background(), policies.NewFileStore(file)))
	assert.Equal(t, d.policy.Table().Len(), restored.Table().Len())
}

func TestQuitSwallowsSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	d := newTestDriver(DefaultConfig(), 0, WithStore(policies.NewFileStore(filepath.Join(blocker, "qtable.json"))))
	d.Frame(0.1)
	assert.NotPanics(t, d.Quit)
	assert.True(t, d.Stopped())
}

func TestLoadFailureKeepsTable(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 0, WithStore(policies.NewFileStore(filepath.Join(t.TempDir(), "missing.json"))))
	d.Frame(0.2)
	size := d.policy.Table().Len()
	require.Greater(t, size, 0)
	d.Controller().Submit(CommandLoad)
	d.Frame(0)
	assert.Equal(t, size, d.policy.Table().Len())
}

func TestHazardClearanceAwardedOnce(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 0)
	spike := d.env.Level.Hazards()[0]
	left := float64(spike.Left() - 10)
	right := float64(spike.Right() + 5)

	clear := func() float64 {
		total := d.hazardClearance(platformer.StepResult{Transition: platformer.Transition{PrevX: left - 1, NewX: left}})
		total += d.hazardClearance(platformer.StepResult{Transition: platformer.Transition{PrevX: right - 1, NewX: right}})
		total += d.hazardClearance(platformer.StepResult{Transition: platformer.Transition{PrevX: right, NewX: right + 1}, OnGround: true})
		return total
	}

	assert.Equal(t, d.rewards.HazardClearance, clear())
	d.resetEpisode()
	assert.Equal(t, 0.0, clear())

	// a layout change forgets the awards
	for i := 0; i < platformer.NumLayouts; i++ {
		d.Controller().Submit(CommandNextLayout)
	}
	d.Frame(0)
	require.Equal(t, 2, d.env.Level.LayoutIndex())
	assert.Equal(t, d.rewards.HazardClearance, clear())
}

func TestHazardClearanceRequiresApproach(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 0)
	spike := d.env.Level.Hazards()[0]
	right := float64(spike.Right() + 5)
	got := d.hazardClearance(platformer.StepResult{Transition: platformer.Transition{PrevX: right, NewX: right + 1}, OnGround: true})
	assert.Equal(t, 0.0, got)
}

func TestFallResetsCumulativeReward(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 0)
	d.policy.TotalReward = 500
	d.endEpisode(platformer.StepResult{Transition: platformer.Transition{Fell: true}})
	assert.Equal(t, 0.0, d.policy.TotalReward)

	d.env.EpisodeTime = 10
	d.endEpisode(platformer.StepResult{Transition: platformer.Transition{ReachedExit: true}})
	assert.Equal(t, 10.0, d.BestTime())

	d.policy.TotalReward = 500
	d.endEpisode(platformer.StepResult{Transition: platformer.Transition{Fell: true}})
	assert.InDelta(t, 0.3*800/10, d.policy.TotalReward, 1e-9)
}

func TestHumanControlTeachesAgent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AIControl = false
	d := newTestDriver(cfg, 30, WithInput(fixedInput{Right: true, Jump: true}))

	trace, rec, err := d.RunEpisode(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.AIControl)
	require.Equal(t, 30, trace.Len())
	for i := 0; i < trace.Len(); i++ {
		_, a, _, _, _ := trace.Get(i)
		assert.Equal(t, policies.Right, a)
	}
	assert.Equal(t, 30, d.policy.Steps)
	assert.Greater(t, rec.EpisodeReward, 0.0)
}

func TestTrainingToggle(t *testing.T) {
	d := newTestDriver(DefaultConfig(), 10)
	d.Controller().Submit(CommandToggleTraining)
	_, _, err := d.RunEpisode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, d.policy.Steps)
	assert.Equal(t, policies.DefaultConfig().Epsilon, d.policy.Epsilon())
}

func TestObserversSeeEveryEpisode(t *testing.T) {
	dir := t.TempDir()
	logs, err := NewLogRecorder(dir, slog.Default())
	require.NoError(t, err)
	book := NewWorkbookRecorder(filepath.Join(dir, "episodes.xlsx"), slog.Default())
	steps := 0
	d := newTestDriver(DefaultConfig(), 5,
		WithObserver(logs),
		WithObserver(book),
		WithStepObserver(func(platformer.StepResult, float64) { steps += 1 }),
	)
	records, _ := d.Controller().Subscribe(10)

	_, err = d.RunEpisodes(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, 15, steps)
	assert.Equal(t, 3, book.Rows())
	assert.FileExists(t, filepath.Join(dir, "episodes.xlsx"))
	assert.Len(t, records, 3)

	bs, err := os.ReadFile(filepath.Join(dir, EpisodeLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(bs)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, types.EpisodeCSVHeader, lines[0])
	assert.True(t, strings.HasSuffix(lines[3], ",timeout"))
	assert.NoFileExists(t, filepath.Join(dir, CompletionTimesFile))

	logs.OnEpisode(types.EpisodeRecord{Episode: 9, Time: 31.5, Reason: types.ReasonExit, AIControl: true})
	bs, err = os.ReadFile(filepath.Join(dir, CompletionTimesFile))
	require.NoError(t, err)
	assert.Equal(t, "9,31.5000\n", string(bs))
}

func TestRunStopsOnCancel(t *testing.T) {
	file := filepath.Join(t.TempDir(), "qtable.json")
	d := newTestDriver(DefaultConfig(), 0, WithStore(policies.NewFileStore(file)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.True(t, d.Stopped())
	assert.FileExists(t, file)
}

func TestLogRecorderStartsCompletionTimesEmpty(t *testing.T) {
	dir := t.TempDir()
	times := filepath.Join(dir, CompletionTimesFile)
	require.NoError(t, os.WriteFile(times, []byte("1,12.0000\n"), 0644))

	logs, err := NewLogRecorder(dir, slog.Default())
	require.NoError(t, err)
	bs, err := os.ReadFile(times)
	require.NoError(t, err)
	assert.Empty(t, bs)

	logs.OnEpisode(types.EpisodeRecord{Episode: 1, Time: 2, Reason: types.ReasonExit, AIControl: true})
	// human completions are not timed
	logs.OnEpisode(types.EpisodeRecord{Episode: 2, Time: 3, Reason: types.ReasonExit})
	bs, err = os.ReadFile(times)
	require.NoError(t, err)
	assert.Equal(t, "1,2.0000\n", string(bs))
}

func TestWorkbookRecorderLogsRowFailures(t *testing.T) {
	var out bytes.Buffer
	book := NewWorkbookRecorder(filepath.Join(t.TempDir(), "episodes.xlsx"), slog.New(slog.NewTextHandler(&out, nil)))
	book.OnEpisode(types.EpisodeRecord{Episode: 1, Reason: types.ReasonFell})
	require.Equal(t, 1, book.Rows())
	assert.Empty(t, out.String())

	// past the last row of a sheet
	book.row = 1048577
	book.OnEpisode(types.EpisodeRecord{Episode: 2, Reason: types.ReasonFell})
	assert.Contains(t, out.String(), "writing workbook row")
	assert.Equal(t, 1048577, book.row)
}
