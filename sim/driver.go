package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/policies"
	"github.com/zeu5/platformer-rl/types"
)

// ErrStopped is returned when the driver has quit
var ErrStopped = errors.New("driver stopped")

// persistence happens outside the simulation loop but should not hang it
const persistTimeout = 5 * time.Second

// EpisodeObserver is notified with the record of every finished episode
type EpisodeObserver interface {
	OnEpisode(types.EpisodeRecord)
}

// StepObserver is notified after every simulation step
type StepObserver func(platformer.StepResult, float64)

type hazardKey struct {
	layout int
	hazard int
}

// Driver ties the environment, the agent and the reward together. It is
// single threaded: Frame, RunEpisode and Run must not be called
// concurrently. The outside world talks to it through the Controller.
type Driver struct {
	config  Config
	env     *platformer.Environment
	rewards platformer.RewardConfig
	policy  *policies.QLearningPolicy
	store   policies.Store
	control *Controller
	input   InputSource
	logger  *slog.Logger

	observers     []EpisodeObserver
	stepObservers []StepObserver

	settings     Settings
	accumulator  float64
	aiFrameAccum int
	actionHold   int
	lastState    *platformer.DiscreteState
	lastAction   policies.Action

	// hazards the actor has been left of during the current episode
	approached   map[hazardKey]bool
	pendingBonus *hazardKey
	awarded      map[hazardKey]bool

	episode       int
	completed     int
	bestTime      float64
	episodeReward float64
	trace         *types.Trace
	stopped       bool
	finished      *types.EpisodeRecord
}

var _ types.Agent = &Driver{}

// DriverOption customizes a Driver
type DriverOption func(*Driver)

func WithStore(store policies.Store) DriverOption {
	return func(d *Driver) { d.store = store }
}

func WithController(c *Controller) DriverOption {
	return func(d *Driver) { d.control = c }
}

// WithInput replaces the controller as the source of human input
func WithInput(in InputSource) DriverOption {
	return func(d *Driver) { d.input = in }
}

func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

func WithObserver(o EpisodeObserver) DriverOption {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

func WithStepObserver(o StepObserver) DriverOption {
	return func(d *Driver) { d.stepObservers = append(d.stepObservers, o) }
}

func NewDriver(config Config, env *platformer.Environment, rewards platformer.RewardConfig, policy *policies.QLearningPolicy, opts ...DriverOption) *Driver {
	d := &Driver{
		config:        config,
		env:           env,
		rewards:       rewards,
		policy:        policy,
		logger:        slog.Default(),
		observers:     make([]EpisodeObserver, 0),
		stepObservers: make([]StepObserver, 0),
		awarded:       make(map[hazardKey]bool),
		episode:       1,
	}
	for _, o := range opts {
		o(d)
	}
	if d.control == nil {
		d.control = NewController(Settings{
			AIControl: config.AIControl,
			Training:  config.Training,
			Speedup:   config.Speedup,
		})
	}
	if d.input == nil {
		d.input = d.control
	}
	d.observers = append(d.observers, d.control)
	d.settings = d.control.Settings()
	d.resetEpisode()
	return d
}

func (d *Driver) Controller() *Controller {
	return d.control
}

func (d *Driver) Policy() *policies.QLearningPolicy {
	return d.policy
}

func (d *Driver) Environment() *platformer.Environment {
	return d.env
}

// Stopped is true once the driver has quit
func (d *Driver) Stopped() bool {
	return d.stopped
}

// BestTime is the fastest completion so far, 0 when there is none
func (d *Driver) BestTime() float64 {
	return d.bestTime
}

// Frame advances the simulation by the wall time of one rendered frame.
// The scaled time is drained in fixed steps and the remainder carries over
// to the next frame. A frame runs at most MaxStepsPerFrame steps per unit
// of speedup, and any backlog beyond one frame's budget is dropped.
// Returns the number of steps taken.
func (d *Driver) Frame(frameDt float64) int {
	d.applyControl()
	if d.stopped {
		return 0
	}
	dt := d.config.FixedDt()
	d.accumulator += frameDt * d.config.TimeScale * d.settings.Speedup

	maxSteps := d.config.StepsPerFrame(d.settings.Speedup)
	steps := 0
	for d.accumulator >= dt && steps < maxSteps && !d.stopped {
		d.tick(dt)
		d.accumulator -= dt
		steps += 1
	}
	if budget := float64(maxSteps) * dt; d.accumulator > budget {
		d.accumulator = budget
	}
	d.control.Publish(d.Status())
	return steps
}

// RunEpisode steps the simulation without wall time until the current
// episode ends
func (d *Driver) RunEpisode(ctx context.Context) (*types.Trace, types.EpisodeRecord, error) {
	dt := d.config.FixedDt()
	d.finished = nil
	for d.finished == nil {
		select {
		case <-ctx.Done():
			return nil, types.EpisodeRecord{}, ctx.Err()
		default:
		}
		d.applyControl()
		if d.stopped {
			return nil, types.EpisodeRecord{}, ErrStopped
		}
		trace := d.trace
		d.tick(dt)
		if d.finished != nil {
			d.control.Publish(d.Status())
			return trace, *d.finished, nil
		}
	}
	return nil, types.EpisodeRecord{}, nil
}

// Record saves the q-table to a file
func (d *Driver) Record(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return d.policy.Save(ctx, policies.NewFileStore(path))
}

func (d *Driver) applyControl() {
	d.settings = d.control.Settings()
	for _, cmd := range d.control.Drain() {
		if d.stopped {
			return
		}
		switch cmd {
		case CommandReset:
			d.resetEpisode()
		case CommandNextLayout:
			d.env.Level.NextLayout()
			d.awarded = make(map[hazardKey]bool)
			d.resetEpisode()
		case CommandNextTheme:
			d.env.Level.NextTheme()
		case CommandSave:
			d.Save()
		case CommandLoad:
			d.Load()
		case CommandQuit:
			d.Quit()
		}
	}
}

// tick runs one fixed simulation step
func (d *Driver) tick(dt float64) {
	var in platformer.InputState
	if d.settings.AIControl {
		d.aiFrameAccum += 1
		if d.aiFrameAccum >= d.config.AIUpdateEvery {
			d.aiFrameAccum = 0
			if d.actionHold <= 0 {
				state := d.env.State()
				d.lastState = &state
				d.lastAction = d.policy.NextAction(state)
				d.actionHold = d.config.MinActionHold
			} else {
				d.actionHold -= 1
			}
		}
		in = policies.ActionToInput(d.lastAction)
	} else {
		in = d.input.Input()
		state := d.env.State()
		d.lastState = &state
		d.lastAction = policies.ActionFromInput(in)
	}

	res := d.env.Step(dt, in)
	reward := platformer.Reward(d.rewards, res.Transition)
	if res.DiedToHazard {
		reward += d.rewards.HazardDeath
	}
	reward += d.hazardClearance(res)

	done := res.Done()
	next := d.env.State()
	if d.lastState != nil {
		if d.settings.Training {
			d.policy.Update(reward, *d.lastState, next, d.lastAction, done)
		}
		d.trace.Append(d.env.Steps-1, *d.lastState, d.lastAction, next, reward)
	}
	d.episodeReward += reward

	for _, o := range d.stepObservers {
		o(res, reward)
	}
	if done {
		d.endEpisode(res)
	}
}

// hazardClearance returns the bonus for landing after passing a hazard
// from its left side, at most once per hazard of a layout
func (d *Driver) hazardClearance(res platformer.StepResult) float64 {
	layout := d.env.Level.LayoutIndex()
	if d.pendingBonus == nil {
		for i, h := range d.env.Level.Hazards() {
			key := hazardKey{layout: layout, hazard: i}
			if d.awarded[key] {
				continue
			}
			if res.PrevX < float64(h.Left()) {
				d.approached[key] = true
			}
			if d.approached[key] && res.NewX >= float64(h.Right()) {
				d.pendingBonus = &key
				break
			}
		}
	}
	if d.pendingBonus != nil && res.OnGround {
		key := *d.pendingBonus
		d.pendingBonus = nil
		if !d.awarded[key] {
			d.awarded[key] = true
			return d.rewards.HazardClearance
		}
	}
	return 0
}

func (d *Driver) endEpisode(res platformer.StepResult) {
	rec := types.EpisodeRecord{
		Episode:       d.episode,
		Time:          d.env.EpisodeTime,
		EpisodeReward: d.episodeReward,
		Steps:         d.env.Steps,
		Layout:        d.env.Level.LayoutIndex(),
		AIControl:     d.settings.AIControl,
	}
	switch {
	case res.ReachedExit:
		rec.Reason = types.ReasonExit
		if d.bestTime == 0 || rec.Time < d.bestTime {
			d.bestTime = rec.Time
		}
	case res.Fell:
		rec.Reason = types.ReasonFell
		d.policy.TotalReward = 0
		if d.bestTime > 0 {
			d.policy.TotalReward = d.config.FallRewardFraction * d.rewards.TimeBonus / d.bestTime
		}
	default:
		rec.Reason = types.ReasonTimeout
	}
	rec.Reward = d.policy.TotalReward
	rec.Epsilon = d.policy.Epsilon()

	d.logger.Debug("episode finished",
		"episode", rec.Episode,
		"reason", rec.Reason,
		"time", rec.Time,
		"reward", rec.EpisodeReward,
		"epsilon", rec.Epsilon,
	)
	for _, o := range d.observers {
		o.OnEpisode(rec)
	}
	d.finished = &rec

	d.episode += 1
	d.completed += 1
	d.resetEpisode()

	if d.config.Episodes > 0 && d.completed >= d.config.Episodes {
		d.stop(d.config.SaveOnExit)
	}
}

func (d *Driver) resetEpisode() {
	d.env.Reset()
	d.lastState = nil
	d.lastAction = policies.Idle
	d.actionHold = 0
	d.aiFrameAccum = 0
	d.pendingBonus = nil
	d.approached = make(map[hazardKey]bool)
	d.episodeReward = 0
	d.trace = types.NewTrace()
}

// Save persists the q-table. Failures are logged and otherwise ignored.
func (d *Driver) Save() {
	if d.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := d.policy.Save(ctx, d.store); err != nil {
		d.logger.Warn("saving q-table", "store", d.store.String(), "error", err)
		return
	}
	d.logger.Info("saved q-table", "store", d.store.String(), "states", d.policy.Table().Len())
}

// Load replaces the q-table with the stored one. On failure the current
// table stays in place.
func (d *Driver) Load() {
	if d.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := d.policy.Load(ctx, d.store); err != nil {
		d.logger.Warn("loading q-table", "store", d.store.String(), "error", err)
		return
	}
	d.logger.Info("loaded q-table", "store", d.store.String(), "states", d.policy.Table().Len())
}

// Quit stops the driver after a best-effort save
func (d *Driver) Quit() {
	d.stop(true)
}

func (d *Driver) stop(save bool) {
	if d.stopped {
		return
	}
	if save {
		d.Save()
	}
	d.stopped = true
	d.control.Publish(d.Status())
}

// Close releases the observers that hold resources
func (d *Driver) Close() error {
	var errs []error
	for _, o := range d.observers {
		if c, ok := o.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) Status() Status {
	return Status{
		Settings:    d.settings,
		Episode:     d.episode,
		Completed:   d.completed,
		EpisodeTime: d.env.EpisodeTime,
		BestTime:    d.bestTime,
		Epsilon:     d.policy.Epsilon(),
		TotalReward: d.policy.TotalReward,
		TableSize:   d.policy.Table().Len(),
		Layout:      d.env.Level.LayoutIndex(),
		Theme:       d.env.Level.ThemeName(),
		X:           d.env.Body.X,
		Y:           d.env.Body.Y,
		Alive:       d.env.Body.Alive,
		Stopped:     d.stopped,
	}
}
