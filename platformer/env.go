package platformer

import "math"

// idle weight applies when grounded and slower than this
const idleSpeed = 20.0

// EnvConfig configures an Environment
type EnvConfig struct {
	Physics        PhysicsConfig
	Layout         int
	MaxEpisodeTime float64 // seconds
	// Horizon bounds the number of steps of an episode, 0 disables it
	Horizon int
}

func DefaultEnvConfig() EnvConfig {
	return EnvConfig{
		Physics:        DefaultPhysicsConfig(),
		Layout:         0,
		MaxEpisodeTime: 120.0,
		Horizon:        0,
	}
}

// Environment advances the body inside the level one fixed step at a time
// and measures what the reward function needs.
type Environment struct {
	Body  *Body
	Level *Level

	config      EnvConfig
	rewards     RewardConfig
	EpisodeTime float64
	Steps       int
	furthestX   int
}

// StepResult is the outcome of one Environment.Step
type StepResult struct {
	Transition
	// DiedToHazard is set when the actor touched a hazard during the step
	DiedToHazard bool
	HazardIndex  int
	PrevRect     Rect
	Rect         Rect
	OnGround     bool
}

// Done is true for any terminal outcome
func (s StepResult) Done() bool {
	return s.ReachedExit || s.Fell || s.ReachedTimeout
}

func NewEnvironment(config EnvConfig, rewards RewardConfig) *Environment {
	level := NewLevel(config.Layout, config.Physics.ActorHeight)
	return &Environment{
		Body:    NewBody(config.Physics, level.Spawn()),
		Level:   level,
		config:  config,
		rewards: rewards,
	}
}

// Reset starts a new episode at the spawn point of the current layout
func (e *Environment) Reset() DiscreteState {
	e.Body.Reset(e.Level.Spawn())
	e.EpisodeTime = 0
	e.Steps = 0
	e.furthestX = 0
	return e.State()
}

func (e *Environment) State() DiscreteState {
	return Discretize(e.Body, e.Level)
}

// Step applies the input for dt seconds
func (e *Environment) Step(dt float64, in InputState) StepResult {
	prevRect := e.Body.Rect()
	prevDist := DistToExit(e.Body, e.Level)

	e.Body.Update(dt, e.Level, in)
	e.EpisodeTime += dt
	e.Steps += 1

	rect := e.Body.Rect()
	res := StepResult{
		PrevRect:    prevRect,
		Rect:        rect,
		HazardIndex: -1,
	}
	res.ReachedExit = rect.Intersects(e.Level.ExitTrigger())
	if idx, ok := e.Level.HazardAt(rect); ok {
		e.Body.Alive = false
		res.DiedToHazard = true
		res.HazardIndex = idx
	}
	// at most one terminal flag, exit before fall before timeout
	res.Fell = !res.ReachedExit && !e.Body.Alive
	res.ReachedTimeout = !res.ReachedExit && !res.Fell &&
		(e.EpisodeTime >= e.config.MaxEpisodeTime || (e.config.Horizon > 0 && e.Steps >= e.config.Horizon))
	res.OnGround = e.Body.OnGround

	newX := rect.CenterX()
	res.PrevDist = prevDist
	res.NewDist = DistToExit(e.Body, e.Level)
	res.PrevX = float64(prevRect.CenterX())
	res.NewX = float64(newX)
	res.Dt = dt
	res.EpisodeTime = e.EpisodeTime
	res.Input = in
	if e.Body.OnGround && math.Abs(e.Body.VX) < idleSpeed {
		res.IdleWeight = 1.0
	}
	if newX > e.furthestX {
		res.FurthestXBonus = float64(newX-e.furthestX) * e.rewards.FurthestXPerPx
		e.furthestX = newX
	}
	return res
}
