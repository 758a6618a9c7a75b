package sim

import (
	"fmt"
	"math"
)

// Config of the simulation driver
type Config struct {
	FPS int `json:"fps"`
	// TimeScale scales wall time before it enters the accumulator
	TimeScale        float64 `json:"time_scale"`
	MaxStepsPerFrame int     `json:"max_steps_per_frame"`

	// a new action is sampled every AIUpdateEvery ticks and held for at
	// least MinActionHold ticks
	AIUpdateEvery int `json:"ai_update_every"`
	MinActionHold int `json:"min_action_hold"`

	// on a fall the cumulative reward restarts at this fraction of the
	// best completion score
	FallRewardFraction float64 `json:"fall_reward_fraction"`

	// Episodes bounds the number of completed episodes, 0 is unbounded
	Episodes   int  `json:"episodes"`
	SaveOnExit bool `json:"save_on_exit"`

	AIControl bool    `json:"ai_control"`
	Training  bool    `json:"training"`
	Speedup   float64 `json:"speedup"`
}

func DefaultConfig() Config {
	return Config{
		FPS:                60,
		TimeScale:          0.85,
		MaxStepsPerFrame:   4,
		AIUpdateEvery:      1,
		MinActionHold:      4,
		FallRewardFraction: 0.3,
		Episodes:           0,
		SaveOnExit:         false,
		AIControl:          true,
		Training:           true,
		Speedup:            1.0,
	}
}

func (c Config) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.TimeScale <= 0 {
		return fmt.Errorf("time scale must be positive, got %v", c.TimeScale)
	}
	if c.MaxStepsPerFrame < 1 {
		return fmt.Errorf("at least one step per frame is required, got %d", c.MaxStepsPerFrame)
	}
	if c.AIUpdateEvery < 1 {
		return fmt.Errorf("ai update cadence must be at least 1, got %d", c.AIUpdateEvery)
	}
	if c.MinActionHold < 0 {
		return fmt.Errorf("action hold must not be negative, got %d", c.MinActionHold)
	}
	if c.Episodes < 0 {
		return fmt.Errorf("episode budget must not be negative, got %d", c.Episodes)
	}
	return validSpeedup(c.Speedup)
}

const maxSpeedup = 16.0

func validSpeedup(s float64) error {
	if s <= 0 || s > maxSpeedup {
		return fmt.Errorf("speedup must be in (0, %v], got %v", maxSpeedup, s)
	}
	return nil
}

// FixedDt is the duration of one simulation step in seconds
func (c Config) FixedDt() float64 {
	return 1.0 / float64(c.FPS)
}

// StepsPerFrame is the step cap of one frame, MaxStepsPerFrame for every
// started unit of speedup
func (c Config) StepsPerFrame(speedup float64) int {
	return c.MaxStepsPerFrame * int(math.Max(1, math.Ceil(speedup)))
}
