package platformer

import (
	"fmt"
	"math"
)

// RewardConfig holds the shaping constants of the reward function
type RewardConfig struct {
	TimePenaltyPerSec    float64 `json:"time_penalty_per_sec"`
	ProgressScale        float64 `json:"progress_scale"`
	ProgressXScale       float64 `json:"progress_x_scale"`
	LeftMovePenaltyPerPx float64 `json:"left_move_penalty_per_px"`
	IdlePenaltyPerSec    float64 `json:"idle_penalty_per_sec"`
	JumpPenaltyPerSec    float64 `json:"jump_penalty_per_sec"`
	FurthestXPerPx       float64 `json:"furthest_x_per_px"`

	ReachExit       float64 `json:"reach_exit"`
	TimeBonus       float64 `json:"time_bonus"`
	MinEpisodeTime  float64 `json:"min_episode_time"`
	FallDeath       float64 `json:"fall_death"`
	TimeoutPenalty  float64 `json:"timeout_penalty"`
	HazardDeath     float64 `json:"hazard_death"`
	HazardClearance float64 `json:"hazard_clearance"`
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		TimePenaltyPerSec:    4.5,
		ProgressScale:        0.25,
		ProgressXScale:       0.22,
		LeftMovePenaltyPerPx: 0.04,
		IdlePenaltyPerSec:    2.8,
		JumpPenaltyPerSec:    0.8,
		FurthestXPerPx:       0.018,
		ReachExit:            100.0,
		TimeBonus:            800.0,
		MinEpisodeTime:       0.5,
		FallDeath:            -50.0,
		TimeoutPenalty:       -30.0,
		HazardDeath:          -80.0,
		HazardClearance:      80.0,
	}
}

// Validate checks the standing invariants of the configuration
func (c RewardConfig) Validate() error {
	if c.ProgressXScale <= c.LeftMovePenaltyPerPx {
		return fmt.Errorf("progress x scale (%v) must exceed the left move penalty (%v)", c.ProgressXScale, c.LeftMovePenaltyPerPx)
	}
	if c.MinEpisodeTime <= 0 {
		return fmt.Errorf("min episode time must be positive, got %v", c.MinEpisodeTime)
	}
	return nil
}

// Transition carries the measurements of one simulation step that the
// reward function scores
type Transition struct {
	PrevDist float64
	NewDist  float64
	PrevX    float64
	NewX     float64

	ReachedExit    bool
	Fell           bool
	ReachedTimeout bool

	Dt          float64
	IdleWeight  float64
	EpisodeTime float64
	// FurthestXBonus is precomputed by the caller, zero unless the episode's
	// best horizontal reach was exceeded
	FurthestXBonus float64
	Input          InputState
}

// Reward is the linear sum of the shaping terms for one transition.
// The terminal terms are independent flags and can co-occur.
func Reward(c RewardConfig, t Transition) float64 {
	r := 0.0
	r -= c.TimePenaltyPerSec * t.Dt
	r += c.ProgressScale * (t.PrevDist - t.NewDist)

	dx := t.NewX - t.PrevX
	if dx > 0 {
		r += c.ProgressXScale * dx
	} else if dx < 0 {
		r -= c.LeftMovePenaltyPerPx * -dx
	}

	r -= c.IdlePenaltyPerSec * t.IdleWeight * t.Dt
	r += t.FurthestXBonus
	if t.Input.Jump {
		r -= c.JumpPenaltyPerSec * t.Dt
	}

	if t.ReachedExit {
		r += c.ReachExit + c.TimeBonus/math.Max(c.MinEpisodeTime, t.EpisodeTime)
	}
	if t.Fell {
		r += c.FallDeath
	}
	if t.ReachedTimeout {
		r += c.TimeoutPenalty
	}
	return r
}

// DistToExit is the euclidean distance between the actor center and the
// center of the visual exit
func DistToExit(b *Body, level Geometry) float64 {
	r := b.Rect()
	exit := level.Exit()
	return math.Hypot(float64(exit.CenterX()-r.CenterX()), float64(exit.CenterY()-r.CenterY()))
}
