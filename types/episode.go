package types

import "fmt"

// Reason an episode ended
type Reason string

var (
	ReasonExit    Reason = "exit"
	ReasonFell    Reason = "fell"
	ReasonTimeout Reason = "timeout"
)

// EpisodeRecord is the read-only snapshot published after every episode
type EpisodeRecord struct {
	Episode int     `json:"episode"`
	Time    float64 `json:"time"`
	// cumulative reward of the agent, see the fall reset in the driver
	Reward        float64 `json:"reward"`
	EpisodeReward float64 `json:"episode_reward"`
	Epsilon       float64 `json:"epsilon"`
	Steps         int     `json:"steps"`
	Reason        Reason  `json:"reason"`
	Layout        int     `json:"layout"`
	AIControl     bool    `json:"ai_control"`
}

func (e EpisodeRecord) Completed() bool {
	return e.Reason == ReasonExit
}

// CSV formats the record as a row of episode_log.csv
func (e EpisodeRecord) CSV() string {
	return fmt.Sprintf("%d,%.3f,%.3f,%.5f,%d,%s", e.Episode, e.Time, e.Reward, e.Epsilon, e.Steps, e.Reason)
}

const EpisodeCSVHeader = "episode,time,reward,epsilon,steps,reason"
