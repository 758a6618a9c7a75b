package types

import "context"

// Agent runs episodes one at a time for an experiment.
// A fresh agent is created for every run.
type Agent interface {
	// RunEpisode runs until the episode ends and returns its trace
	RunEpisode(context.Context) (*Trace, EpisodeRecord, error)
	// Record stores the learned policy at the given path
	Record(string) error
}

// AgentFactory creates the agent of an experiment for the given run
type AgentFactory func(run int) (Agent, error)
