package types

// Trace of an episode as quadruplets (state, action, nextState, reward)
type Trace struct {
	states     []State
	actions    []Action
	nextStates []State
	rewards    []float64
}

func NewTrace() *Trace {
	return &Trace{
		states:     make([]State, 0),
		actions:    make([]Action, 0),
		nextStates: make([]State, 0),
		rewards:    make([]float64, 0),
	}
}

func (t *Trace) Append(step int, state State, action Action, nextState State, reward float64) {
	t.states = append(t.states, state)
	t.actions = append(t.actions, action)
	t.nextStates = append(t.nextStates, nextState)
	t.rewards = append(t.rewards, reward)
}

func (t *Trace) Len() int {
	return len(t.states)
}

func (t *Trace) Get(i int) (State, Action, State, float64, bool) {
	if i < 0 || i >= len(t.states) {
		return nil, nil, nil, 0, false
	}
	return t.states[i], t.actions[i], t.nextStates[i], t.rewards[i], true
}

// TotalReward sums the rewards of every step
func (t *Trace) TotalReward() float64 {
	sum := 0.0
	for _, r := range t.rewards {
		sum += r
	}
	return sum
}

// TraceStep is the serialized form of one step
type TraceStep struct {
	State     string  `json:"state"`
	Action    string  `json:"action"`
	NextState string  `json:"next_state"`
	Reward    float64 `json:"reward"`
}

// Steps returns the hashed steps of the trace, used when recording traces
func (t *Trace) Steps() []TraceStep {
	out := make([]TraceStep, len(t.states))
	for i := range t.states {
		out[i] = TraceStep{
			State:     t.states[i].Hash(),
			Action:    t.actions[i].Hash(),
			NextState: t.nextStates[i].Hash(),
			Reward:    t.rewards[i],
		}
	}
	return out
}
