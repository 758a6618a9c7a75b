package policies

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/zeu5/platformer-rl/platformer"
	"golang.org/x/exp/rand"
)

// Config holds the hyperparameters of the Q-learning policy
type Config struct {
	Alpha      float64 `json:"alpha"`
	Gamma      float64 `json:"gamma"`
	Epsilon    float64 `json:"epsilon"`
	MinEpsilon float64 `json:"min_epsilon"`
	// multiplicative decay applied after every transition
	Decay float64 `json:"decay"`
	Seed  uint64  `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Alpha:      0.2,
		Gamma:      0.98,
		Epsilon:    0.25,
		MinEpsilon: 0.02,
		Decay:      0.9985,
		Seed:       123,
	}
}

func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %v", c.Alpha)
	}
	if c.Gamma < 0 || c.Gamma >= 1 {
		return fmt.Errorf("gamma must be in [0, 1), got %v", c.Gamma)
	}
	if c.MinEpsilon < 0 || c.Epsilon < c.MinEpsilon || c.Epsilon > 1 {
		return fmt.Errorf("epsilon must satisfy 0 <= min (%v) <= epsilon (%v) <= 1", c.MinEpsilon, c.Epsilon)
	}
	if c.Decay <= 0 || c.Decay > 1 {
		return fmt.Errorf("decay must be in (0, 1], got %v", c.Decay)
	}
	return nil
}

// QLearningPolicy is an epsilon-greedy tabular Q-learning agent
type QLearningPolicy struct {
	qTable     *QTable
	alpha      float64
	gamma      float64
	epsilon    float64
	minEpsilon float64
	decay      float64
	rand       *rand.Rand

	TotalReward float64
	Steps       int
	Episodes    int
}

func NewQLearningPolicy(config Config) *QLearningPolicy {
	return &QLearningPolicy{
		qTable:     NewQTable(),
		alpha:      config.Alpha,
		gamma:      config.Gamma,
		epsilon:    config.Epsilon,
		minEpsilon: config.MinEpsilon,
		decay:      config.Decay,
		rand:       rand.New(rand.NewSource(config.Seed)),
	}
}

func (q *QLearningPolicy) Epsilon() float64 {
	return q.epsilon
}

func (q *QLearningPolicy) Table() *QTable {
	return q.qTable
}

// NextAction samples a uniformly random action with probability epsilon,
// otherwise returns the greedy action of the state
func (q *QLearningPolicy) NextAction(state platformer.DiscreteState) Action {
	if q.rand.Float64() < q.epsilon {
		return Action(q.rand.Intn(NumActions))
	}
	a, _ := q.qTable.Max(state)
	return a
}

// Update applies
//
//	Q(s,a) <- Q(s,a) + alpha * (r - Q(s,a) + gamma * max_a' Q(s',a'))
//
// with the bootstrap term dropped when done, then decays epsilon and
// advances the counters.
func (q *QLearningPolicy) Update(reward float64, state, nextState platformer.DiscreteState, action Action, done bool) {
	row := q.qTable.Values(state)
	qsa := row[action]
	maxNext := 0.0
	if !done {
		_, maxNext = q.qTable.Max(nextState)
	}
	row[action] = qsa + q.alpha*(reward-qsa+q.gamma*maxNext)

	q.epsilon = math.Max(q.minEpsilon, q.epsilon*q.decay)
	q.TotalReward += reward
	q.Steps += 1
	if done {
		q.Episodes += 1
	}
}

// Save persists the q-table only, hyperparameters and counters stay local
func (q *QLearningPolicy) Save(ctx context.Context, store Store) error {
	buf := new(bytes.Buffer)
	if err := q.qTable.Serialize(buf); err != nil {
		return err
	}
	return store.Save(ctx, buf.Bytes())
}

// Load replaces the q-table with the stored one. A failed load keeps the
// current table.
func (q *QLearningPolicy) Load(ctx context.Context, store Store) error {
	bs, err := store.Load(ctx)
	if err != nil {
		return err
	}
	table := NewQTable()
	if err := table.Deserialize(bytes.NewReader(bs)); err != nil {
		return err
	}
	q.qTable = table
	return nil
}
