package policies

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/zeu5/platformer-rl/platformer"
	"gonum.org/v1/gonum/floats"
)

// Values holds one estimate per action
type Values [NumActions]float64

// QTable maps discretized states to action values. Unseen states read as
// all zeros and are inserted on first access.
type QTable struct {
	table map[platformer.DiscreteState]*Values
}

func NewQTable() *QTable {
	return &QTable{
		table: make(map[platformer.DiscreteState]*Values),
	}
}

// Values is the only accessor to the rows of the table, a miss inserts a
// zero valued row
func (q *QTable) Values(state platformer.DiscreteState) *Values {
	v, ok := q.table[state]
	if !ok {
		v = &Values{}
		q.table[state] = v
	}
	return v
}

func (q *QTable) HasState(state platformer.DiscreteState) bool {
	_, ok := q.table[state]
	return ok
}

// Max returns the greedy action of the state and its value.
// Ties resolve to the lowest action index.
func (q *QTable) Max(state platformer.DiscreteState) (Action, float64) {
	v := q.Values(state)
	i := floats.MaxIdx(v[:])
	return Action(i), v[i]
}

func (q *QTable) Len() int {
	return len(q.table)
}

// Entry is one serialized row of the table
type Entry struct {
	State  platformer.DiscreteState `json:"state"`
	Values Values                   `json:"values"`
}

// Entries returns a copy of the table in a stable order
func (q *QTable) Entries() []Entry {
	out := make([]Entry, 0, len(q.table))
	for s, v := range q.table {
		out = append(out, Entry{State: s, Values: *v})
	}
	sort.Slice(out, func(i, j int) bool {
		return lessState(out[i].State, out[j].State)
	})
	return out
}

// Serialize writes the full state to value mapping
func (q *QTable) Serialize(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(q.Entries()); err != nil {
		return errors.Wrap(err, "encoding q-table")
	}
	return nil
}

// Deserialize replaces the contents of the table with the decoded entries.
// On error the table is left untouched.
func (q *QTable) Deserialize(r io.Reader) error {
	entries := make([]Entry, 0)
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return errors.Wrap(err, "decoding q-table")
	}
	table := make(map[platformer.DiscreteState]*Values, len(entries))
	for _, e := range entries {
		v := e.Values
		table[e.State] = &v
	}
	q.table = table
	return nil
}

func lessState(a, b platformer.DiscreteState) bool {
	ka := [6]int{a.DX, a.DY, a.VX, a.VY, a.OnGround, a.Ledge}
	kb := [6]int{b.DX, b.DY, b.VX, b.VY, b.OnGround, b.Ledge}
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}
