package benchmarks

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeu5/platformer-rl/policies"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TableStats summarizes a q-table
type TableStats struct {
	States int
	// per action mean and standard deviation of the values
	Mean [policies.NumActions]float64
	Std  [policies.NumActions]float64
	Min  float64
	Max  float64
	// number of states for which the action is greedy
	Greedy [policies.NumActions]int
}

func ComputeTableStats(table *policies.QTable) TableStats {
	entries := table.Entries()
	s := TableStats{States: len(entries)}
	if len(entries) == 0 {
		return s
	}
	columns := make([][]float64, policies.NumActions)
	for a := range columns {
		columns[a] = make([]float64, len(entries))
	}
	all := make([]float64, 0, len(entries)*policies.NumActions)
	for i, e := range entries {
		for a, v := range e.Values {
			columns[a][i] = v
		}
		all = append(all, e.Values[:]...)
		s.Greedy[floats.MaxIdx(e.Values[:])] += 1
	}
	for a := range columns {
		s.Mean[a], s.Std[a] = stat.MeanStdDev(columns[a], nil)
		if len(entries) == 1 {
			s.Std[a] = 0
		}
	}
	s.Min = floats.Min(all)
	s.Max = floats.Max(all)
	return s
}

func QTableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qtable",
		Short: "Print statistics of a stored q-table",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := newStore()
			if err != nil {
				return err
			}
			defer closeStore()

			policy := policies.NewQLearningPolicy(policies.DefaultConfig())
			if err := policy.Load(context.Background(), store); err != nil {
				return err
			}
			s := ComputeTableStats(policy.Table())
			fmt.Printf("Store: %s\nStates: %d\nValues: [%.3f, %.3f]\n", store, s.States, s.Min, s.Max)
			for a := 0; a < policies.NumActions; a++ {
				fmt.Printf("%-10s mean:%10.3f std:%10.3f greedy:%d\n", policies.Action(a), s.Mean[a], s.Std[a], s.Greedy[a])
			}
			return nil
		},
	}
	addStoreFlags(cmd)
	return cmd
}
