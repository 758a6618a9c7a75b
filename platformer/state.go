package platformer

import (
	"fmt"
	"math"
)

// Discretization constants
const (
	BinSizeX = 64
	BinSizeY = 48
	MaxBinX  = 30
	MaxBinY  = 20

	VXDeadzone  = 40.0
	VYThreshold = 50.0

	LedgeProbe = 8
	LedgeDrop  = 64
)

// DiscreteState is the coarse observation used as a Q-table key.
// It is comparable and can be used directly as a map key.
type DiscreteState struct {
	DX       int `json:"dx"`
	DY       int `json:"dy"`
	VX       int `json:"vx"`
	VY       int `json:"vy"`
	OnGround int `json:"on_ground"`
	Ledge    int `json:"ledge"`
}

func (s DiscreteState) Hash() string {
	return fmt.Sprintf("(%d, %d, %d, %d, %d, %d)", s.DX, s.DY, s.VX, s.VY, s.OnGround, s.Ledge)
}

// Discretize maps the current observation of the actor and the level into
// a DiscreteState
func Discretize(b *Body, level Geometry) DiscreteState {
	r := b.Rect()
	exit := level.Exit()
	dx := exit.CenterX() - r.CenterX()
	dy := exit.CenterY() - r.CenterY()

	s := DiscreteState{
		DX: bin(dx, BinSizeX, MaxBinX),
		DY: bin(dy, BinSizeY, MaxBinY),
	}
	if math.Abs(b.VX) > VXDeadzone {
		if b.VX > 0 {
			s.VX = 1
		} else {
			s.VX = -1
		}
	}
	if b.VY < -VYThreshold {
		s.VY = -1
	} else if b.VY > VYThreshold {
		s.VY = 1
	}
	if b.OnGround {
		s.OnGround = 1
	}
	if ledgeBelow(r, level.Platforms()) {
		s.Ledge = 1
	}
	return s
}

func bin(v, size, limit int) int {
	b := int(math.Floor(float64(v) / float64(size)))
	if b < -limit {
		return -limit
	}
	if b > limit {
		return limit
	}
	return b
}

// ledgeBelow checks whether the nearest platform under the actor's
// horizontal center lies within LedgeDrop of the probe point
func ledgeBelow(r Rect, platforms []Rect) bool {
	feet := r.Move(0, LedgeProbe)
	cx := feet.CenterX()
	nearest := -1
	for _, p := range platforms {
		if cx < p.Left() || cx > p.Right() {
			continue
		}
		drop := p.Top() - feet.Bottom()
		if drop < 0 {
			continue
		}
		if nearest < 0 || drop < nearest {
			nearest = drop
		}
	}
	return nearest >= 0 && nearest <= LedgeDrop
}
