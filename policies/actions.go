package policies

import (
	"fmt"

	"github.com/zeu5/platformer-rl/platformer"
)

// Action indexes the fixed action enumeration of the agent
type Action int

const (
	Idle Action = iota
	Left
	Right
	Jump
	LeftJump
	RightJump

	NumActions = 6
)

var actionNames = [NumActions]string{"idle", "left", "right", "jump", "left_jump", "right_jump"}

var actionInputs = [NumActions]platformer.InputState{
	Idle:      {},
	Left:      {Left: true},
	Right:     {Right: true},
	Jump:      {Jump: true},
	LeftJump:  {Left: true, Jump: true},
	RightJump: {Right: true, Jump: true},
}

func (a Action) Hash() string {
	return a.String()
}

func (a Action) String() string {
	if a < 0 || a >= NumActions {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// ActionToInput decodes an action into directional input.
// Out of range actions are a programming error and panic.
func ActionToInput(a Action) platformer.InputState {
	return actionInputs[a]
}

// ActionFromInput maps human input back onto the enumeration so that the
// agent can learn from it. Right wins over left, which wins over jump.
func ActionFromInput(in platformer.InputState) Action {
	switch {
	case in.Right:
		return Right
	case in.Left:
		return Left
	case in.Jump:
		return Jump
	}
	return Idle
}
