package platformer

// Play area and level dimensions in pixels
const (
	ScreenWidth  = 960
	ScreenHeight = 540
	Tile         = 48
	LevelWidth   = 3200
	LevelHeight  = ScreenHeight
)

// PhysicsConfig holds the tuned constants of the kinematic body.
// Units are pixels and seconds.
type PhysicsConfig struct {
	Gravity      float64
	MoveAccel    float64
	MaxSpeedX    float64
	MaxFallSpeed float64
	Friction     float64
	JumpVelocity float64 // negative is upwards
	CoyoteTime   float64
	JumpBuffer   float64
	// time_since_ground is forced to this value after a jump so the coyote
	// window cannot be reused mid-air
	CoyoteBlock float64

	ActorWidth  int
	ActorHeight int
	// actor dies once its top edge is this far below the play area
	FallMargin int
}

func DefaultPhysicsConfig() PhysicsConfig {
	return PhysicsConfig{
		Gravity:      2000.0,
		MoveAccel:    8000.0,
		MaxSpeedX:    360.0,
		MaxFallSpeed: 2000.0,
		Friction:     8.0,
		JumpVelocity: -750.0,
		CoyoteTime:   0.12,
		JumpBuffer:   0.12,
		CoyoteBlock:  0.5,
		ActorWidth:   40,
		ActorHeight:  40,
		FallMargin:   200,
	}
}

// InputState is the directional input applied to the body for one tick
type InputState struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Jump  bool `json:"jump"`
}
