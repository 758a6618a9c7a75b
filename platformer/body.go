package platformer

import "math"

// Body is the kinematic state of the single actor. The float position is
// the authoritative accumulator; the collision rectangle is always derived
// from it by truncation.
type Body struct {
	cfg PhysicsConfig

	X  float64
	Y  float64
	VX float64
	VY float64

	Facing          int
	OnGround        bool
	TimeSinceGround float64
	JumpBuffer      float64
	Alive           bool
}

func NewBody(cfg PhysicsConfig, spawn Point) *Body {
	b := &Body{cfg: cfg}
	b.Reset(spawn)
	return b
}

// Reset places the body at rest on the spawn point
func (b *Body) Reset(spawn Point) {
	b.X = float64(spawn.X)
	b.Y = float64(spawn.Y)
	b.VX = 0
	b.VY = 0
	b.Facing = 1
	b.OnGround = false
	b.TimeSinceGround = 0
	b.JumpBuffer = 0
	b.Alive = true
}

func (b *Body) Config() PhysicsConfig {
	return b.cfg
}

// Rect returns the integer collision rectangle
func (b *Body) Rect() Rect {
	return Rect{X: int(b.X), Y: int(b.Y), W: b.cfg.ActorWidth, H: b.cfg.ActorHeight}
}

// Update integrates one fixed step of length dt and resolves collisions
// against the platforms of the level, horizontal axis first.
func (b *Body) Update(dt float64, level Geometry, in InputState) {
	ax := 0.0
	if in.Left {
		ax -= b.cfg.MoveAccel
		b.Facing = -1
	}
	if in.Right {
		ax += b.cfg.MoveAccel
		b.Facing = 1
	}

	if ax == 0.0 {
		b.VX -= b.VX * math.Min(b.cfg.Friction*dt, 1.0)
	} else {
		b.VX += ax * dt
	}
	b.VX = clamp(b.VX, -b.cfg.MaxSpeedX, b.cfg.MaxSpeedX)

	b.TimeSinceGround += dt
	if in.Jump {
		b.JumpBuffer = b.cfg.JumpBuffer
	} else {
		b.JumpBuffer = math.Max(0.0, b.JumpBuffer-dt)
	}

	if (b.OnGround || b.TimeSinceGround < b.cfg.CoyoteTime) && b.JumpBuffer > 0.0 {
		b.VY = b.cfg.JumpVelocity
		b.OnGround = false
		b.TimeSinceGround = b.cfg.CoyoteBlock
		b.JumpBuffer = 0.0
	}

	b.VY += b.cfg.Gravity * dt
	if b.VY > b.cfg.MaxFallSpeed {
		b.VY = b.cfg.MaxFallSpeed
	}

	platforms := level.Platforms()
	b.moveX(platforms, b.VX*dt)
	b.moveY(platforms, b.VY*dt)

	if b.Rect().Top() > ScreenHeight+b.cfg.FallMargin {
		b.Alive = false
	}
}

func (b *Body) moveX(platforms []Rect, dx float64) {
	if dx == 0.0 {
		return
	}
	b.X += dx
	w, h := float64(b.cfg.ActorWidth), float64(b.cfg.ActorHeight)
	for _, p := range platforms {
		if !overlapsF(b.X, b.Y, w, h, p) {
			continue
		}
		if dx > 0 {
			b.X = float64(p.Left()) - w
		} else {
			b.X = float64(p.Right())
		}
		b.VX = 0
	}
}

func (b *Body) moveY(platforms []Rect, dy float64) {
	if dy == 0.0 {
		return
	}
	b.Y += dy
	b.OnGround = false
	w, h := float64(b.cfg.ActorWidth), float64(b.cfg.ActorHeight)
	for _, p := range platforms {
		if !overlapsF(b.X, b.Y, w, h, p) {
			continue
		}
		if dy > 0 {
			b.Y = float64(p.Top()) - h
			b.OnGround = true
			b.TimeSinceGround = 0.0
		} else {
			b.Y = float64(p.Bottom())
		}
		b.VY = 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
