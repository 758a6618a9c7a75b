package platformer

import "fmt"

// Rect is an integer axis-aligned rectangle with the origin at the top-left
// corner and y growing downwards.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

func (r Rect) Left() int   { return r.X }
func (r Rect) Right() int  { return r.X + r.W }
func (r Rect) Top() int    { return r.Y }
func (r Rect) Bottom() int { return r.Y + r.H }

func (r Rect) CenterX() int { return r.X + r.W/2 }
func (r Rect) CenterY() int { return r.Y + r.H/2 }

// Intersects reports whether the two rectangles share a non-empty area.
// Touching edges do not count as an intersection.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Inflate grows the rectangle by dw and dh keeping its center in place
func (r Rect) Inflate(dw, dh int) Rect {
	return Rect{X: r.X - dw/2, Y: r.Y - dh/2, W: r.W + dw, H: r.H + dh}
}

func (r Rect) Move(dx, dy int) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.X, r.Y, r.W, r.H)
}

// overlapsF is the float counterpart of Intersects used while resolving
// collisions on the sub-pixel accumulator.
func overlapsF(x, y, w, h float64, o Rect) bool {
	return x < float64(o.Right()) && float64(o.X) < x+w && y < float64(o.Bottom()) && float64(o.Y) < y+h
}
