package platformer

import "golang.org/x/exp/rand"

const (
	// NumLayouts is the number of curated layouts, layout indices wrap around it
	NumLayouts = 3

	exitMargin = 80
	spikeW     = 28
	spikeH     = 22
)

var themeNames = []string{"Dawn", "Forest", "Sunset"}

// Point is an integer position in level coordinates
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Geometry is the read-only view of the level used by the body, the
// discretizer and the driver.
type Geometry interface {
	Platforms() []Rect
	Hazards() []Rect
	Spawn() Point
	Exit() Rect
	ExitTrigger() Rect
}

// layout is one immutable snapshot of the level geometry
type layout struct {
	platforms   []Rect
	hazards     []Rect
	spawn       Point
	exit        Rect
	exitTrigger Rect
}

// Level holds the static geometry of the current layout. Changing the
// layout swaps the whole snapshot at once.
type Level struct {
	cur         *layout
	layoutIndex int
	themeIndex  int
	actorHeight int
}

var _ Geometry = &Level{}

func NewLevel(layoutIndex int, actorHeight int) *Level {
	l := &Level{actorHeight: actorHeight}
	l.SetLayout(layoutIndex)
	return l
}

func (l *Level) Platforms() []Rect { return l.cur.platforms }
func (l *Level) Hazards() []Rect   { return l.cur.hazards }
func (l *Level) Spawn() Point      { return l.cur.spawn }
func (l *Level) Exit() Rect        { return l.cur.exit }
func (l *Level) ExitTrigger() Rect { return l.cur.exitTrigger }

func (l *Level) LayoutIndex() int { return l.layoutIndex }
func (l *Level) ThemeIndex() int  { return l.themeIndex }
func (l *Level) ThemeName() string {
	return themeNames[l.themeIndex]
}

// SetLayout selects a curated layout, the index is taken modulo NumLayouts
func (l *Level) SetLayout(idx int) {
	idx = ((idx % NumLayouts) + NumLayouts) % NumLayouts
	l.cur = buildLayout(idx, l.actorHeight)
	l.layoutIndex = idx
}

func (l *Level) NextLayout() {
	l.SetLayout(l.layoutIndex + 1)
}

func (l *Level) SetTheme(idx int) {
	l.themeIndex = ((idx % len(themeNames)) + len(themeNames)) % len(themeNames)
}

func (l *Level) NextTheme() {
	l.SetTheme(l.themeIndex + 1)
}

// IntersectsHazard is true if r overlaps any hazard
func (l *Level) IntersectsHazard(r Rect) bool {
	_, ok := l.HazardAt(r)
	return ok
}

// HazardAt returns the index of the first hazard overlapping r
func (l *Level) HazardAt(r Rect) (int, bool) {
	for i, h := range l.cur.hazards {
		if r.Intersects(h) {
			return i, true
		}
	}
	return -1, false
}

func buildLayout(idx int, actorHeight int) *layout {
	groundY := ScreenHeight - Tile
	thin := Tile / 2
	platforms := []Rect{NewRect(0, groundY, LevelWidth, Tile)}

	switch idx {
	case 0:
		r := rand.New(rand.NewSource(42))
		randint := func(a, b int) int { return a + r.Intn(b-a+1) }
		x := 260
		for i := 0; i < 6; i++ {
			y := groundY - (i%3)*Tile*2 - randint(0, 1)*Tile
			w := randint(3, 5) * Tile
			platforms = append(platforms, NewRect(x, y, w, thin))
			x += randint(260, 420)
		}
		platforms = append(platforms,
			NewRect(1550, groundY-Tile*4, Tile*3, thin),
			NewRect(2200, groundY-Tile*3, Tile*5, thin),
		)
	case 1:
		x := 200
		for i := 0; i < 5; i++ {
			y := float64(groundY) - float64(i+1)*(Tile*1.2)
			platforms = append(platforms, NewRect(x+i*180, int(y), Tile*3, thin))
		}
		platforms = append(platforms,
			NewRect(1400, groundY-Tile*5, Tile*5, thin),
			NewRect(1800, groundY-Tile*2, Tile*3, thin),
			NewRect(2050, groundY-Tile*3, Tile*2, thin),
			NewRect(2300, groundY-Tile*4, Tile*3, thin),
			NewRect(2550, groundY-Tile*5, Tile*3, thin),
		)
	default:
		x := 240
		for i := 0; i < 4; i++ {
			platforms = append(platforms, NewRect(x, groundY-Tile*(2+(i%2)), Tile*4, thin))
			x += 420
		}
		platforms = append(platforms,
			NewRect(2200, groundY-Tile*4, Tile*4, thin),
			NewRect(2500, groundY-Tile*3, Tile*3, thin),
			NewRect(2800, groundY-Tile*2, Tile*3, thin),
		)
	}

	exit := NewRect(LevelWidth-120, groundY-Tile*4-48, 48, 96)

	// spikes sit slightly sunk into the ground surface
	hazards := make([]Rect, 0, 3)
	for _, hx := range []int{520, 2000, 2420} {
		hazards = append(hazards, NewRect(hx, groundY-spikeH+2, spikeW, spikeH))
	}

	return &layout{
		platforms:   platforms,
		hazards:     hazards,
		spawn:       Point{X: 40, Y: ScreenHeight - Tile - actorHeight},
		exit:        exit,
		exitTrigger: exit.Inflate(exitMargin, exitMargin),
	}
}
