package sim

import (
	"fmt"
	"sync"

	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/types"
)

// Command is a control request applied at the next tick boundary
type Command string

var (
	CommandReset          Command = "reset"
	CommandNextLayout     Command = "next-layout"
	CommandNextTheme      Command = "next-theme"
	CommandSave           Command = "save"
	CommandLoad           Command = "load"
	CommandToggleAI       Command = "toggle-ai"
	CommandToggleTraining Command = "toggle-training"
	CommandQuit           Command = "quit"
)

var commands = map[Command]bool{
	CommandReset:          true,
	CommandNextLayout:     true,
	CommandNextTheme:      true,
	CommandSave:           true,
	CommandLoad:           true,
	CommandToggleAI:       true,
	CommandToggleTraining: true,
	CommandQuit:           true,
}

func ParseCommand(name string) (Command, error) {
	c := Command(name)
	if !commands[c] {
		return "", fmt.Errorf("unknown command %q", name)
	}
	return c, nil
}

// InputSource supplies directional input while the agent is not in control
type InputSource interface {
	Input() platformer.InputState
}

// Settings are the toggles read by the driver once per frame
type Settings struct {
	AIControl bool    `json:"ai_control"`
	Training  bool    `json:"training"`
	Speedup   float64 `json:"speedup"`
}

// Status is the snapshot the driver publishes after every frame
type Status struct {
	Settings
	Episode     int     `json:"episode"`
	Completed   int     `json:"completed"`
	EpisodeTime float64 `json:"episode_time"`
	BestTime    float64 `json:"best_time"`
	Epsilon     float64 `json:"epsilon"`
	TotalReward float64 `json:"total_reward"`
	TableSize   int     `json:"table_size"`
	Layout      int     `json:"layout"`
	Theme       string  `json:"theme"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Alive       bool    `json:"alive"`
	Stopped     bool    `json:"stopped"`
}

// Controller is the only state shared between the simulation and the
// outside world. Every method is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	settings Settings
	input    platformer.InputState
	pending  []Command
	status   Status

	subscribers map[int]chan types.EpisodeRecord
	nextSub     int
}

var _ InputSource = &Controller{}

func NewController(settings Settings) *Controller {
	return &Controller{
		settings:    settings,
		pending:     make([]Command, 0),
		subscribers: make(map[int]chan types.EpisodeRecord),
	}
}

func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Controller) SetAIControl(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.AIControl = on
}

func (c *Controller) SetTraining(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Training = on
}

func (c *Controller) SetSpeedup(s float64) error {
	if err := validSpeedup(s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Speedup = s
	return nil
}

func (c *Controller) SetInput(in platformer.InputState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = in
}

// Input returns the last human input
func (c *Controller) Input() platformer.InputState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Submit queues a command. Toggles take effect immediately, the rest are
// applied by the driver at the next tick boundary.
func (c *Controller) Submit(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch cmd {
	case CommandToggleAI:
		c.settings.AIControl = !c.settings.AIControl
	case CommandToggleTraining:
		c.settings.Training = !c.settings.Training
	default:
		c.pending = append(c.pending, cmd)
	}
}

// Drain returns the queued commands in submission order
func (c *Controller) Drain() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = make([]Command, 0)
	return out
}

func (c *Controller) Publish(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers a listener for episode records. Records are dropped
// when the buffer of a slow subscriber is full.
func (c *Controller) Subscribe(buffer int) (<-chan types.EpisodeRecord, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub += 1
	ch := make(chan types.EpisodeRecord, buffer)
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
			close(ch)
		})
	}
}

// OnEpisode broadcasts the record to the subscribers
func (c *Controller) OnEpisode(rec types.EpisodeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- rec:
		default:
		}
	}
}
