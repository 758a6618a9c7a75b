package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/types"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("next-layout")
	require.NoError(t, err)
	assert.Equal(t, CommandNextLayout, cmd)
	_, err = ParseCommand("fly")
	assert.Error(t, err)
}

func TestControllerQueuesCommandsInOrder(t *testing.T) {
	c := NewController(Settings{AIControl: true, Training: true, Speedup: 1})
	c.Submit(CommandSave)
	c.Submit(CommandToggleAI)
	c.Submit(CommandReset)
	c.Submit(CommandToggleTraining)

	assert.Equal(t, []Command{CommandSave, CommandReset}, c.Drain())
	assert.Empty(t, c.Drain())
	assert.Equal(t, Settings{AIControl: false, Training: false, Speedup: 1}, c.Settings())
}

func TestControllerSettings(t *testing.T) {
	c := NewController(Settings{Speedup: 1})
	c.SetAIControl(true)
	c.SetTraining(true)
	require.NoError(t, c.SetSpeedup(3))
	assert.Error(t, c.SetSpeedup(maxSpeedup+1))
	assert.Equal(t, Settings{AIControl: true, Training: true, Speedup: 3}, c.Settings())

	c.SetInput(platformer.InputState{Left: true})
	assert.Equal(t, platformer.InputState{Left: true}, c.Input())
}

func TestControllerSubscribers(t *testing.T) {
	c := NewController(Settings{})
	first, cancelFirst := c.Subscribe(1)
	second, cancelSecond := c.Subscribe(1)
	defer cancelSecond()

	c.OnEpisode(types.EpisodeRecord{Episode: 1})
	// a full buffer drops records instead of blocking
	c.OnEpisode(types.EpisodeRecord{Episode: 2})

	assert.Equal(t, 1, (<-first).Episode)
	assert.Equal(t, 1, (<-second).Episode)

	cancelFirst()
	cancelFirst()
	_, ok := <-first
	assert.False(t, ok)

	c.OnEpisode(types.EpisodeRecord{Episode: 3})
	assert.Equal(t, 3, (<-second).Episode)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	c := DefaultConfig()
	c.AIUpdateEvery = 0
	assert.Error(t, c.Validate())
	c = DefaultConfig()
	c.Speedup = 0
	assert.Error(t, c.Validate())
	assert.InDelta(t, 1.0/60, DefaultConfig().FixedDt(), 1e-12)
}
