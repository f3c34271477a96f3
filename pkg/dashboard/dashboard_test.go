package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/signalflow"
)

type fakeStates struct {
	state      signalflow.IntersectionState
	approaches *signalflow.Approaches
}

func (f *fakeStates) State() signalflow.IntersectionState { return f.state }
func (f *fakeStates) Approaches() *signalflow.Approaches { return f.approaches }

type fakeReadings map[signalflow.Approach]signalflow.Reading

func (f fakeReadings) LastReadings() map[signalflow.Approach]signalflow.Reading { return f }

func newFakeStates() *fakeStates {
	return &fakeStates{
		approaches: signalflow.MustApproaches(signalflow.DefaultApproaches...),
		state: signalflow.IntersectionState{
			Phases: map[signalflow.Approach]signalflow.Phase{
				signalflow.North: signalflow.PhaseGreen,
				signalflow.East:  signalflow.PhaseRed,
				signalflow.South: signalflow.PhaseRed,
				signalflow.West:  signalflow.PhaseRed,
			},
			Active:        signalflow.North,
			LastChange:    time.Now(),
			GreenDuration: 30 * time.Second,
		},
	}
}

func TestModel_View(t *testing.T) {
	states := newFakeStates()
	readings := fakeReadings{
		signalflow.North: {Approach: signalflow.North, Count: 12, MovingAverage: 9.5, Level: 0.95},
	}

	view := New(states, readings, time.Second).View()

	assert.Contains(t, view, "north")
	assert.Contains(t, view, "GREEN")
	assert.Contains(t, view, "RED")
	assert.Contains(t, view, "avg   9.5")
	assert.Contains(t, view, "no reading")
	assert.Contains(t, view, "active north")
}

func TestModel_TickRefreshesState(t *testing.T) {
	states := newFakeStates()
	m := New(states, fakeReadings{}, time.Second)

	states.state.Phases = map[signalflow.Approach]signalflow.Phase{signalflow.North: signalflow.PhaseYellow}

	updated, cmd := m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.Contains(t, updated.View(), "YELLOW")
}

func TestModel_PauseStopsRefresh(t *testing.T) {
	states := newFakeStates()
	m := New(states, nil, time.Second)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	states.state = signalflow.IntersectionState{Stopped: true, Phases: map[signalflow.Approach]signalflow.Phase{}}

	updated, _ = updated.Update(tickMsg(time.Now()))
	view := updated.View()
	assert.Contains(t, view, "[paused]")
	assert.False(t, strings.Contains(view, "STOPPED"))

	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	updated, _ = updated.Update(tickMsg(time.Now()))
	assert.Contains(t, updated.View(), "STOPPED")
}

func TestModel_Quit(t *testing.T) {
	m := New(newFakeStates(), nil, time.Second)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_WithMachine(t *testing.T) {
	config := signalflow.DefaultConfig()
	intersection, err := signalflow.NewIntersection(config, logr.Discard())
	require.NoError(t, err)

	intersection.Analyzer.Analyze(map[signalflow.Approach]int{signalflow.East: 7})

	view := New(intersection.Machine, intersection.Analyzer, time.Second).View()
	assert.Contains(t, view, "east")
	assert.Contains(t, view, "70%")
}
