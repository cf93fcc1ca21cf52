package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "DOWN", StateDown.String())
	assert.Equal(t, "START_FAILED", StateStartFailed.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestStatePredicates(t *testing.T) {
	tests := []struct {
		state    State
		terminal bool
		active   bool
	}{
		{StateDown, false, false},
		{StateStarting, false, true},
		{StateUp, true, true},
		{StateStopping, false, true},
		{StateStartFailed, true, false},
		{StateRemoved, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
			assert.Equal(t, tt.active, tt.state.IsActive())
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"active":    ModeActive,
		"ON_DEMAND": ModeOnDemand,
		"on-demand": ModeOnDemand,
		"passive":   ModeOnDemand,
		" never ":   ModeNever,
		"remove":    ModeRemove,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("lazy")
	assert.Error(t, err)
	assert.Equal(t, "ON_DEMAND", ModeOnDemand.String())
}

func TestKindForState(t *testing.T) {
	assert.Equal(t, TransitionStarting, KindForState(StateStarting))
	assert.Equal(t, TransitionStarted, KindForState(StateUp))
	assert.Equal(t, TransitionFailed, KindForState(StateStartFailed))
	assert.Equal(t, TransitionStopping, KindForState(StateStopping))
	assert.Equal(t, TransitionStopped, KindForState(StateDown))
	assert.Equal(t, TransitionRemoved, KindForState(StateRemoved))
}

func TestTransitionString(t *testing.T) {
	tr := Transition{Service: MustServiceName("svc"), Kind: TransitionStarted, From: StateStarting, To: StateUp}
	assert.Equal(t, "svc Started (STARTING -> UP)", tr.String())

	tr = Transition{Service: MustServiceName("svc"), Kind: TransitionFailed, From: StateStarting, To: StateStartFailed, Err: errors.New("boom")}
	assert.Equal(t, "svc Failed (STARTING -> START_FAILED): boom", tr.String())
}
