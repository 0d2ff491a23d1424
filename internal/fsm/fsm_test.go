package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)

	next, err = Transition(next, EventSpawned)
	require.NoError(t, err)
	require.Equal(t, StateStreaming, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateStopping, next)

	next, err = Transition(next, EventResolve)
	require.NoError(t, err)
	require.Equal(t, StateResolved, next)
}

func TestTransitionFailResolvesFromAnyState(t *testing.T) {
	states := []State{StateIdle, StateStarting, StateStreaming, StateStopping, StateResolved}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateResolved, next)
	}
}

func TestTransitionStopIsIdempotentWhileStopping(t *testing.T) {
	next, err := Transition(StateStopping, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateStopping, next)
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle resolve invalid", state: StateIdle, event: EventResolve, want: StateIdle, wantErr: true},
		{name: "starting start invalid", state: StateStarting, event: EventStart, want: StateStarting, wantErr: true},
		{name: "starting resolve valid", state: StateStarting, event: EventResolve, want: StateResolved, wantErr: false},
		{name: "streaming start invalid", state: StateStreaming, event: EventStart, want: StateStreaming, wantErr: true},
		{name: "streaming resolve valid", state: StateStreaming, event: EventResolve, want: StateResolved, wantErr: false},
		{name: "stopping spawned invalid", state: StateStopping, event: EventSpawned, want: StateStopping, wantErr: true},
		{name: "resolved start invalid", state: StateResolved, event: EventStart, want: StateResolved, wantErr: true},
		{name: "resolved resolve invalid", state: StateResolved, event: EventResolve, want: StateResolved, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
