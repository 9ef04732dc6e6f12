package tier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanFireOnlyReadyOrIdle(t *testing.T) {
	require.True(t, StateReady.canFire())
	require.True(t, StateIdle.canFire())
	require.False(t, StateLoading.canFire())
	require.False(t, StateBusy.canFire())
	require.False(t, StateTerminated.canFire())
}

func TestStateBoxSetGet(t *testing.T) {
	var b stateBox
	require.Equal(t, StateLoading, b.get())
	b.set(StateBusy)
	require.Equal(t, StateBusy, b.get())
}

func TestStateStringCoversEveryState(t *testing.T) {
	cases := map[State]string{
		StateLoading:    "loading",
		StateReady:      "ready",
		StateIdle:       "idle",
		StateBusy:       "busy",
		StateTerminated: "terminated",
	}
	for s, want := range cases {
		require.Equal(t, want, s.String())
	}
	require.Equal(t, "unknown", State(99).String())
}
