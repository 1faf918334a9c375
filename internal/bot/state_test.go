package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionState_Transitions(t *testing.T) {
	tests := []struct {
		from, to SessionState
		ok       bool
	}{
		{StateUninit, StateInitializing, true},
		{StateUninit, StateLoggedIn, false},
		{StateInitializing, StateInitialized, true},
		{StateInitializing, StateUninit, true},
		{StateInitialized, StateLoggingIn, true},
		{StateInitialized, StateLoggedIn, false},
		{StateLoggingIn, StateLoggedIn, true},
		{StateLoggingIn, StateInitialized, true},
		{StateLoggedIn, StateLoggingIn, false},
		{StateLoggedIn, StateLoggingOut, true},
		{StateLoggedIn, StateClosing, true},
		{StateLoggingOut, StateInitialized, true},
		{StateClosing, StateUninit, true},
		{StateClosing, StateInitialized, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSessionState_DerivedFlags(t *testing.T) {
	assert.False(t, StateUninit.Initialized())
	assert.False(t, StateInitializing.Initialized())
	assert.True(t, StateInitialized.Initialized())
	assert.True(t, StateLoggedIn.Initialized())
	assert.False(t, StateClosing.Initialized())

	assert.False(t, StateLoggingIn.LoggedIn())
	assert.True(t, StateLoggedIn.LoggedIn())
	assert.True(t, StateLoggingOut.LoggedIn())
	assert.False(t, StateInitialized.LoggedIn())

	assert.Equal(t, "Unknown(42)", SessionState(42).String())
}

func TestBot_TransitionRejectsInvalid(t *testing.T) {
	b := newTestBot(t, newFakePage())

	err := b.transition(StateLoggedIn)

	var te *TransitionError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, StateUninit, te.From)
	assert.Equal(t, StateUninit, b.State())
}
