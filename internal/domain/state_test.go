package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuards_FromPending(t *testing.T) {
	assert.True(t, CanConfirm(StatePending).Allowed)
	assert.True(t, CanCancel(StatePending).Allowed)
	assert.True(t, CanModify(StatePending).Allowed)
	assert.NoError(t, CanModify(StatePending).Err())
}

func TestGuards_FromConfirmed(t *testing.T) {
	assert.True(t, CanConfirm(StateConfirmed).Allowed, "re-confirming is idempotent")
	assert.True(t, CanCancel(StateConfirmed).Allowed)
	assert.True(t, CanModify(StateConfirmed).Allowed)
}

func TestGuards_FromAttended(t *testing.T) {
	for name, g := range map[string]Guard{
		"confirm": CanConfirm(StateAttended),
		"cancel":  CanCancel(StateAttended),
		"modify":  CanModify(StateAttended),
	} {
		t.Run(name, func(t *testing.T) {
			require.False(t, g.Allowed)
			assert.Equal(t, StateAttended, g.State)
			assert.Equal(t, KindInvalidState, KindOf(g.Err()))
		})
	}

	assert.Equal(t, ReasonConfirmAttended, CanConfirm(StateAttended).Reason)
	assert.Equal(t, ReasonCancelAttended, CanCancel(StateAttended).Reason)
	assert.Equal(t, ReasonTerminalState, CanModify(StateAttended).Reason)
}

func TestGuards_FromCancelled(t *testing.T) {
	confirm := CanConfirm(StateCancelled)
	require.False(t, confirm.Allowed)
	assert.Equal(t, ReasonConfirmCancelled, confirm.Reason)

	modify := CanModify(StateCancelled)
	require.False(t, modify.Allowed)
	assert.Equal(t, ReasonTerminalState, modify.Reason)
	assert.Equal(t, StateCancelled, modify.State)

	cancel := CanCancel(StateCancelled)
	require.False(t, cancel.Allowed)
	assert.Equal(t, ReasonAlreadyCancelled, cancel.Reason)
	assert.NotEqual(t, CanCancel(StateAttended).Reason, cancel.Reason)
}

func TestGuardErr_CarriesState(t *testing.T) {
	err := CanConfirm(StateCancelled).Err()

	var dErr *Error
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, KindInvalidState, dErr.Kind)
	assert.Equal(t, StateCancelled, dErr.State)
	assert.Equal(t, "cannot confirm a cancelled turn (state: cancelled)", err.Error())
	assert.True(t, errors.Is(err, &Error{Kind: KindInvalidState}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNotFound}))
}

func TestTurnState_Terminal(t *testing.T) {
	assert.True(t, StateAttended.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateConfirmed.Terminal())
}
