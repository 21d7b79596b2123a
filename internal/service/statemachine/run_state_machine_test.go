package statemachine

import (
	"errors"
	"testing"

	"github.com/qafglossary/backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRunStateMachine(t *testing.T) {
	sm := NewRunStateMachine()

	assert.NoError(t, sm.Transition(model.RunStatusRunning, model.RunStatusSucceeded, "r1"))
	assert.NoError(t, sm.Transition(model.RunStatusRunning, model.RunStatusFailed, "r1"))

	err := sm.Transition(model.RunStatusSucceeded, model.RunStatusFailed, "r1")
	var invalid *InvalidStateTransitionError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, model.RunStatusSucceeded, invalid.From)

	assert.False(t, sm.CanTransition(model.RunStatusRunning, model.RunStatusRunning))
	assert.True(t, IsTerminal(model.RunStatusFailed))
	assert.False(t, IsTerminal(model.RunStatusRunning))
}
