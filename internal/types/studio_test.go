package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTarget_RejectsDuplicateShots(t *testing.T) {
	_, err := NewTarget("Target 1",
		Shot{RobotID: "Robot #1", Position: NewPosition(10, 5)},
		Shot{RobotID: "Robot #1", Position: NewPosition(1, 1)},
	)
	require.ErrorIs(t, err, ErrDuplicateShot)
}

func TestTarget_ShotFor(t *testing.T) {
	target, err := NewTarget("Target 1",
		Shot{RobotID: "Robot #1", Position: NewPosition(10, 5)},
		Shot{RobotID: "Robot #2", Position: NewPosition(-20, 12.5)},
	)
	require.NoError(t, err)

	pos, ok := target.PositionFor("Robot #2")
	require.True(t, ok)
	assert.Equal(t, NewPosition(-20, 12.5), pos)

	_, ok = target.PositionFor("Robot #9")
	assert.False(t, ok)

	// robot ids are matched exactly
	_, ok = target.PositionFor("robot #1")
	assert.False(t, ok)
}

func TestTarget_ShotsIsACopy(t *testing.T) {
	target, err := NewTarget("Target 1", Shot{RobotID: "Robot #1", Position: NewPosition(10, 5)})
	require.NoError(t, err)

	shots := target.Shots()
	shots[0].Position = NewPosition(99, 99)

	pos, _ := target.PositionFor("Robot #1")
	assert.Equal(t, NewPosition(10, 5), pos)
}

func TestTarget_NilIsEmpty(t *testing.T) {
	var target *Target
	assert.Equal(t, "", target.Name())
	assert.Nil(t, target.Shots())
	_, ok := target.ShotFor("Robot #1")
	assert.False(t, ok)
}

func TestRobotStatus_String(t *testing.T) {
	assert.Equal(t, "Idle", RobotStatusIdle.String())
	assert.Equal(t, "Moving", RobotStatusMoving.String())

	text, err := RobotStatusMoving.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Moving", string(text))
}

func TestRobotStatus_UnmarshalText(t *testing.T) {
	var s RobotStatus
	require.NoError(t, s.UnmarshalText([]byte("Moving")))
	assert.Equal(t, RobotStatusMoving, s)

	assert.Error(t, s.UnmarshalText([]byte("Flying")))
}
