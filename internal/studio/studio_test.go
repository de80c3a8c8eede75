package studio

import (
	"testing"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/robot/robottest"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	studio *Studio
	robot1 *robottest.Actuator
	robot2 *robottest.Actuator
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()

	t1, err := types.NewTarget("Target 1",
		types.Shot{RobotID: "Robot #1", Position: types.NewPosition(10, 5)},
		types.Shot{RobotID: "Robot #2", Position: types.NewPosition(-15, 3)},
	)
	require.NoError(t, err)
	t2, err := types.NewTarget("Target 2",
		types.Shot{RobotID: "Robot #1", Position: types.NewPosition(-40, 20)},
	)
	require.NoError(t, err)

	f := fixture{
		robot1: robottest.NewActuator("Robot #1"),
		robot2: robottest.NewActuator("Robot #2"),
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	f.studio, err = New(
		[]robot.Actuator{f.robot1, f.robot2},
		[]*types.Target{t1, t2},
		opts...)
	require.NoError(t, err)
	t.Cleanup(f.studio.Cleanup)
	return f
}

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("command did not settle")
	}
}

func nextEvent(t *testing.T, events <-chan Event, kind EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-events:
			require.True(t, ok, "event channel closed")
			if e.Type == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
			return Event{}
		}
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	target, err := types.NewTarget("Target 1")
	require.NoError(t, err)

	_, err = New([]robot.Actuator{
		robottest.NewActuator("Robot #1"),
		robottest.NewActuator("Robot #1"),
	}, nil)
	assert.ErrorContains(t, err, "duplicate robot")

	_, err = New(nil, []*types.Target{target, target})
	assert.ErrorContains(t, err, "duplicate target")
}

func TestStudio_Lookup(t *testing.T) {
	f := newFixture(t)

	require.Len(t, f.studio.Robots(), 2)
	assert.Equal(t, "Robot #1", f.studio.Robots()[0].Name())
	require.Len(t, f.studio.Targets(), 2)

	c, ok := f.studio.Robot("Robot #2")
	require.True(t, ok)
	assert.Equal(t, "Robot #2", c.Name())
	_, ok = f.studio.Robot("Robot #9")
	assert.False(t, ok)

	target, ok := f.studio.Target("Target 2")
	require.True(t, ok)
	assert.Equal(t, "Target 2", target.Name())
}

func TestStudio_SelectTarget(t *testing.T) {
	f := newFixture(t)
	events := f.studio.Subscribe()

	assert.False(t, f.studio.CanMoveAll())

	require.NoError(t, f.studio.SelectTarget("Target 1"))
	e := nextEvent(t, events, EventTargetSelected)
	assert.Equal(t, "Target 1", e.Target)
	assert.True(t, e.CanMoveAll)

	for _, c := range f.studio.Robots() {
		assert.Equal(t, "Target 1", c.SelectedTarget().Name())
		assert.True(t, c.CanMove())
	}

	err := f.studio.SelectTarget("Nowhere")
	assert.ErrorIs(t, err, ErrUnknownTarget)
	assert.Equal(t, "Target 1", f.studio.SelectedTarget().Name())

	require.NoError(t, f.studio.SelectTarget(""))
	e = nextEvent(t, events, EventTargetSelected)
	assert.Empty(t, e.Target)
	assert.False(t, e.CanMoveAll)
	assert.Nil(t, f.studio.SelectedTarget())
}

func TestStudio_SelectingSameTargetIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.studio.SelectTarget("Target 1"))

	events := f.studio.Subscribe()
	require.NoError(t, f.studio.SelectTarget("Target 1"))

	select {
	case e := <-events:
		t.Fatalf("unexpected %s event", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStudio_MoveAllAndStopAll(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.studio.SelectTarget("Target 1"))
	require.True(t, f.studio.CanMoveAll())
	assert.False(t, f.studio.CanStopAll())

	moved, names := f.studio.MoveAll()
	assert.Equal(t, []string{"Robot #1", "Robot #2"}, names)
	assert.Equal(t, types.NewPosition(10, 5), f.robot1.WaitStarted(t))
	assert.Equal(t, types.NewPosition(-15, 3), f.robot2.WaitStarted(t))

	assert.False(t, f.studio.CanMoveAll())
	assert.True(t, f.studio.CanStopAll())

	// nothing left to command
	again, names := f.studio.MoveAll()
	assert.Empty(t, names)
	waitClosed(t, again)

	stopped, names := f.studio.StopAll()
	assert.Equal(t, []string{"Robot #1", "Robot #2"}, names)
	waitClosed(t, stopped)
	waitClosed(t, moved)

	assert.False(t, f.studio.CanStopAll())
	assert.True(t, f.studio.CanMoveAll())
	assert.Len(t, f.robot1.Calls(), 1)
	assert.Len(t, f.robot2.Calls(), 1)
}

func TestStudio_MoveAllSkipsRobotAlreadyOnTheWay(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.studio.SelectTarget("Target 1"))

	c, _ := f.studio.Robot("Robot #1")
	first, err := c.Move()
	require.NoError(t, err)
	f.robot1.WaitStarted(t)

	all, names := f.studio.MoveAll()
	assert.Equal(t, []string{"Robot #2"}, names)
	f.robot2.WaitStarted(t)
	f.robot1.AssertNoMoveStarted(t, 50*time.Millisecond)

	f.robot1.Complete(t, nil)
	f.robot2.Complete(t, nil)
	waitClosed(t, first)
	waitClosed(t, all)
}

func TestStudio_RobotWithoutShotStaysIdle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.studio.SelectTarget("Target 2"))

	all, names := f.studio.MoveAll()
	assert.Equal(t, []string{"Robot #1", "Robot #2"}, names)
	f.robot1.WaitStarted(t)
	f.robot1.Complete(t, nil)
	waitClosed(t, all)

	assert.Empty(t, f.robot2.Calls())
	assert.Empty(t, f.studio.Messages())
}

func TestStudio_FaultsFeedMessages(t *testing.T) {
	f := newFixture(t, WithMaxMessages(2))
	require.NoError(t, f.studio.SelectTarget("Target 1"))
	events := f.studio.Subscribe()

	for i, reason := range []string{"first", "second", "third"} {
		c, _ := f.studio.Robot("Robot #1")
		done, err := c.Move()
		require.NoError(t, err, "move %d", i)
		f.robot1.WaitStarted(t)
		f.robot1.Complete(t, &robot.FaultError{Robot: "Robot #1", Reason: reason})
		waitClosed(t, done)

		e := nextEvent(t, events, EventRobotMessage)
		require.NotNil(t, e.Message)
		assert.Equal(t, reason, e.Message.Text)
	}

	messages := f.studio.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "third", messages[0].Text)
	assert.Equal(t, "second", messages[1].Text)
	assert.Equal(t, "Robot #1", messages[0].Robot)
	assert.NotEqual(t, messages[0].ID, messages[1].ID)
}

func TestStudio_RobotUpdatesReachSubscribers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.studio.SelectTarget("Target 1"))
	events := f.studio.Subscribe()

	c, _ := f.studio.Robot("Robot #2")
	done, err := c.Move()
	require.NoError(t, err)
	f.robot2.WaitStarted(t)

	for {
		e := nextEvent(t, events, EventRobotUpdate)
		require.NotNil(t, e.Robot)
		if e.Robot.Name == "Robot #2" && e.Robot.Status == types.RobotStatusMoving {
			assert.True(t, e.CanStopAll)
			break
		}
	}

	f.robot2.Complete(t, nil)
	waitClosed(t, done)
}

func TestStudio_Snapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.studio.SelectTarget("Target 1"))

	snap := f.studio.Snapshot()
	assert.Equal(t, "Target 1", snap.SelectedTarget)
	require.Len(t, snap.Targets, 2)
	assert.Equal(t, []ShotView{
		{Robot: "Robot #1", Pan: 10, Tilt: 5},
		{Robot: "Robot #2", Pan: -15, Tilt: 3},
	}, snap.Targets[0].Shots)
	require.Len(t, snap.Robots, 2)
	assert.True(t, snap.CanMoveAll)
	assert.False(t, snap.CanStopAll)
	assert.Empty(t, snap.Messages)
}

func TestStudio_UnsubscribeClosesChannel(t *testing.T) {
	f := newFixture(t)
	events := f.studio.Subscribe()
	f.studio.Unsubscribe(events)

	_, ok := <-events
	assert.False(t, ok)
}

func TestStudio_Cleanup(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.studio.SelectTarget("Target 1"))
	events := f.studio.Subscribe()

	moved, _ := f.studio.MoveAll()
	f.robot1.WaitStarted(t)
	f.robot2.WaitStarted(t)

	f.studio.Cleanup()
	f.studio.Cleanup()
	waitClosed(t, moved)

	assert.Zero(t, f.robot1.Subscribers())
	assert.Zero(t, f.robot2.Subscribers())
	assert.Zero(t, f.robot1.InFlight())
	assert.False(t, f.studio.CanMoveAll())

	for range events {
	}

	late := f.studio.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}
