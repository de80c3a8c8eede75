package simulator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() RobotConfig {
	return RobotConfig{
		Name:  "Robot #1",
		Pan:   robot.Limits{Min: -170, Max: 170},
		Tilt:  robot.Limits{Min: -30, Max: 90},
		Speed: 100,
	}
}

func newTestRobot(t *testing.T, cfg RobotConfig, opts ...Option) *Robot {
	t.Helper()
	opts = append([]Option{
		WithTickInterval(time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	return NewRobot(cfg, opts...)
}

type eventLog struct {
	mu        sync.Mutex
	statuses  []types.RobotStatus
	positions []types.PositionChangedEvent
}

func (l *eventLog) attach(r *Robot) {
	r.OnStatusChanged(func(e types.StatusChangedEvent) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.statuses = append(l.statuses, e.Status)
	})
	r.OnPositionChanged(func(e types.PositionChangedEvent) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.positions = append(l.positions, e)
	})
}

func TestRobot_MovesToPosition(t *testing.T) {
	r := newTestRobot(t, testConfig())
	log := &eventLog{}
	log.attach(r)

	target := types.NewPosition(10, 5)
	require.NoError(t, r.MoveToPosition(context.Background(), target))

	assert.Equal(t, target, r.Position())
	assert.Equal(t, types.RobotStatusIdle, r.Status())
	assert.Equal(t, []types.RobotStatus{types.RobotStatusMoving, types.RobotStatusIdle}, log.statuses)

	require.NotEmpty(t, log.positions)
	first := log.positions[0]
	last := log.positions[len(log.positions)-1]
	assert.Equal(t, 100*time.Millisecond, first.TimeToShot)
	assert.Equal(t, target, last.Position)
	assert.Zero(t, last.TimeToShot)
	for i := 1; i < len(log.positions); i++ {
		assert.LessOrEqual(t, log.positions[i].TimeToShot, log.positions[i-1].TimeToShot)
	}
}

func TestRobot_RejectsOutOfRange(t *testing.T) {
	r := newTestRobot(t, testConfig())
	log := &eventLog{}
	log.attach(r)

	err := r.MoveToPosition(context.Background(), types.NewPosition(0, 120))

	var rangeErr *robot.OutOfRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, "Robot #1", rangeErr.Robot)
	assert.Empty(t, log.statuses)
	assert.Equal(t, types.Position{}, r.Position())
}

func TestRobot_RejectsOverlappingMove(t *testing.T) {
	r := newTestRobot(t, testConfig(), WithTickInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		errc <- r.MoveToPosition(ctx, types.NewPosition(90, 0))
	}()

	require.Eventually(t, func() bool {
		return r.Status() == types.RobotStatusMoving
	}, time.Second, time.Millisecond)

	err := r.MoveToPosition(context.Background(), types.NewPosition(-90, 0))
	assert.ErrorIs(t, err, robot.ErrMoveInProgress)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, types.RobotStatusIdle, r.Status())
}

func TestRobot_StopsOnDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Speed = 1
	r := newTestRobot(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.MoveToPosition(ctx, types.NewPosition(90, 0))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, robot.IsCancellation(err))

	pos := r.Position()
	assert.Greater(t, pos.Pan, 0.0)
	assert.Less(t, pos.Pan, 90.0)
}

func TestRobot_InjectsFaults(t *testing.T) {
	cfg := testConfig()
	cfg.FaultRate = 1
	r := newTestRobot(t, cfg, WithRand(rand.New(rand.NewSource(1))))

	err := r.MoveToPosition(context.Background(), types.NewPosition(50, 0))

	var fault *robot.FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "Robot #1", fault.Robot)
	assert.Contains(t, err.Error(), "drive fault")
	assert.Equal(t, types.RobotStatusIdle, r.Status())
}

func TestRobot_AlreadyThere(t *testing.T) {
	cfg := testConfig()
	cfg.Initial = types.NewPosition(10, 5)
	r := newTestRobot(t, cfg)

	require.NoError(t, r.MoveToPosition(context.Background(), types.NewPosition(10, 5)))
}

func TestRobot_DefaultSpeed(t *testing.T) {
	cfg := testConfig()
	cfg.Speed = 0
	r := NewRobot(cfg)
	assert.Equal(t, DefaultSpeed, r.cfg.Speed)
	assert.Equal(t, DefaultTickInterval, r.tick)
}

func TestApproach(t *testing.T) {
	assert.Equal(t, 5.0, approach(0, 10, 5))
	assert.Equal(t, 10.0, approach(8, 10, 5))
	assert.Equal(t, -5.0, approach(0, -10, 5))
	assert.Equal(t, 3.0, approach(3, 3, 5))
}
