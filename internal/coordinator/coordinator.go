// Package coordinator owns the current move of one robot and publishes its
// status for display.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/metrics"
	"github.com/KevinKickass/OpenStudioCore/internal/move"
	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"go.uber.org/zap"
)

const cleanupTimeout = 5 * time.Second

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithMoveTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.moveTimeout = d
	}
}

// Coordinator owns the move session of one robot. All methods are safe for
// concurrent use.
type Coordinator struct {
	name        string
	logger      *zap.Logger
	metrics     *metrics.Collector
	listener    Listener
	moveTimeout time.Duration

	selected atomic.Pointer[types.Target]

	// mu guards the current session slot and the actuator reference.
	mu      sync.Mutex
	current *move.Session
	robot   robot.Actuator

	// gate is held for the lifetime of one actuator call so superseded
	// sessions can never overlap on the device.
	gate chan struct{}

	stateMu        sync.RWMutex
	status         types.RobotStatus
	timeToShot     time.Duration
	maxTicksToShot int64

	unsubscribe []func()
	cleanupOnce sync.Once
}

// New subscribes to a's status and position events. listener may be nil.
func New(a robot.Actuator, listener Listener, opts ...Option) (*Coordinator, error) {
	if a == nil {
		return nil, fmt.Errorf("robot coordinator: actuator is nil")
	}

	c := &Coordinator{
		name:           a.Name(),
		logger:         zap.NewNop(),
		listener:       listener,
		moveTimeout:    move.DefaultTimeout,
		robot:          a,
		gate:           make(chan struct{}, 1),
		status:         types.RobotStatusIdle,
		maxTicksToShot: MinTicksToShot,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("robot", c.name))
	c.current = move.NewSession(nil)

	c.unsubscribe = []func(){
		a.OnStatusChanged(c.onStatusChanged),
		a.OnPositionChanged(c.onPositionChanged),
	}

	return c, nil
}

func (c *Coordinator) Name() string {
	return c.name
}

func (c *Coordinator) Status() types.RobotStatus {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.status
}

func (c *Coordinator) TimeToShot() time.Duration {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.timeToShot
}

// MaxTicksToShot is the largest time-to-shot seen since the last move or
// stop command, used to normalise progress.
func (c *Coordinator) MaxTicksToShot() int64 {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.maxTicksToShot
}

// SelectTarget records the studio-wide selection and republishes command
// availability.
func (c *Coordinator) SelectTarget(target *types.Target) {
	c.selected.Store(target)
	c.publish("")
}

func (c *Coordinator) SelectedTarget() *types.Target {
	return c.selected.Load()
}

// CanMove is true when a target is selected and the robot is not already
// moving to it.
func (c *Coordinator) CanMove() bool {
	target := c.selected.Load()
	if target == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.robot != nil && !c.current.IsInProgressTo(target)
}

// CanStop is true while the current move is in progress.
func (c *Coordinator) CanStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.robot != nil && c.current.IsInProgress()
}

// ExecuteCommand dispatches cmd to Move or Stop.
func (c *Coordinator) ExecuteCommand(cmd Command) (<-chan struct{}, error) {
	switch cmd {
	case CommandMove:
		return c.Move()
	case CommandStop:
		return c.Stop()
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

// Move sends the robot to the selected target. The session swap happens
// before Move returns; cancelling the previous move and driving the
// actuator run in the background and the returned channel is closed once
// the move has settled.
func (c *Coordinator) Move() (<-chan struct{}, error) {
	target := c.selected.Load()
	if target == nil {
		return nil, ErrCommandUnavailable
	}

	session := move.NewSession(target,
		move.WithTimeout(c.moveTimeout),
		move.WithLogger(c.logger))

	c.mu.Lock()
	a := c.robot
	if a == nil {
		c.mu.Unlock()
		session.Close()
		return nil, ErrClosed
	}
	if c.current.IsInProgressTo(target) {
		c.mu.Unlock()
		session.Close()
		c.logger.Debug("Robot already in progress to target, move dropped",
			zap.String("target", target.Name()))
		c.metrics.MoveFinished(c.name, metrics.OutcomeSkipped, 0)
		c.publish("")
		return nil, ErrCommandUnavailable
	}
	previous := c.current
	c.current = session
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.executeMove(a, session, previous)
	}()

	return done, nil
}

func (c *Coordinator) executeMove(a robot.Actuator, session, previous *move.Session) {
	defer session.Close()

	// The retired move must have drained before the next call is issued.
	_ = previous.Cancel(context.Background())

	select {
	case c.gate <- struct{}{}:
	case <-session.Done():
		c.moveSuperseded(session)
		return
	}
	if c.superseded(session) {
		<-c.gate
		c.moveSuperseded(session)
		return
	}

	c.resetProgress()
	c.publish("")

	started := time.Now()
	done, err := session.MoveRobotToTarget(a)
	if err != nil {
		<-c.gate
		c.logger.DPanic("Move session started twice",
			zap.String("session", session.ID().String()),
			zap.Error(err))
		c.publish("")
		return
	}
	<-done
	<-c.gate

	target := session.Target().Name()
	err = session.Err()
	switch {
	case err == nil:
		c.metrics.MoveFinished(c.name, metrics.OutcomeCompleted, time.Since(started))
	case robot.IsCancellation(err):
		c.logger.Debug("Move cancelled",
			zap.String("target", target),
			zap.Error(err))
		c.metrics.MoveFinished(c.name, metrics.OutcomeCancelled, time.Since(started))
	default:
		c.logger.Error("Move failed",
			zap.String("target", target),
			zap.Error(err))
		c.metrics.MoveFinished(c.name, metrics.OutcomeFaulted, time.Since(started))
		c.publish(err.Error())
	}

	c.publish("")
}

// superseded reports whether session lost the slot or was cancelled before
// its actuator call was issued.
func (c *Coordinator) superseded(session *move.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != session || session.State().Terminal()
}

// moveSuperseded accounts for a session that never reached the actuator.
// Progress belongs to whichever move replaced it and is left alone.
func (c *Coordinator) moveSuperseded(session *move.Session) {
	c.logger.Debug("Move superseded before it started",
		zap.String("session", session.ID().String()),
		zap.String("target", session.Target().Name()))
	c.metrics.MoveFinished(c.name, metrics.OutcomeCancelled, 0)
}

// Stop cancels the current move. The returned channel is closed once the
// move has drained.
func (c *Coordinator) Stop() (<-chan struct{}, error) {
	c.mu.Lock()
	a := c.robot
	current := c.current
	c.mu.Unlock()
	if a == nil {
		return nil, ErrClosed
	}
	if !current.IsInProgress() {
		return nil, ErrCommandUnavailable
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = current.Cancel(context.Background())
		c.setTimeToShot(0)
		c.publish("")
	}()

	return done, nil
}

// Snapshot returns the current presentation state.
func (c *Coordinator) Snapshot() State {
	c.stateMu.RLock()
	state := State{
		Name:           c.name,
		Status:         c.status,
		TimeToShot:     c.timeToShot,
		MaxTicksToShot: c.maxTicksToShot,
	}
	c.stateMu.RUnlock()

	c.mu.Lock()
	if c.current.IsInProgress() {
		state.Target = c.current.Target().Name()
	}
	c.mu.Unlock()

	state.CanMove = c.CanMove()
	state.CanStop = c.CanStop()
	return state
}

// Cleanup unsubscribes from the actuator, cancels any move and releases the
// actuator. Safe to call more than once.
func (c *Coordinator) Cleanup() {
	c.cleanupOnce.Do(func() {
		for _, unsubscribe := range c.unsubscribe {
			unsubscribe()
		}

		c.mu.Lock()
		current := c.current
		c.robot = nil
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := current.Cancel(ctx); err != nil {
			c.logger.Warn("Move did not drain during cleanup", zap.Error(err))
		}

		c.logger.Info("Robot coordinator cleaned up")
	})
}

func (c *Coordinator) onStatusChanged(e types.StatusChangedEvent) {
	c.stateMu.Lock()
	c.status = e.Status
	c.stateMu.Unlock()

	c.metrics.SetMoving(c.name, e.Status == types.RobotStatusMoving)
	c.publish("")
}

func (c *Coordinator) onPositionChanged(e types.PositionChangedEvent) {
	c.setTimeToShot(e.TimeToShot)
	c.publish("")
}

// setTimeToShot raises the high-water mark when d exceeds it.
func (c *Coordinator) setTimeToShot(d time.Duration) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.timeToShot = d
	if ticks := int64(d); ticks > c.maxTicksToShot {
		c.maxTicksToShot = ticks
	}
}

func (c *Coordinator) resetProgress() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.timeToShot = 0
	c.maxTicksToShot = MinTicksToShot
}

func (c *Coordinator) publish(message string) {
	if c.listener == nil {
		return
	}
	c.listener.RobotUpdated(Update{
		Robot:   c.name,
		Message: message,
		Time:    time.Now(),
		State:   c.Snapshot(),
	})
}
