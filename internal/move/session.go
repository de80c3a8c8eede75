// Package move coordinates a single move attempt of one robot toward one
// target.
package move

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every move, stopped or not.
const DefaultTimeout = time.Minute

// ErrAlreadyStarted is returned when MoveRobotToTarget is called a second
// time on the same session.
var ErrAlreadyStarted = errors.New("MoveRobotToTarget can only be called once per session")

// State is the lifecycle position of a session.
type State string

const (
	StateCreated    State = "created"
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateCompleted  State = "completed"
	StateFaulted    State = "faulted"
	StateCancelled  State = "cancelled"
)

// Terminal is true for completed, faulted and cancelled sessions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFaulted || s == StateCancelled
}

// Option configures a Session.
type Option func(*Session)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is a one-shot move of one robot toward one target. A nil target
// makes a session that never moves anything.
type Session struct {
	id      uuid.UUID
	timeout time.Duration
	logger  *zap.Logger
	done    chan struct{}

	// mu makes arming the move and requesting cancellation mutually
	// exclusive, so a cancel that wins the race prevents the actuator call.
	mu              sync.Mutex
	target          *types.Target
	state           State
	invoked         bool
	cancelRequested bool
	closed          bool
	cancel          context.CancelFunc
	err             error
}

// NewSession creates a session for target in the created state. Nothing
// moves until MoveRobotToTarget.
func NewSession(target *types.Target, opts ...Option) *Session {
	s := &Session{
		id:      uuid.New(),
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		done:    make(chan struct{}),
		target:  target,
		state:   StateCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Target() *types.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsInProgress is true while a target is assigned and the move has not
// reached a terminal state.
func (s *Session) IsInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgressLocked()
}

// IsInProgressTo is IsInProgress restricted to target, compared by name
// without regard to case.
func (s *Session) IsInProgressTo(target *types.Target) bool {
	if target == nil || strings.TrimSpace(target.Name()) == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgressLocked() && strings.EqualFold(target.Name(), s.target.Name())
}

func (s *Session) inProgressLocked() bool {
	return s.target.Name() != "" && !s.state.Terminal()
}

// MoveRobotToTarget starts the move of a toward the session target. It
// returns a channel that is closed once the actuator call has resolved; Err
// reports the outcome. When the target has no shot for the robot nothing is
// issued and the returned channel is already closed.
func (s *Session) MoveRobotToTarget(a robot.Actuator) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invoked {
		return nil, ErrAlreadyStarted
	}
	s.invoked = true

	if s.state.Terminal() || s.cancelRequested {
		return s.done, nil
	}

	if a == nil {
		s.finishLocked(StateCompleted, nil)
		return s.done, nil
	}

	position, ok := s.target.PositionFor(a.Name())
	if !ok {
		s.logger.Debug("No shot stored for robot",
			zap.String("robot", a.Name()),
			zap.String("target", s.target.Name()))
		s.finishLocked(StateCompleted, nil)
		return s.done, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancel = cancel
	s.state = StateRunning

	s.logger.Debug("Move started",
		zap.String("session", s.id.String()),
		zap.String("robot", a.Name()),
		zap.String("target", s.target.Name()),
		zap.Stringer("position", position))

	go s.run(ctx, a, position)

	return s.done, nil
}

func (s *Session) run(ctx context.Context, a robot.Actuator, position types.Position) {
	err := a.MoveToPosition(ctx, position)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	switch {
	case err == nil:
		s.finishLocked(StateCompleted, nil)
	case robot.IsCancellation(err):
		s.finishLocked(StateCancelled, err)
	default:
		s.finishLocked(StateFaulted, err)
	}

	s.logger.Debug("Move finished",
		zap.String("session", s.id.String()),
		zap.String("state", string(s.state)),
		zap.Error(err))
}

// finishLocked must be called with mu held and at most once.
func (s *Session) finishLocked(state State, err error) {
	s.state = state
	s.err = err
	close(s.done)
}

// Cancel requests cancellation and waits until the actuator call, if any,
// has drained. Outcomes of the move itself are not reported here; only
// abandoning the wait through ctx returns an error.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	s.requestCancelLocked()
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) requestCancelLocked() {
	if s.cancelRequested {
		return
	}
	s.cancelRequested = true

	switch s.state {
	case StateCreated:
		s.finishLocked(StateCancelled, context.Canceled)
	case StateRunning:
		s.state = StateCancelling
		s.cancel()
	}
}

// Close releases the cancellation handle and the target. A running move is
// cancelled. Close is safe to call at any point and more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.requestCancelLocked()
	s.target = nil
}

// Done is closed once the session reached a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the outcome of the move: nil, a cancellation error or the
// actuator fault.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the session is terminal and returns Err.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
