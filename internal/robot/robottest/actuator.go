// Package robottest provides a scriptable robot.Actuator for tests.
package robottest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
)

// Actuator blocks every move until the test calls Complete or the move
// context is done. Overlapping calls are rejected with robot.ErrMoveInProgress
// and counted, so tests can assert that never happens.
type Actuator struct {
	name string

	status   robot.Notifier[types.StatusChangedEvent]
	position robot.Notifier[types.PositionChangedEvent]

	started chan types.Position
	results chan error

	mu          sync.Mutex
	calls       []types.Position
	inFlight    int
	maxInFlight int
	rejected    int
}

var _ robot.Actuator = (*Actuator)(nil)

func NewActuator(name string) *Actuator {
	return &Actuator{
		name:    name,
		started: make(chan types.Position, 64),
		results: make(chan error),
	}
}

func (a *Actuator) Name() string {
	return a.name
}

func (a *Actuator) MoveToPosition(ctx context.Context, position types.Position) error {
	a.mu.Lock()
	a.calls = append(a.calls, position)
	if a.inFlight > 0 {
		a.rejected++
		a.mu.Unlock()
		return robot.ErrMoveInProgress
	}
	a.inFlight++
	if a.inFlight > a.maxInFlight {
		a.maxInFlight = a.inFlight
	}
	a.mu.Unlock()

	a.status.Broadcast(types.StatusChangedEvent{Status: types.RobotStatusMoving})
	a.started <- position

	var err error
	select {
	case err = <-a.results:
	case <-ctx.Done():
		err = ctx.Err()
	}

	a.mu.Lock()
	a.inFlight--
	a.mu.Unlock()

	a.status.Broadcast(types.StatusChangedEvent{Status: types.RobotStatusIdle})
	return err
}

func (a *Actuator) OnStatusChanged(handler func(types.StatusChangedEvent)) func() {
	return a.status.Subscribe(handler)
}

func (a *Actuator) OnPositionChanged(handler func(types.PositionChangedEvent)) func() {
	return a.position.Subscribe(handler)
}

// EmitPosition raises a position changed event.
func (a *Actuator) EmitPosition(position types.Position, timeToShot time.Duration) {
	a.position.Broadcast(types.PositionChangedEvent{Position: position, TimeToShot: timeToShot})
}

// Complete resolves the outstanding move with err. It fails the test if no
// move picks the result up in time.
func (a *Actuator) Complete(t testing.TB, err error) {
	t.Helper()
	select {
	case a.results <- err:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no move in flight to complete", a.name)
	}
}

// WaitStarted returns the position of the next move issued.
func (a *Actuator) WaitStarted(t testing.TB) types.Position {
	t.Helper()
	select {
	case pos := <-a.started:
		return pos
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no move started", a.name)
		return types.Position{}
	}
}

// AssertNoMoveStarted fails if a move is issued within d.
func (a *Actuator) AssertNoMoveStarted(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case pos := <-a.started:
		t.Fatalf("%s: unexpected move to %s", a.name, pos)
	case <-time.After(d):
	}
}

func (a *Actuator) Calls() []types.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.Position(nil), a.calls...)
}

func (a *Actuator) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

func (a *Actuator) MaxInFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxInFlight
}

// Rejected counts calls made while another move was outstanding.
func (a *Actuator) Rejected() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejected
}

// Subscribers returns the number of registered status and position handlers.
func (a *Actuator) Subscribers() int {
	return a.status.Len() + a.position.Len()
}
