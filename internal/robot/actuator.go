// Package robot defines the contract between the studio and a pan/tilt actuator.
package robot

import (
	"context"

	"github.com/KevinKickass/OpenStudioCore/internal/types"
)

// Actuator is a uniquely named device that moves to a pan/tilt position.
type Actuator interface {
	// Name is unique within a studio and stable for the process lifetime.
	Name() string

	// MoveToPosition blocks until the move completes, ctx is done or the
	// device fails. It returns ErrMoveInProgress if a previous move is still
	// outstanding, an *OutOfRangeError if position is outside the device
	// limits and a *FaultError for device failures during the move.
	MoveToPosition(ctx context.Context, position types.Position) error

	// OnStatusChanged registers handler and returns its unsubscribe func.
	OnStatusChanged(handler func(types.StatusChangedEvent)) (unsubscribe func())

	// OnPositionChanged registers handler and returns its unsubscribe func.
	OnPositionChanged(handler func(types.PositionChangedEvent)) (unsubscribe func())
}
