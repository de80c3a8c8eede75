package robot

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenStudioCore/internal/types"
)

var ErrMoveInProgress = errors.New("a move is already in progress")

// Limits is the operating range of one axis, in degrees.
type Limits struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (l Limits) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// OutOfRangeError is returned when a requested position is outside the
// actuator's limits. Robot is carried alongside the message, not in it.
type OutOfRangeError struct {
	Robot    string
	Position types.Position
	Pan      Limits
	Tilt     Limits
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("position %s outside limits pan [%.1f, %.1f] tilt [%.1f, %.1f]",
		e.Position, e.Pan.Min, e.Pan.Max, e.Tilt.Min, e.Tilt.Max)
}

// FaultError reports a device failure during motion.
type FaultError struct {
	Robot  string
	Reason string
}

func (e *FaultError) Error() string {
	return e.Reason
}

// IsCancellation reports whether err is the expected outcome of a stop,
// a superseding move or the move deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
