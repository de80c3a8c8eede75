package coordinator

import (
	"errors"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/types"
)

// MinTicksToShot is the floor of the time-to-shot high-water mark. One tick
// is one nanosecond of time.Duration.
const MinTicksToShot int64 = 1

var (
	// ErrCommandUnavailable is returned when CanMove or CanStop is false.
	ErrCommandUnavailable = errors.New("command not available")
	ErrClosed             = errors.New("robot coordinator cleaned up")
)

// Command names an operator action accepted by ExecuteCommand.
type Command string

const (
	CommandMove Command = "move"
	CommandStop Command = "stop"
)

// State is the presentation view of one robot.
type State struct {
	Name           string            `json:"name"`
	Status         types.RobotStatus `json:"status"`
	TimeToShot     time.Duration     `json:"time_to_shot"`
	MaxTicksToShot int64             `json:"max_ticks_to_shot"`
	Target         string            `json:"target,omitempty"`
	CanMove        bool              `json:"can_move"`
	CanStop        bool              `json:"can_stop"`
}

// Update is published whenever a coordinator's state or command
// availability may have changed. Message is set for robot errors only.
type Update struct {
	Robot   string
	Message string
	Time    time.Time
	State   State
}

// Listener receives every Update a coordinator publishes. It is called
// synchronously from the publishing goroutine.
type Listener interface {
	RobotUpdated(Update)
}

// ListenerFunc adapts a plain func to Listener.
type ListenerFunc func(Update)

func (f ListenerFunc) RobotUpdated(u Update) {
	f(u)
}
