package types

import (
	"errors"
	"fmt"
	"time"
)

var ErrDuplicateShot = errors.New("duplicate shot for robot")

// Position is a pan/tilt pair in degrees.
type Position struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
}

func NewPosition(pan, tilt float64) Position {
	return Position{Pan: pan, Tilt: tilt}
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.Pan, p.Tilt)
}

// Shot stores the position one robot uses to point at a target.
type Shot struct {
	RobotID  string   `json:"robot_id"`
	Position Position `json:"position"`
}

// Target is a named aim point with at most one shot per robot.
// The name is only unique within a studio.
type Target struct {
	name  string
	shots []Shot
}

func NewTarget(name string, shots ...Shot) (*Target, error) {
	seen := make(map[string]struct{}, len(shots))
	for _, shot := range shots {
		if _, dup := seen[shot.RobotID]; dup {
			return nil, fmt.Errorf("target %q: %w %q", name, ErrDuplicateShot, shot.RobotID)
		}
		seen[shot.RobotID] = struct{}{}
	}

	return &Target{
		name:  name,
		shots: append([]Shot(nil), shots...),
	}, nil
}

func (t *Target) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Shots returns a copy of the stored shots in their original order.
func (t *Target) Shots() []Shot {
	if t == nil {
		return nil
	}
	return append([]Shot(nil), t.shots...)
}

// ShotFor returns the shot stored for robotID. Matching is exact.
func (t *Target) ShotFor(robotID string) (Shot, bool) {
	if t == nil {
		return Shot{}, false
	}
	for _, shot := range t.shots {
		if shot.RobotID == robotID {
			return shot, true
		}
	}
	return Shot{}, false
}

// PositionFor is ShotFor without the shot wrapper.
func (t *Target) PositionFor(robotID string) (Position, bool) {
	shot, ok := t.ShotFor(robotID)
	return shot.Position, ok
}

type RobotStatus int

const (
	RobotStatusIdle RobotStatus = iota
	RobotStatusMoving
)

func (s RobotStatus) String() string {
	switch s {
	case RobotStatusIdle:
		return "Idle"
	case RobotStatusMoving:
		return "Moving"
	default:
		return "Unknown"
	}
}

func (s RobotStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RobotStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Idle":
		*s = RobotStatusIdle
	case "Moving":
		*s = RobotStatusMoving
	default:
		return fmt.Errorf("unknown robot status %q", text)
	}
	return nil
}

// StatusChangedEvent is raised by an actuator when it starts or stops moving.
type StatusChangedEvent struct {
	Status RobotStatus
}

// PositionChangedEvent is raised by an actuator while moving.
type PositionChangedEvent struct {
	Position   Position
	TimeToShot time.Duration
}
