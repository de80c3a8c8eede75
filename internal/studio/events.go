package studio

import (
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/coordinator"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	EventRobotUpdate    EventType = "robot_update"
	EventRobotMessage   EventType = "robot_message"
	EventTargetSelected EventType = "target_selected"
)

const subscriberBuffer = 64

// Event is delivered to every subscriber. Only the field matching Type is
// set; CanMoveAll and CanStopAll are computed when the event is emitted.
type Event struct {
	Type       EventType          `json:"type"`
	Time       time.Time          `json:"timestamp"`
	Robot      *coordinator.State `json:"robot,omitempty"`
	Message    *Message           `json:"message,omitempty"`
	Target     string             `json:"target,omitempty"`
	CanMoveAll bool               `json:"can_move_all"`
	CanStopAll bool               `json:"can_stop_all"`
}

// Message is one entry of the robot error feed.
type Message struct {
	ID    uuid.UUID `json:"id"`
	Robot string    `json:"robot"`
	Time  time.Time `json:"time"`
	Text  string    `json:"text"`
}

// TargetView is the presentation form of a target.
type TargetView struct {
	Name  string     `json:"name"`
	Shots []ShotView `json:"shots"`
}

type ShotView struct {
	Robot string  `json:"robot"`
	Pan   float64 `json:"pan"`
	Tilt  float64 `json:"tilt"`
}

// Snapshot aggregates the whole studio for display.
type Snapshot struct {
	SelectedTarget string              `json:"selected_target"`
	Targets        []TargetView        `json:"targets"`
	Robots         []coordinator.State `json:"robots"`
	Messages       []Message           `json:"messages"`
	CanMoveAll     bool                `json:"can_move_all"`
	CanStopAll     bool                `json:"can_stop_all"`
}

// Subscribe registers a new event channel. The channel is closed by
// Unsubscribe or Cleanup. Events are dropped for subscribers that fall
// behind.
func (s *Studio) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers[ch] = struct{}{}
	return ch
}

func (s *Studio) Unsubscribe(ch <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subscribers {
		if sub == ch {
			delete(s.subscribers, sub)
			close(sub)
			return
		}
	}
}

func (s *Studio) emit(e Event) {
	e.Time = time.Now()
	e.CanMoveAll = s.CanMoveAll()
	e.CanStopAll = s.CanStopAll()

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			s.logger.Warn("Subscriber buffer full, event dropped",
				zap.String("event_type", string(e.Type)))
		}
	}
}
