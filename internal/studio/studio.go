// Package studio aggregates the robot coordinators of one studio, owns the
// selected target and keeps the feed of robot error messages.
package studio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/coordinator"
	"github.com/KevinKickass/OpenStudioCore/internal/metrics"
	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultMaxMessages = 200

var (
	ErrUnknownTarget = errors.New("unknown target")
	ErrUnknownRobot  = errors.New("unknown robot")
)

type Option func(*Studio)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Studio) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Studio) {
		s.metrics = m
	}
}

func WithMaxMessages(n int) Option {
	return func(s *Studio) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

func WithMoveTimeout(d time.Duration) Option {
	return func(s *Studio) {
		s.moveTimeout = d
	}
}

type Studio struct {
	logger      *zap.Logger
	metrics     *metrics.Collector
	maxMessages int
	moveTimeout time.Duration

	robots      []*coordinator.Coordinator
	robotIndex  map[string]*coordinator.Coordinator
	targets     []*types.Target
	targetIndex map[string]*types.Target

	// selectMu orders selection changes. Nothing reachable from a
	// coordinator callback takes it.
	selectMu sync.Mutex
	selected atomic.Pointer[types.Target]

	msgMu    sync.RWMutex
	messages []Message

	subMu       sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool

	cleanupOnce sync.Once
}

// New builds one coordinator per actuator. Robot and target names must be
// unique.
func New(actuators []robot.Actuator, targets []*types.Target, opts ...Option) (*Studio, error) {
	s := &Studio{
		logger:      zap.NewNop(),
		maxMessages: DefaultMaxMessages,
		robotIndex:  make(map[string]*coordinator.Coordinator, len(actuators)),
		targetIndex: make(map[string]*types.Target, len(targets)),
		subscribers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, target := range targets {
		if target == nil {
			return nil, fmt.Errorf("studio: nil target")
		}
		if _, dup := s.targetIndex[target.Name()]; dup {
			return nil, fmt.Errorf("studio: duplicate target %q", target.Name())
		}
		s.targetIndex[target.Name()] = target
		s.targets = append(s.targets, target)
	}

	listener := coordinator.ListenerFunc(s.robotUpdated)
	for _, a := range actuators {
		if a == nil {
			s.cleanupRobots()
			return nil, fmt.Errorf("studio: nil actuator")
		}
		if _, dup := s.robotIndex[a.Name()]; dup {
			s.cleanupRobots()
			return nil, fmt.Errorf("studio: duplicate robot %q", a.Name())
		}

		c, err := coordinator.New(a, listener,
			coordinator.WithLogger(s.logger.Named("coordinator")),
			coordinator.WithMetrics(s.metrics),
			coordinator.WithMoveTimeout(s.moveTimeout))
		if err != nil {
			s.cleanupRobots()
			return nil, fmt.Errorf("studio: %w", err)
		}
		s.robotIndex[a.Name()] = c
		s.robots = append(s.robots, c)
	}

	s.logger.Info("Studio created",
		zap.Int("robots", len(s.robots)),
		zap.Int("targets", len(s.targets)))

	return s, nil
}

// Targets returns the configured targets in configuration order.
func (s *Studio) Targets() []*types.Target {
	return append([]*types.Target(nil), s.targets...)
}

func (s *Studio) Target(name string) (*types.Target, bool) {
	target, ok := s.targetIndex[name]
	return target, ok
}

// Robots returns the coordinators in configuration order.
func (s *Studio) Robots() []*coordinator.Coordinator {
	return append([]*coordinator.Coordinator(nil), s.robots...)
}

func (s *Studio) Robot(name string) (*coordinator.Coordinator, bool) {
	c, ok := s.robotIndex[name]
	return c, ok
}

// SelectTarget changes the studio-wide selection. An empty name clears it.
// Coordinators and subscribers are only notified when the selection
// actually changes.
func (s *Studio) SelectTarget(name string) error {
	var target *types.Target
	if name != "" {
		t, ok := s.targetIndex[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTarget, name)
		}
		target = t
	}

	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	if s.selected.Load() == target {
		return nil
	}
	s.selected.Store(target)

	for _, c := range s.robots {
		c.SelectTarget(target)
	}

	s.logger.Info("Target selected", zap.String("target", target.Name()))
	s.emit(Event{Type: EventTargetSelected, Target: target.Name()})
	return nil
}

func (s *Studio) SelectedTarget() *types.Target {
	return s.selected.Load()
}

func (s *Studio) CanMoveAll() bool {
	for _, c := range s.robots {
		if c.CanMove() {
			return true
		}
	}
	return false
}

func (s *Studio) CanStopAll() bool {
	for _, c := range s.robots {
		if c.CanStop() {
			return true
		}
	}
	return false
}

// MoveAll sends every robot that can move to the selected target. It
// returns the robots commanded and a channel closed once all of them have
// settled. Robots already moving to the selection are left alone.
func (s *Studio) MoveAll() (<-chan struct{}, []string) {
	return s.fanOut("move", (*coordinator.Coordinator).CanMove, (*coordinator.Coordinator).Move)
}

// StopAll stops every robot with a move in progress.
func (s *Studio) StopAll() (<-chan struct{}, []string) {
	return s.fanOut("stop", (*coordinator.Coordinator).CanStop, (*coordinator.Coordinator).Stop)
}

func (s *Studio) fanOut(
	command string,
	allowed func(*coordinator.Coordinator) bool,
	run func(*coordinator.Coordinator) (<-chan struct{}, error),
) (<-chan struct{}, []string) {
	var (
		names   []string
		pending []<-chan struct{}
	)
	for _, c := range s.robots {
		if !allowed(c) {
			continue
		}
		done, err := run(c)
		if err != nil {
			s.logger.Debug("Robot skipped",
				zap.String("command", command),
				zap.String("robot", c.Name()),
				zap.Error(err))
			continue
		}
		names = append(names, c.Name())
		pending = append(pending, done)
	}

	s.logger.Info("Studio command issued",
		zap.String("command", command),
		zap.Strings("robots", names))

	all := make(chan struct{})
	go func() {
		defer close(all)
		for _, done := range pending {
			<-done
		}
	}()
	return all, names
}

// Messages returns the feed, most recent first.
func (s *Studio) Messages() []Message {
	s.msgMu.RLock()
	defer s.msgMu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Studio) Snapshot() Snapshot {
	snap := Snapshot{
		SelectedTarget: s.selected.Load().Name(),
		Targets:        make([]TargetView, 0, len(s.targets)),
		Robots:         make([]coordinator.State, 0, len(s.robots)),
		Messages:       s.Messages(),
		CanMoveAll:     s.CanMoveAll(),
		CanStopAll:     s.CanStopAll(),
	}
	for _, target := range s.targets {
		snap.Targets = append(snap.Targets, NewTargetView(target))
	}
	for _, c := range s.robots {
		snap.Robots = append(snap.Robots, c.Snapshot())
	}
	return snap
}

func NewTargetView(target *types.Target) TargetView {
	view := TargetView{Name: target.Name(), Shots: []ShotView{}}
	for _, shot := range target.Shots() {
		view.Shots = append(view.Shots, ShotView{
			Robot: shot.RobotID,
			Pan:   shot.Position.Pan,
			Tilt:  shot.Position.Tilt,
		})
	}
	return view
}

// Cleanup releases every coordinator and closes all subscriber channels.
// Safe to call more than once.
func (s *Studio) Cleanup() {
	s.cleanupOnce.Do(func() {
		s.cleanupRobots()

		s.subMu.Lock()
		s.closed = true
		for ch := range s.subscribers {
			close(ch)
		}
		s.subscribers = make(map[chan Event]struct{})
		s.subMu.Unlock()

		s.logger.Info("Studio cleaned up")
	})
}

func (s *Studio) cleanupRobots() {
	for _, c := range s.robots {
		c.Cleanup()
	}
}

func (s *Studio) robotUpdated(u coordinator.Update) {
	if u.Message != "" {
		msg := s.recordMessage(u)
		s.emit(Event{Type: EventRobotMessage, Message: &msg})
	}

	state := u.State
	s.emit(Event{Type: EventRobotUpdate, Robot: &state})
}

func (s *Studio) recordMessage(u coordinator.Update) Message {
	msg := Message{
		ID:    uuid.New(),
		Robot: u.Robot,
		Time:  u.Time,
		Text:  u.Message,
	}

	s.msgMu.Lock()
	s.messages = append([]Message{msg}, s.messages...)
	if len(s.messages) > s.maxMessages {
		s.messages = s.messages[:s.maxMessages]
	}
	s.msgMu.Unlock()

	s.metrics.MessageRecorded(u.Robot)
	return msg
}
