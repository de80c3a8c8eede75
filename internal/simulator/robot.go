// Package simulator provides a software pan/tilt head that implements
// robot.Actuator.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"go.uber.org/zap"
)

const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultSpeed        = 30.0
)

// RobotConfig describes one simulated head. Speed is in degrees per second
// on each axis; FaultRate is the chance of a drive fault per tick.
type RobotConfig struct {
	Name      string
	Pan       robot.Limits
	Tilt      robot.Limits
	Speed     float64
	FaultRate float64
	Initial   types.Position
}

type Option func(*Robot)

func WithTickInterval(d time.Duration) Option {
	return func(r *Robot) {
		if d > 0 {
			r.tick = d
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(r *Robot) {
		if rng != nil {
			r.rng = rng
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Robot) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type Robot struct {
	cfg    RobotConfig
	tick   time.Duration
	logger *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	status   robot.Notifier[types.StatusChangedEvent]
	position robot.Notifier[types.PositionChangedEvent]

	mu     sync.Mutex
	pos    types.Position
	moving bool
}

var _ robot.Actuator = (*Robot)(nil)

func NewRobot(cfg RobotConfig, opts ...Option) *Robot {
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultSpeed
	}

	r := &Robot{
		cfg:    cfg,
		tick:   DefaultTickInterval,
		logger: zap.NewNop(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		pos:    cfg.Initial,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("robot", cfg.Name))

	return r
}

func (r *Robot) Name() string {
	return r.cfg.Name
}

func (r *Robot) Position() types.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

func (r *Robot) Status() types.RobotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.moving {
		return types.RobotStatusMoving
	}
	return types.RobotStatusIdle
}

func (r *Robot) OnStatusChanged(handler func(types.StatusChangedEvent)) func() {
	return r.status.Subscribe(handler)
}

func (r *Robot) OnPositionChanged(handler func(types.PositionChangedEvent)) func() {
	return r.position.Subscribe(handler)
}

// MoveToPosition drives the head toward target one tick at a time and
// returns once it is there, the context is done or a fault is injected.
func (r *Robot) MoveToPosition(ctx context.Context, target types.Position) error {
	if !r.cfg.Pan.Contains(target.Pan) || !r.cfg.Tilt.Contains(target.Tilt) {
		return &robot.OutOfRangeError{
			Robot:    r.cfg.Name,
			Position: target,
			Pan:      r.cfg.Pan,
			Tilt:     r.cfg.Tilt,
		}
	}

	r.mu.Lock()
	if r.moving {
		r.mu.Unlock()
		return robot.ErrMoveInProgress
	}
	r.moving = true
	start := r.pos
	r.mu.Unlock()

	r.logger.Debug("Move started",
		zap.Stringer("from", start),
		zap.Stringer("to", target))
	r.status.Broadcast(types.StatusChangedEvent{Status: types.RobotStatusMoving})
	defer func() {
		r.mu.Lock()
		r.moving = false
		r.mu.Unlock()
		r.status.Broadcast(types.StatusChangedEvent{Status: types.RobotStatusIdle})
	}()

	r.position.Broadcast(types.PositionChangedEvent{
		Position:   start,
		TimeToShot: r.remaining(start, target),
	})
	if start == target {
		return nil
	}

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Move interrupted",
				zap.Stringer("position", r.Position()),
				zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}

		if r.fault() {
			pos := r.Position()
			r.logger.Warn("Injected drive fault", zap.Stringer("position", pos))
			return &robot.FaultError{
				Robot:  r.cfg.Name,
				Reason: fmt.Sprintf("drive fault at %s", pos),
			}
		}

		pos := r.step(target)
		r.position.Broadcast(types.PositionChangedEvent{
			Position:   pos,
			TimeToShot: r.remaining(pos, target),
		})
		if pos == target {
			return nil
		}
	}
}

func (r *Robot) step(target types.Position) types.Position {
	delta := r.cfg.Speed * r.tick.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = types.Position{
		Pan:  approach(r.pos.Pan, target.Pan, delta),
		Tilt: approach(r.pos.Tilt, target.Tilt, delta),
	}
	return r.pos
}

func (r *Robot) remaining(from, to types.Position) time.Duration {
	distance := math.Max(math.Abs(to.Pan-from.Pan), math.Abs(to.Tilt-from.Tilt))
	return time.Duration(distance / r.cfg.Speed * float64(time.Second))
}

func (r *Robot) fault() bool {
	if r.cfg.FaultRate <= 0 {
		return false
	}
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.Float64() < r.cfg.FaultRate
}

func approach(current, target, delta float64) float64 {
	if math.Abs(target-current) <= delta {
		return target
	}
	if target > current {
		return current + delta
	}
	return current - delta
}
