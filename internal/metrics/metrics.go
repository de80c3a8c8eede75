// Package metrics exposes Prometheus collectors for robot moves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Move outcomes used as label values.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFaulted   = "faulted"
	OutcomeSkipped   = "skipped"
)

// Collector groups the studio collectors. A nil *Collector is valid and
// records nothing.
type Collector struct {
	moves        *prometheus.CounterVec
	moveDuration *prometheus.HistogramVec
	moving       *prometheus.GaugeVec
	messages     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		moves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "studio",
				Name:      "moves_total",
				Help:      "Move commands by robot and outcome",
			},
			[]string{"robot", "outcome"},
		),
		moveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "studio",
				Name:      "move_duration_seconds",
				Help:      "Duration of actuator moves",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"robot", "outcome"},
		),
		moving: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "studio",
				Name:      "robot_moving",
				Help:      "1 while the actuator reports Moving",
			},
			[]string{"robot"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "studio",
				Name:      "robot_messages_total",
				Help:      "Error messages added to the studio feed",
			},
			[]string{"robot"},
		),
	}

	for _, collector := range []prometheus.Collector{c.moves, c.moveDuration, c.moving, c.messages} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Collector) MoveFinished(robot, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.moves.WithLabelValues(robot, outcome).Inc()
	if outcome != OutcomeSkipped {
		c.moveDuration.WithLabelValues(robot, outcome).Observe(elapsed.Seconds())
	}
}

func (c *Collector) SetMoving(robot string, moving bool) {
	if c == nil {
		return
	}
	value := 0.0
	if moving {
		value = 1
	}
	c.moving.WithLabelValues(robot).Set(value)
}

func (c *Collector) MessageRecorded(robot string) {
	if c == nil {
		return
	}
	c.messages.WithLabelValues(robot).Inc()
}
