// Package layout reads the studio layout file: the robots on the floor and
// the targets they can be sent to.
package layout

import (
	"fmt"
	"os"

	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/simulator"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"gopkg.in/yaml.v3"
)

type Layout struct {
	Version int          `yaml:"version"`
	Robots  []RobotSpec  `yaml:"robots"`
	Targets []TargetSpec `yaml:"targets"`
}

type RobotSpec struct {
	Name      string          `yaml:"name"`
	Pan       robot.Limits    `yaml:"pan"`
	Tilt      robot.Limits    `yaml:"tilt"`
	Speed     float64         `yaml:"speed"`
	FaultRate float64         `yaml:"fault_rate"`
	Initial   *types.Position `yaml:"initial"`
}

type TargetSpec struct {
	Name  string     `yaml:"name"`
	Shots []ShotSpec `yaml:"shots"`
}

type ShotSpec struct {
	Robot string  `yaml:"robot"`
	Pan   float64 `yaml:"pan"`
	Tilt  float64 `yaml:"tilt"`
}

// Load reads and validates the layout at path.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}

	layout, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return layout, nil
}

// Parse validates data against the layout schema and decodes it. Robot
// and target names must be unique and every shot must name a known robot.
func Parse(data []byte) (*Layout, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}
	if err := validator.ValidateYAML(data); err != nil {
		return nil, err
	}

	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout: %w", err)
	}

	if err := layout.check(); err != nil {
		return nil, err
	}
	if _, err := layout.BuildTargets(); err != nil {
		return nil, err
	}
	return &layout, nil
}

func (l *Layout) check() error {
	robots := make(map[string]struct{}, len(l.Robots))
	for _, r := range l.Robots {
		if _, dup := robots[r.Name]; dup {
			return fmt.Errorf("duplicate robot %q", r.Name)
		}
		if r.Pan.Min > r.Pan.Max || r.Tilt.Min > r.Tilt.Max {
			return fmt.Errorf("robot %q: min limit above max", r.Name)
		}
		robots[r.Name] = struct{}{}
	}

	targets := make(map[string]struct{}, len(l.Targets))
	for _, t := range l.Targets {
		if _, dup := targets[t.Name]; dup {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		targets[t.Name] = struct{}{}
		for _, shot := range t.Shots {
			if _, ok := robots[shot.Robot]; !ok {
				return fmt.Errorf("target %q: shot for unknown robot %q", t.Name, shot.Robot)
			}
		}
	}

	return nil
}

// BuildTargets converts the target specs into domain targets, preserving
// file order.
func (l *Layout) BuildTargets() ([]*types.Target, error) {
	targets := make([]*types.Target, 0, len(l.Targets))
	for _, spec := range l.Targets {
		shots := make([]types.Shot, 0, len(spec.Shots))
		for _, s := range spec.Shots {
			shots = append(shots, types.Shot{
				RobotID:  s.Robot,
				Position: types.NewPosition(s.Pan, s.Tilt),
			})
		}

		target, err := types.NewTarget(spec.Name, shots...)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// SimulatorConfig maps a layout robot onto the simulated head.
func (r RobotSpec) SimulatorConfig() simulator.RobotConfig {
	cfg := simulator.RobotConfig{
		Name:      r.Name,
		Pan:       r.Pan,
		Tilt:      r.Tilt,
		Speed:     r.Speed,
		FaultRate: r.FaultRate,
	}
	if r.Initial != nil {
		cfg.Initial = *r.Initial
	}
	return cfg
}
