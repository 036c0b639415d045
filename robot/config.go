package robot

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v2"

	"github.com/scribblebotics/goscribble/robot/hardware"
)

// Config files older or newer than this constraint are refused rather than
// silently misread.
const CONFIG_VERSION = "~0.2.0"

// Workspace is the rectangle of coordinates the robot may be sent to.
// Bounds are inclusive.
type Workspace struct {
	MinX float64 `yaml:"min_x"`
	MaxX float64 `yaml:"max_x"`
	MinY float64 `yaml:"min_y"`
	MaxY float64 `yaml:"max_y"`
}

func (w Workspace) Contains(x, y float64) bool {
	return x >= w.MinX && x <= w.MaxX && y >= w.MinY && y <= w.MaxY
}

// MotionConfig holds the speed ceilings and the hand-tuned decomposition
// constants. The tolerances are configuration, not literals, so they can be
// retuned without touching the coordinator.
type MotionConfig struct {
	MaxSpeed    float64 `yaml:"max_speed"`     // mm/s
	MaxTurnRate float64 `yaml:"max_turn_rate"` // rad/s

	HeadingToleranceDeg float64 `yaml:"heading_tolerance_deg"`
	SegmentMM           float64 `yaml:"segment_mm"`
	ArrivalMM           float64 `yaml:"arrival_mm"`
}

// HeadingTolerance returns the rotate-first threshold in radians.
func (m MotionConfig) HeadingTolerance() float64 {
	return mgl64.DegToRad(m.HeadingToleranceDeg)
}

type PenConfig struct {
	UpAngle   float64 `yaml:"up_angle"`
	DownAngle float64 `yaml:"down_angle"`
	TravelMS  int     `yaml:"travel_ms"`
}

func (p PenConfig) Travel() time.Duration {
	return time.Duration(p.TravelMS) * time.Millisecond
}

type PinsConfig struct {
	Left  []int `yaml:"left,flow"`
	Right []int `yaml:"right,flow"`
	Servo int   `yaml:"servo"`
}

type ScribbleConfig struct {
	Version   string                 `yaml:"version"`
	Geometry  Geometry               `yaml:"geometry"`
	Workspace Workspace              `yaml:"workspace"`
	Motion    MotionConfig           `yaml:"motion"`
	Stepper   hardware.StepperConfig `yaml:"stepper"`
	Pins      PinsConfig             `yaml:"pins"`
	Pen       PenConfig              `yaml:"pen"`
}

// LoadConfig parses and validates a yaml config document.
func LoadConfig(data []byte) (cfg ScribbleConfig, err error) {
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return
	}

	ver, err := semver.NewVersion(cfg.Version)
	if err != nil {
		return cfg, fmt.Errorf("config version %q is not a semver: %v", cfg.Version, err)
	}
	constraint, err := semver.NewConstraint(CONFIG_VERSION)
	if err != nil {
		return
	}
	if !constraint.Check(ver) {
		return cfg, fmt.Errorf("unable to use config version %s - require %s", cfg.Version, CONFIG_VERSION)
	}

	if cfg.Geometry.WheelDiameter <= 0 || cfg.Geometry.Wheelbase <= 0 || cfg.Geometry.StepsPerRev <= 0 {
		return cfg, fmt.Errorf("geometry values must all be positive")
	}
	if cfg.Workspace.MinX >= cfg.Workspace.MaxX || cfg.Workspace.MinY >= cfg.Workspace.MaxY {
		return cfg, fmt.Errorf("workspace rectangle is empty")
	}
	if cfg.Stepper.MinRate <= 0 || cfg.Stepper.MaxRate < cfg.Stepper.MinRate {
		return cfg, fmt.Errorf("stepper rate range is invalid")
	}

	return
}
