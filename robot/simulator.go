package robot

import (
	"github.com/scribblebotics/goscribble/robot/hardware"
)

// SimulatedMotorDriver stands in for the GPIO darlington board. It records
// what was last written so tests and the -sim daemon can run headless.
type SimulatedMotorDriver struct {
	Pattern   uint8
	Writes    int
	Energized bool
}

func (d *SimulatedMotorDriver) SetPhase(pattern uint8) {
	d.Pattern = pattern
	d.Writes++
	d.Energized = true
}

func (d *SimulatedMotorDriver) Release() {
	d.Energized = false
}

// SimulatedServoDriver stands in for the PWM servo output.
type SimulatedServoDriver struct {
	Angle  float64
	Writes int
}

func (d *SimulatedServoDriver) SetAngle(deg float64) {
	d.Angle = deg
	d.Writes++
}

// NewSimulated builds a coordinator wired entirely to simulated drivers.
func NewSimulated(cfg ScribbleConfig) (c *Coordinator) {
	clock := hardware.SystemClock()
	left := hardware.NewStepperMotor(new(SimulatedMotorDriver), clock, cfg.Stepper)
	right := hardware.NewStepperMotor(new(SimulatedMotorDriver), clock, cfg.Stepper)
	pen := hardware.NewPenServo(new(SimulatedServoDriver), cfg.Pen.UpAngle)

	return NewCoordinator(cfg, left, right, pen, clock)
}
