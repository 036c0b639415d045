package hardware

import "time"

// PenServo lifts and lowers the pen by interpolating the servo linearly from
// the angle held when a target was set towards the target, over a fixed
// duration. Advance is called once per control tick with the current
// monotonic timestamp; the servo is written only while a move is in flight.
type PenServo struct {
	driver ServoDriver

	current float64
	origin  float64
	target  float64
	started time.Duration
	travel  time.Duration
	moving  bool
}

func NewPenServo(driver ServoDriver, restAngle float64) (p *PenServo) {
	p = &PenServo{
		driver:  driver,
		current: restAngle,
		target:  restAngle,
	}
	driver.SetAngle(restAngle)
	return
}

// SetTarget begins a move to the given angle over the given duration.
// Setting the angle the servo is already at is a no-op.
func (p *PenServo) SetTarget(angleDeg float64, travel time.Duration) {
	if angleDeg == p.target && !p.moving {
		return
	}
	p.origin = p.current
	p.target = angleDeg
	p.travel = travel
	p.started = -1 // latched on the first Advance
	p.moving = true
}

// Advance moves the interpolation forward to now.
func (p *PenServo) Advance(now time.Duration) {
	if !p.moving {
		return
	}
	if p.started < 0 {
		p.started = now
	}

	elapsed := now - p.started
	if p.travel <= 0 || elapsed >= p.travel {
		p.current = p.target
		p.moving = false
	} else {
		frac := float64(elapsed) / float64(p.travel)
		p.current = p.origin + (p.target-p.origin)*frac
	}

	p.driver.SetAngle(p.current)
}

func (p *PenServo) IsMoving() bool {
	return p.moving
}

// Angle returns the last angle written to the servo.
func (p *PenServo) Angle() float64 {
	return p.current
}
