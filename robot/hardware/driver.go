package hardware

import "time"

// MotorDriver is the capability a stepper motor needs from the electronics
// behind it. Implementations exist for ULN2003-style GPIO boards and for the
// simulator; the timing logic never touches pins directly.
type MotorDriver interface {
	// SetPhase energizes the coils for the given entry of the commutation
	// table. The pattern is one bit per coil, lowest bit first.
	SetPhase(pattern uint8)

	// Release de-energizes all coils. The motor freewheels with no holding
	// torque until the next SetPhase.
	Release()
}

// ServoDriver positions the pen lift servo at an absolute angle in degrees.
type ServoDriver interface {
	SetAngle(deg float64)
}

// Clock samples a monotonic timestamp. Injected so the step gate can be
// tested without waiting on wall time.
type Clock func() time.Duration

// SystemClock returns a Clock backed by the runtime monotonic clock.
func SystemClock() Clock {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
