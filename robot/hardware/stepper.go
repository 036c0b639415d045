package hardware

import "time"

const PHASE_COUNT = 8

// Half-step commutation sequence for a unipolar stepper, one bit per coil.
// Stepping forward walks the table upward, backward walks it down.
var phaseTable = [PHASE_COUNT]uint8{
	0b0001,
	0b0011,
	0b0010,
	0b0110,
	0b0100,
	0b1100,
	0b1000,
	0b1001,
}

// StepperConfig bounds the rate a motor will accept. Rates outside the range
// are clamped, never rejected.
type StepperConfig struct {
	MinRate float64 `yaml:"min_rate"` // steps per second
	MaxRate float64 `yaml:"max_rate"`
}

// StepperMotor owns the timing and phase state for one wheel. All stepping is
// gated on a minimum interval between steps; TryStep never blocks and never
// busy-waits. The lifetime step count is signed and is the sole input the
// pose estimator reads.
type StepperMotor struct {
	driver MotorDriver
	clock  Clock
	cfg    StepperConfig

	phase     int
	interval  time.Duration
	lastStep  time.Duration
	steps     int64
	energized bool
}

func NewStepperMotor(driver MotorDriver, clock Clock, cfg StepperConfig) (m *StepperMotor) {
	m = &StepperMotor{
		driver: driver,
		clock:  clock,
		cfg:    cfg,
	}
	m.SetRate(cfg.MinRate)
	return
}

// SetRate stores the reciprocal of the clamped rate as the minimum interval
// between steps. The current phase is untouched.
func (m *StepperMotor) SetRate(stepsPerSecond float64) {
	if stepsPerSecond < m.cfg.MinRate {
		stepsPerSecond = m.cfg.MinRate
	}
	if stepsPerSecond > m.cfg.MaxRate {
		stepsPerSecond = m.cfg.MaxRate
	}
	m.interval = time.Duration(float64(time.Second) / stepsPerSecond)
}

// IsReady reports whether enough time has passed since the previous step.
// A clock sample older than the previous step means the source wrapped;
// treat that as elapsed rather than stalling until the clock catches up.
func (m *StepperMotor) IsReady() bool {
	now := m.clock()
	if now < m.lastStep {
		return true
	}
	return now-m.lastStep >= m.interval
}

// TryStep advances one phase in the given direction (+1 or -1) if the step
// gate is open. Returns false, with no state change, when called too soon.
func (m *StepperMotor) TryStep(direction int) bool {
	if !m.IsReady() {
		return false
	}
	m.step(direction)
	m.lastStep = m.clock()
	return true
}

// StepImmediate bypasses the timing gate. Only for calibration sequences
// where the caller already controls cadence; never on the tick path.
func (m *StepperMotor) StepImmediate(direction int) {
	m.step(direction)
	m.lastStep = m.clock()
}

func (m *StepperMotor) step(direction int) {
	m.phase = (m.phase + direction + PHASE_COUNT) % PHASE_COUNT
	m.driver.SetPhase(phaseTable[m.phase])
	m.steps += int64(direction)
	m.energized = true
}

// Hold re-energizes the coils at the current phase without stepping.
func (m *StepperMotor) Hold() {
	m.driver.SetPhase(phaseTable[m.phase])
	m.energized = true
}

// Release cuts power to the coils. Phase and step count are preserved.
func (m *StepperMotor) Release() {
	m.driver.Release()
	m.energized = false
}

// Steps returns the signed lifetime step count.
func (m *StepperMotor) Steps() int64 {
	return m.steps
}

func (m *StepperMotor) Energized() bool {
	return m.energized
}

func (m *StepperMotor) Phase() int {
	return m.phase
}
