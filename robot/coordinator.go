package robot

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/scribblebotics/goscribble/robot/hardware"
)

// State is the coordinator's current mode. Commands are only accepted from
// StateIdle; StateEStop and StateError require ClearError before any further
// movement.
type State int

const (
	StateIdle State = iota
	StateMoving
	StateError
	StateEStop
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StateError:
		return "error"
	case StateEStop:
		return "estop"
	default:
		return "unknown"
	}
}

// Pen is the contract consumed from the pen lift collaborator. The
// coordinator does not know or care how the interpolation is implemented.
type Pen interface {
	SetTarget(angleDeg float64, travel time.Duration)
	Advance(now time.Duration)
	IsMoving() bool
}

// stepGoal is an actuator-level target in flight. Progress is measured
// against the lifetime step counts sampled when the goal was issued, so the
// goal needs no per-tick bookkeeping of its own.
type stepGoal struct {
	left, right         int
	baseLeft, baseRight int64
}

// coordGoal is a coordinate target being iteratively re-decomposed into
// successive stepGoals until the pose estimate is within tolerance.
type coordGoal struct {
	x, y  float64
	speed float64 // mm/s
}

// Coordinator owns both wheel motors, the pen and the pose estimator, and
// advances them one non-blocking increment per Tick. Exactly one movement
// target is active at a time. No method blocks and nothing here is safe for
// concurrent use; the Loop serializes all access.
type Coordinator struct {
	geom      Geometry
	motion    MotionConfig
	workspace Workspace
	penCfg    PenConfig

	left  *hardware.StepperMotor
	right *hardware.StepperMotor
	pen   Pen
	clock hardware.Clock
	est   *Estimator

	state  State
	goal   *stepGoal
	target *coordGoal
}

func NewCoordinator(cfg ScribbleConfig, left, right *hardware.StepperMotor, pen Pen, clock hardware.Clock) *Coordinator {
	return &Coordinator{
		geom:      cfg.Geometry,
		motion:    cfg.Motion,
		workspace: cfg.Workspace,
		penCfg:    cfg.Pen,
		left:      left,
		right:     right,
		pen:       pen,
		clock:     clock,
		est:       NewEstimator(cfg.Geometry),
	}
}

// Tick advances one control cycle: pen interpolation first, then movement
// progression, then the pose update. The order is fixed - the pose update
// folds in whatever steps this tick's movement produced.
func (c *Coordinator) Tick() {
	c.pen.Advance(c.clock())

	if c.state == StateMoving {
		c.advanceMovement()
	}

	c.est.Update(c.left.Steps(), c.right.Steps())
}

// MoveTo travels to (x, y) with the pen raised.
func (c *Coordinator) MoveTo(x, y, speedMMs float64) bool {
	return c.gotoTarget(x, y, speedMMs, c.penCfg.UpAngle)
}

// DrawTo travels to (x, y) with the pen lowered.
func (c *Coordinator) DrawTo(x, y, speedMMs float64) bool {
	return c.gotoTarget(x, y, speedMMs, c.penCfg.DownAngle)
}

// MoveBy travels by (dx, dy) relative to the current pose, pen raised.
func (c *Coordinator) MoveBy(dx, dy, speedMMs float64) bool {
	p := c.est.Pose()
	return c.MoveTo(p.X+dx, p.Y+dy, speedMMs)
}

// DrawBy travels by (dx, dy) relative to the current pose, pen lowered.
func (c *Coordinator) DrawBy(dx, dy, speedMMs float64) bool {
	p := c.est.Pose()
	return c.DrawTo(p.X+dx, p.Y+dy, speedMMs)
}

func (c *Coordinator) gotoTarget(x, y, speedMMs, penAngle float64) bool {
	if c.state != StateIdle {
		return false
	}
	if speedMMs <= 0 {
		return false
	}
	if !c.workspace.Contains(x, y) {
		return false
	}
	if speedMMs > c.motion.MaxSpeed {
		speedMMs = c.motion.MaxSpeed
	}

	c.pen.SetTarget(penAngle, c.penCfg.Travel())
	c.target = &coordGoal{x: x, y: y, speed: speedMMs}
	c.state = StateMoving
	return true
}

// TurnTo rotates in place to the given absolute heading. A single step
// target, no iterative re-correction.
func (c *Coordinator) TurnTo(headingRad, speedRadS float64) bool {
	delta := NormalizeHeading(headingRad - c.est.Pose().Heading)
	return c.TurnBy(delta, speedRadS)
}

// TurnBy rotates in place by the given heading delta.
func (c *Coordinator) TurnBy(deltaRad, speedRadS float64) bool {
	if c.state != StateIdle {
		return false
	}
	if speedRadS <= 0 {
		return false
	}
	if speedRadS > c.motion.MaxTurnRate {
		speedRadS = c.motion.MaxTurnRate
	}

	left, right := c.geom.StepsFor(0, deltaRad)
	c.beginGoal(left, right, c.turnStepRate(speedRadS))
	c.state = StateMoving
	return true
}

// MoveSteps issues a raw actuator-level target: each wheel runs to its signed
// delta at the given step rate. This is the primitive the coordinate
// decomposition rides on; exposed for calibration and test patterns.
func (c *Coordinator) MoveSteps(left, right int, stepsPerSec float64) bool {
	if c.state != StateIdle {
		return false
	}
	if stepsPerSec <= 0 {
		return false
	}
	if left == 0 && right == 0 {
		return false
	}

	c.beginGoal(left, right, stepsPerSec)
	c.state = StateMoving
	return true
}

// PenUp raises the pen. Always succeeds.
func (c *Coordinator) PenUp() bool {
	c.pen.SetTarget(c.penCfg.UpAngle, c.penCfg.Travel())
	return true
}

// PenDown lowers the pen. Always succeeds.
func (c *Coordinator) PenDown() bool {
	c.pen.SetTarget(c.penCfg.DownAngle, c.penCfg.Travel())
	return true
}

// EmergencyStop de-energizes both wheels, discards any in-flight target and
// latches StateEStop. Synchronous, unconditional and idempotent; it never
// waits on actuator readiness.
func (c *Coordinator) EmergencyStop() {
	c.left.Release()
	c.right.Release()
	c.goal = nil
	c.target = nil
	c.state = StateEStop
}

// ClearError recovers from StateEStop or StateError back to StateIdle.
// The only legal way out of either state.
func (c *Coordinator) ClearError() bool {
	if c.state != StateEStop && c.state != StateError {
		return false
	}
	c.state = StateIdle
	return true
}

// Pose returns a read-only snapshot of the dead-reckoned pose.
func (c *Coordinator) Pose() Pose {
	return c.est.Pose()
}

func (c *Coordinator) State() State {
	return c.state
}

func (c *Coordinator) Busy() bool {
	return c.state == StateMoving
}

func (c *Coordinator) beginGoal(left, right int, stepsPerSec float64) {
	c.left.SetRate(stepsPerSec)
	c.right.SetRate(stepsPerSec)
	c.goal = &stepGoal{
		left:      left,
		right:     right,
		baseLeft:  c.left.Steps(),
		baseRight: c.right.Steps(),
	}
}

// turnStepRate converts an angular speed into the wheel step rate that
// produces it when the wheels counter-rotate.
func (c *Coordinator) turnStepRate(radPerSec float64) float64 {
	wheelMMs := math.Abs(radPerSec) * c.geom.Wheelbase / 2
	return wheelMMs / c.geom.StepLength()
}

func (c *Coordinator) advanceMovement() {
	// The pen settles before any wheel turns. A draw that starts while the
	// servo is still descending drags the tip across the page from the old
	// position, so the whole movement waits for the interpolation to finish.
	if c.pen.IsMoving() {
		return
	}

	if c.goal != nil {
		if !c.advanceGoal() {
			return
		}
		c.goal = nil
		if c.target == nil {
			c.state = StateIdle
		}
		// With a coordinate target still active, re-decomposition waits for
		// the next tick so it reads a pose that includes this tick's steps.
		return
	}

	if c.target != nil {
		c.decompose()
	}
}

// advanceGoal polls each wheel that has not yet reached its signed delta.
// The wheels are deliberately not kept in lockstep; one may finish first and
// the other keeps being polled on later ticks.
func (c *Coordinator) advanceGoal() (done bool) {
	leftDone := c.stepToward(c.left, c.goal.baseLeft, c.goal.left)
	rightDone := c.stepToward(c.right, c.goal.baseRight, c.goal.right)
	return leftDone && rightDone
}

func (c *Coordinator) stepToward(m *hardware.StepperMotor, base int64, target int) bool {
	remaining := int64(target) - (m.Steps() - base)
	if remaining == 0 {
		return true
	}

	direction := 1
	if remaining < 0 {
		direction = -1
	}
	m.TryStep(direction)

	return m.Steps()-base == int64(target)
}

// decompose turns the active coordinate target into the next sub-goal: a
// pure rotation while the heading error exceeds the tolerance, otherwise a
// bounded straight segment. Because the target is re-evaluated from the
// latest pose estimate after every sub-step, the path self-corrects against
// dead-reckoning drift instead of being planned once up front.
func (c *Coordinator) decompose() {
	pose := c.est.Pose()
	delta := mgl64.Vec2{c.target.x - pose.X, c.target.y - pose.Y}

	remaining := delta.Len()
	if remaining < c.motion.ArrivalMM {
		c.target = nil
		c.state = StateIdle
		return
	}

	// heading is measured from +y, so the arguments swap places
	desired := math.Atan2(delta.X(), delta.Y())
	headingErr := NormalizeHeading(desired - pose.Heading)

	if math.Abs(headingErr) > c.motion.HeadingTolerance() {
		left, right := c.geom.StepsFor(0, headingErr)
		c.beginGoal(left, right, c.target.speed/c.geom.StepLength())
		return
	}

	segment := math.Min(remaining, c.motion.SegmentMM)
	left, right := c.geom.StepsFor(segment, 0)
	c.beginGoal(left, right, c.target.speed/c.geom.StepLength())
}
