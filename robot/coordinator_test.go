package robot

import (
	. "math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/scribblebotics/goscribble/robot/hardware"
)

const kTargetTolerance = 1.0 // mm; arrival tolerance plus one segment of slack

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	return c.now
}

func testConfig() ScribbleConfig {
	return ScribbleConfig{
		Version:  "0.2.0",
		Geometry: testGeometry(),
		Workspace: Workspace{
			MinX: -100, MaxX: 100,
			MinY: -100, MaxY: 100,
		},
		Motion: MotionConfig{
			MaxSpeed:            50,
			MaxTurnRate:         2,
			HeadingToleranceDeg: 5,
			SegmentMM:           1,
			ArrivalMM:           0.5,
		},
		Stepper: hardware.StepperConfig{MinRate: 10, MaxRate: 4000},
		Pen:     PenConfig{UpAngle: 90, DownAngle: 30, TravelMS: 200},
	}
}

type testRig struct {
	coord       *Coordinator
	clock       *fakeClock
	left, right *hardware.StepperMotor
	servo       *SimulatedServoDriver
}

func newTestRig() *testRig {
	cfg := testConfig()
	clock := new(fakeClock)

	left := hardware.NewStepperMotor(new(SimulatedMotorDriver), clock.Now, cfg.Stepper)
	right := hardware.NewStepperMotor(new(SimulatedMotorDriver), clock.Now, cfg.Stepper)
	servo := new(SimulatedServoDriver)
	pen := hardware.NewPenServo(servo, cfg.Pen.UpAngle)

	return &testRig{
		coord: NewCoordinator(cfg, left, right, pen, clock.Now),
		clock: clock,
		left:  left,
		right: right,
		servo: servo,
	}
}

// tick advances simulated time and runs one control cycle.
func (r *testRig) tick() {
	r.clock.now += 3 * time.Millisecond
	r.coord.Tick()
}

// run ticks until the coordinator goes idle, failing the test if it never does.
func (r *testRig) run(t *testing.T, maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		r.tick()
		if !r.coord.Busy() {
			return
		}
	}
	t.Fatalf("coordinator still busy after %d ticks", maxTicks)
}

func TestCommandAcceptance(t *testing.T) {
	Convey("with an idle coordinator", t, func() {
		rig := newTestRig()

		Convey("move_to inside the workspace is accepted", func() {
			So(rig.coord.MoveTo(10, 0, 15), ShouldBeTrue)
			So(rig.coord.State(), ShouldEqual, StateMoving)
		})

		Convey("the exact workspace boundary is still inside", func() {
			So(rig.coord.MoveTo(100, 100, 15), ShouldBeTrue)
		})

		Convey("one unit beyond any boundary is rejected", func() {
			So(rig.coord.MoveTo(101, 0, 15), ShouldBeFalse)
			So(rig.coord.MoveTo(0, -101, 15), ShouldBeFalse)
			So(rig.coord.State(), ShouldEqual, StateIdle)
		})

		Convey("an out-of-workspace target leaves the actuators untouched", func() {
			So(rig.coord.MoveTo(150, 0, 15), ShouldBeFalse)
			So(rig.coord.State(), ShouldEqual, StateIdle)
			So(rig.left.Steps(), ShouldEqual, 0)
			So(rig.right.Steps(), ShouldEqual, 0)
		})

		Convey("non-positive speed is rejected", func() {
			So(rig.coord.MoveTo(10, 10, 0), ShouldBeFalse)
			So(rig.coord.MoveTo(10, 10, -5), ShouldBeFalse)
			So(rig.coord.TurnBy(1, 0), ShouldBeFalse)
			So(rig.coord.MoveSteps(10, 10, 0), ShouldBeFalse)
		})

		Convey("a zero raw step target is rejected", func() {
			So(rig.coord.MoveSteps(0, 0, 100), ShouldBeFalse)
		})
	})
}

func TestBusyExclusion(t *testing.T) {
	Convey("once a movement is accepted", t, func() {
		rig := newTestRig()
		So(rig.coord.MoveSteps(50, 50, 1000), ShouldBeTrue)

		Convey("every other movement command fails until completion", func() {
			So(rig.coord.MoveTo(10, 10, 15), ShouldBeFalse)
			So(rig.coord.DrawTo(10, 10, 15), ShouldBeFalse)
			So(rig.coord.TurnBy(1, 1), ShouldBeFalse)
			So(rig.coord.MoveSteps(5, 5, 100), ShouldBeFalse)
			So(rig.coord.ClearError(), ShouldBeFalse)

			Convey("while the read-only surface keeps working", func() {
				So(rig.coord.Busy(), ShouldBeTrue)
				So(rig.coord.State(), ShouldEqual, StateMoving)
				rig.coord.Pose() // must not panic or mutate
			})
		})

		Convey("completion returns to idle and unblocks commands", func() {
			rig.run(t, 10000)

			So(rig.left.Steps(), ShouldEqual, 50)
			So(rig.right.Steps(), ShouldEqual, 50)
			So(rig.coord.State(), ShouldEqual, StateIdle)
			So(rig.coord.MoveSteps(5, 5, 100), ShouldBeTrue)
		})
	})
}

func TestWheelsFinishIndependently(t *testing.T) {
	Convey("a lopsided raw target completes both wheels", t, func() {
		rig := newTestRig()
		So(rig.coord.MoveSteps(10, 200, 1000), ShouldBeTrue)

		rig.run(t, 10000)
		So(rig.left.Steps(), ShouldEqual, 10)
		So(rig.right.Steps(), ShouldEqual, 200)
	})

	Convey("negative deltas run the wheel backwards", t, func() {
		rig := newTestRig()
		So(rig.coord.MoveSteps(-40, 40, 1000), ShouldBeTrue)

		rig.run(t, 10000)
		So(rig.left.Steps(), ShouldEqual, -40)
		So(rig.right.Steps(), ShouldEqual, 40)
	})
}

func TestEmergencyStop(t *testing.T) {
	Convey("during a movement", t, func() {
		rig := newTestRig()
		So(rig.coord.MoveTo(50, 50, 15), ShouldBeTrue)
		for i := 0; i < 100; i++ {
			rig.tick()
		}

		Convey("estop halts immediately and discards the target", func() {
			rig.coord.EmergencyStop()
			So(rig.coord.State(), ShouldEqual, StateEStop)
			So(rig.left.Energized(), ShouldBeFalse)
			So(rig.right.Energized(), ShouldBeFalse)

			steps := rig.left.Steps()
			rig.tick()
			So(rig.left.Steps(), ShouldEqual, steps) // nothing advances

			Convey("and is idempotent", func() {
				rig.coord.EmergencyStop()
				rig.coord.EmergencyStop()
				So(rig.coord.State(), ShouldEqual, StateEStop)
			})

			Convey("commands stay rejected until the state is cleared", func() {
				So(rig.coord.MoveTo(0, 0, 15), ShouldBeFalse)
				So(rig.coord.ClearError(), ShouldBeTrue)
				So(rig.coord.State(), ShouldEqual, StateIdle)
				So(rig.coord.MoveTo(0, 0, 15), ShouldBeTrue)
			})
		})
	})

	Convey("estop from idle also latches", t, func() {
		rig := newTestRig()
		rig.coord.EmergencyStop()
		So(rig.coord.State(), ShouldEqual, StateEStop)
		So(rig.coord.ClearError(), ShouldBeTrue)
	})

	Convey("clear_error from idle has nothing to do", t, func() {
		rig := newTestRig()
		So(rig.coord.ClearError(), ShouldBeFalse)
	})
}

func TestTurns(t *testing.T) {
	Convey("turn_by rotates in place by the requested angle", t, func() {
		rig := newTestRig()
		So(rig.coord.TurnBy(Pi/2, 1), ShouldBeTrue)
		rig.run(t, 20000)

		pose := rig.coord.Pose()
		So(pose.Heading, ShouldAlmostEqual, Pi/2, 0.01)
		So(pose.X, ShouldAlmostEqual, 0, 0.1)
		So(pose.Y, ShouldAlmostEqual, 0, 0.1)

		Convey("turn_to reaches an absolute heading from there", func() {
			So(rig.coord.TurnTo(-Pi/2, 1), ShouldBeTrue)
			rig.run(t, 20000)
			So(rig.coord.Pose().Heading, ShouldAlmostEqual, -Pi/2, 0.01)
		})
	})
}

func TestCoordinateMovement(t *testing.T) {
	Convey("move_to(10, 0) from the origin", t, func() {
		rig := newTestRig()
		So(rig.coord.MoveTo(10, 0, 15), ShouldBeTrue)

		// heading error is π/2, so the first sub-goal must be a pure rotation:
		// wheels counter-rotate before any forward travel happens
		for rig.left.Steps() == 0 && rig.right.Steps() == 0 {
			rig.tick()
		}
		for i := 0; i < 50; i++ {
			rig.tick()
		}
		So(rig.left.Steps(), ShouldBeLessThan, 0)
		So(rig.right.Steps(), ShouldBeGreaterThan, 0)

		Convey("and it converges within tolerance of the target", func() {
			rig.run(t, 100000)

			pose := rig.coord.Pose()
			So(pose.X, ShouldAlmostEqual, 10, kTargetTolerance)
			So(pose.Y, ShouldAlmostEqual, 0, kTargetTolerance)
			So(rig.coord.State(), ShouldEqual, StateIdle)
		})
	})

	Convey("the wheels wait for the pen to finish lowering", t, func() {
		rig := newTestRig()
		So(rig.coord.DrawTo(10, 0, 15), ShouldBeTrue)

		ticks := 0
		for rig.left.Steps() == 0 && rig.right.Steps() == 0 {
			rig.tick()
			ticks++
			if ticks > 1000 {
				t.Fatal("wheels never stepped")
			}
		}
		// by the first wheel step the servo must already be fully down
		So(rig.servo.Angle, ShouldEqual, 30)
		So(ticks, ShouldBeGreaterThan, 1) // it did wait, not just start late
	})

	Convey("draw_to lowers the pen, move_to raises it", t, func() {
		rig := newTestRig()
		So(rig.coord.DrawTo(5, 5, 15), ShouldBeTrue)
		rig.run(t, 100000)
		So(rig.servo.Angle, ShouldEqual, 30)

		So(rig.coord.MoveTo(0, 0, 15), ShouldBeTrue)
		rig.run(t, 100000)
		So(rig.servo.Angle, ShouldEqual, 90)
	})

	Convey("relative movement targets are resolved against the pose", t, func() {
		rig := newTestRig()
		So(rig.coord.MoveTo(20, 0, 25), ShouldBeTrue)
		rig.run(t, 100000)

		So(rig.coord.MoveBy(0, 10, 25), ShouldBeTrue)
		rig.run(t, 100000)

		pose := rig.coord.Pose()
		So(pose.X, ShouldAlmostEqual, 20, 2*kTargetTolerance)
		So(pose.Y, ShouldAlmostEqual, 10, 2*kTargetTolerance)
	})

	Convey("an already-reached target completes without stepping", t, func() {
		rig := newTestRig()
		So(rig.coord.MoveTo(0.1, 0.1, 15), ShouldBeTrue)
		rig.run(t, 100)
		So(rig.left.Steps(), ShouldEqual, 0)
		So(rig.right.Steps(), ShouldEqual, 0)
	})
}

func TestPenCommands(t *testing.T) {
	Convey("pen commands always succeed and interpolate over time", t, func() {
		rig := newTestRig()
		So(rig.coord.PenDown(), ShouldBeTrue)

		// first tick latches the start time, second one moves
		rig.tick()
		rig.tick()
		So(rig.servo.Angle, ShouldBeGreaterThan, 30)
		So(rig.servo.Angle, ShouldBeLessThan, 90)

		for i := 0; i < 100; i++ {
			rig.tick()
		}
		So(rig.servo.Angle, ShouldEqual, 30)

		So(rig.coord.PenUp(), ShouldBeTrue)
		for i := 0; i < 100; i++ {
			rig.tick()
		}
		So(rig.servo.Angle, ShouldEqual, 90)
	})
}
