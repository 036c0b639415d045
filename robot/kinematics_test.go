package robot

import (
	. "math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// 25mm wheels on a 30mm wheelbase with 2048 steps/rev, circumference ≈78.54mm
func testGeometry() Geometry {
	return Geometry{
		WheelDiameter: 25,
		Wheelbase:     30,
		StepsPerRev:   2048,
	}
}

func TestStepsFor(t *testing.T) {
	g := testGeometry()

	Convey("pure translation yields equal wheel steps", t, func() {
		left, right := g.StepsFor(100, 0)
		So(left, ShouldEqual, right)
		So(left, ShouldEqual, 2608) // round(100 / 78.54 * 2048)

		Convey("and reverses cleanly", func() {
			left, right = g.StepsFor(-100, 0)
			So(left, ShouldEqual, -2608)
			So(right, ShouldEqual, -2608)
		})
	})

	Convey("pure rotation yields opposite wheel steps", t, func() {
		left, right := g.StepsFor(0, Pi/2)
		// arc = (π/2)*15 ≈ 23.56mm ⇒ ≈614 steps
		So(right, ShouldAlmostEqual, 614, 1)
		So(left, ShouldAlmostEqual, -614, 1)

		Convey("counter-clockwise sends the right wheel forward", func() {
			So(right, ShouldBeGreaterThan, 0)
			So(left, ShouldBeLessThan, 0)
		})

		Convey("asymmetry from independent rounding stays within one step", func() {
			for _, theta := range []float64{0.1, 0.37, 1, Pi / 3, 2.9, -0.37, -2.9} {
				l, r := g.StepsFor(0, theta)
				So(l+r, ShouldAlmostEqual, 0, 1)
			}
		})
	})

	Convey("zero everything yields zero steps", t, func() {
		left, right := g.StepsFor(0, 0)
		So(left, ShouldEqual, 0)
		So(right, ShouldEqual, 0)
	})
}

func TestMovementFor(t *testing.T) {
	g := testGeometry()

	Convey("equal steps move straight", t, func() {
		distance, heading := g.MovementFor(2608, 2608)
		So(distance, ShouldAlmostEqual, 100, g.StepLength())
		So(heading, ShouldEqual, 0)
	})

	Convey("opposite steps rotate in place", t, func() {
		distance, heading := g.MovementFor(-614, 614)
		So(distance, ShouldEqual, 0)
		So(heading, ShouldAlmostEqual, Pi/2, 0.01)
	})
}

func TestRoundTrip(t *testing.T) {
	g := testGeometry()

	Convey("movement->steps->movement is bounded by one step of loss", t, func() {
		// heading tolerance: one step per wheel over the wheelbase
		headingTol := 2 * g.StepLength() / g.Wheelbase

		for d := -200.0; d <= 200.0; d += 25 {
			for theta := -Pi; theta <= Pi; theta += Pi / 6 {
				left, right := g.StepsFor(d, theta)
				d2, theta2 := g.MovementFor(left, right)

				So(d2, ShouldAlmostEqual, d, g.StepLength())
				So(theta2, ShouldAlmostEqual, theta, headingTol)
			}
		}
	})
}

func BenchmarkStepsFor(b *testing.B) {
	g := testGeometry()
	for n := 0; n < b.N; n++ {
		g.StepsFor(123.4, 0.56)
	}
}
