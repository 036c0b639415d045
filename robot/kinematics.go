package robot

import "math"

// Geometry holds the fixed dimensions that relate wheel steps to movement in
// the plane. Values are millimeters. A positive heading change turns from +y
// toward +x and makes the right wheel travel farther than the left.
type Geometry struct {
	WheelDiameter float64 `yaml:"wheel_diameter"`
	Wheelbase     float64 `yaml:"wheelbase"`
	StepsPerRev   int     `yaml:"steps_per_rev"`
}

// Circumference returns the rolling distance of one wheel revolution.
func (g Geometry) Circumference() float64 {
	return math.Pi * g.WheelDiameter
}

// StepLength returns the distance one wheel covers in a single step.
func (g Geometry) StepLength() float64 {
	return g.Circumference() / float64(g.StepsPerRev)
}

// StepsFor converts a linear distance and a heading change into per-wheel
// step counts. Each wheel's distance is rounded independently, so a pure
// rotation may come out asymmetric by one step; that is the source of the
// ±1 step tolerance used everywhere and must not be corrected here.
func (g Geometry) StepsFor(distanceMM, headingDeltaRad float64) (left, right int) {
	arc := headingDeltaRad * g.Wheelbase / 2

	left = g.stepsForDistance(distanceMM - arc)
	right = g.stepsForDistance(distanceMM + arc)
	return
}

func (g Geometry) stepsForDistance(mm float64) int {
	return int(math.Round(mm / g.Circumference() * float64(g.StepsPerRev)))
}

// MovementFor is the inverse of StepsFor up to rounding loss: it converts
// per-wheel step counts back into the distance and heading change they
// produce.
func (g Geometry) MovementFor(left, right int) (distanceMM, headingDeltaRad float64) {
	leftMM := float64(left) * g.StepLength()
	rightMM := float64(right) * g.StepLength()

	distanceMM = (leftMM + rightMM) / 2
	headingDeltaRad = (rightMM - leftMM) / g.Wheelbase
	return
}
