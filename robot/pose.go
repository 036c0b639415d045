package robot

import "math"

// Pose is the dead-reckoned position and orientation of the robot.
// Heading is in radians, zero along +y, positive toward +x, and is always
// kept inside (-π, π].
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// NormalizeHeading maps any angle into (-π, π].
func NormalizeHeading(rad float64) float64 {
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}

// Estimator integrates wheel step deltas into a pose. It samples each motor's
// lifetime step count once per tick and treats the tick's motion as a straight
// move at the heading held before the tick, followed by the pivot. Reversing
// that order accumulates a systematic bias, since steps are physically applied
// along the old heading.
type Estimator struct {
	geom Geometry
	pose Pose

	lastLeft  int64
	lastRight int64
}

func NewEstimator(geom Geometry) *Estimator {
	return &Estimator{geom: geom}
}

// Update folds the step counts sampled this tick into the pose.
func (e *Estimator) Update(leftSteps, rightSteps int64) {
	dl := leftSteps - e.lastLeft
	dr := rightSteps - e.lastRight
	e.lastLeft = leftSteps
	e.lastRight = rightSteps

	if dl == 0 && dr == 0 {
		return
	}

	distance, headingDelta := e.geom.MovementFor(int(dl), int(dr))

	e.pose.X += distance * math.Sin(e.pose.Heading)
	e.pose.Y += distance * math.Cos(e.pose.Heading)
	e.pose.Heading = NormalizeHeading(e.pose.Heading + headingDelta)
}

// Pose returns a snapshot of the current estimate.
func (e *Estimator) Pose() Pose {
	return e.pose
}
