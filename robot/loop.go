package robot

import "time"

// Loop is the single thread of control. It ticks the coordinator at a fixed
// cadence and funnels commands from other goroutines (websocket handlers, the
// dev shell, HTTP views) in between ticks, so the coordinator itself never
// needs a lock. Every exported command mirrors the coordinator surface and
// blocks only until the loop has executed it - at control-loop cadence that
// is well under a millisecond.
type Loop struct {
	coord *Coordinator
	cmds  chan func()
	stop  chan struct{}
}

func NewLoop(coord *Coordinator) *Loop {
	return &Loop{
		coord: coord,
		cmds:  make(chan func()),
		stop:  make(chan struct{}),
	}
}

// Run drives the loop until Stop is called. Commands submitted before Run
// starts will block, so start this first.
func (l *Loop) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case fn := <-l.cmds:
			fn()
		case <-ticker.C:
			l.coord.Tick()
		}
	}
}

func (l *Loop) Stop() {
	close(l.stop)
}

// do submits fn to the loop goroutine and waits for it to run. A stopped
// loop drops the command instead of blocking the caller; exec then reports
// it as rejected.
func (l *Loop) do(fn func()) {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}

	select {
	case l.cmds <- wrapped:
	case <-l.stop:
		return
	}

	select {
	case <-done:
	case <-l.stop:
	}
}

func (l *Loop) exec(fn func() bool) (ok bool) {
	l.do(func() { ok = fn() })
	return
}

func (l *Loop) MoveTo(x, y, speedMMs float64) bool {
	return l.exec(func() bool { return l.coord.MoveTo(x, y, speedMMs) })
}

func (l *Loop) DrawTo(x, y, speedMMs float64) bool {
	return l.exec(func() bool { return l.coord.DrawTo(x, y, speedMMs) })
}

func (l *Loop) MoveBy(dx, dy, speedMMs float64) bool {
	return l.exec(func() bool { return l.coord.MoveBy(dx, dy, speedMMs) })
}

func (l *Loop) DrawBy(dx, dy, speedMMs float64) bool {
	return l.exec(func() bool { return l.coord.DrawBy(dx, dy, speedMMs) })
}

func (l *Loop) TurnTo(headingRad, speedRadS float64) bool {
	return l.exec(func() bool { return l.coord.TurnTo(headingRad, speedRadS) })
}

func (l *Loop) TurnBy(deltaRad, speedRadS float64) bool {
	return l.exec(func() bool { return l.coord.TurnBy(deltaRad, speedRadS) })
}

func (l *Loop) MoveSteps(left, right int, stepsPerSec float64) bool {
	return l.exec(func() bool { return l.coord.MoveSteps(left, right, stepsPerSec) })
}

func (l *Loop) PenUp() bool {
	return l.exec(l.coord.PenUp)
}

func (l *Loop) PenDown() bool {
	return l.exec(l.coord.PenDown)
}

func (l *Loop) EmergencyStop() {
	l.do(l.coord.EmergencyStop)
}

func (l *Loop) ClearError() bool {
	return l.exec(l.coord.ClearError)
}

func (l *Loop) Pose() (p Pose) {
	l.do(func() { p = l.coord.Pose() })
	return
}

func (l *Loop) State() (s State) {
	l.do(func() { s = l.coord.State() })
	return
}

func (l *Loop) Busy() (busy bool) {
	l.do(func() { busy = l.coord.Busy() })
	return
}
