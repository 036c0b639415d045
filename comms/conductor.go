package comms

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribblebotics/goscribble/robot"
	"github.com/scribblebotics/goscribble/telemetry"
)

const FRAMERATE = 10 // state frames per second pushed to clients

const pruneEvery = 500 // frames between telemetry prunes

// Robot is the command surface the conductor drives. Implemented by
// robot.Loop; mocked in tests.
type Robot interface {
	MoveTo(x, y, speedMMs float64) bool
	DrawTo(x, y, speedMMs float64) bool
	MoveBy(dx, dy, speedMMs float64) bool
	DrawBy(dx, dy, speedMMs float64) bool
	TurnTo(headingRad, speedRadS float64) bool
	TurnBy(deltaRad, speedRadS float64) bool
	MoveSteps(left, right int, stepsPerSec float64) bool
	PenUp() bool
	PenDown() bool
	EmergencyStop()
	ClearError() bool
	Pose() robot.Pose
	State() robot.State
	Busy() bool
}

// Cmd is one wire command. X, Y and Value are interpreted per command; for
// the turn commands X carries the angle and Value the angular speed.
type Cmd struct {
	Cmd   string  `json:"cmd"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
}

// Result answers every command.
type Result struct {
	Cmd   string `json:"cmd"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// StatePayload is the frame streamed to telemetry clients.
type StatePayload struct {
	Pose  robot.Pose `json:"pose"`
	State string     `json:"state"`
	Busy  bool       `json:"busy"`
}

// Conductor translates wire commands into robot calls and fans state frames
// out to connected websocket clients.
type Conductor struct {
	Device Robot
	Log    *telemetry.Store // optional
	Keep   int              // telemetry rows retained by pruning

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	stop    chan struct{}
	once    sync.Once
}

func NewConductor(device Robot) *Conductor {
	return &Conductor{
		Device:  device,
		clients: make(map[*websocket.Conn]struct{}),
		stop:    make(chan struct{}),
	}
}

// ProcessCommand dispatches a single command and reports the outcome. The
// robot rejects anything it cannot accept right now by returning false; that
// is surfaced verbatim, never as an error string.
func (c *Conductor) ProcessCommand(cmd Cmd) Result {
	res := Result{Cmd: cmd.Cmd}

	switch cmd.Cmd {
	case "move_to":
		res.OK = c.Device.MoveTo(cmd.X, cmd.Y, cmd.Value)
	case "draw_to":
		res.OK = c.Device.DrawTo(cmd.X, cmd.Y, cmd.Value)
	case "move_by":
		res.OK = c.Device.MoveBy(cmd.X, cmd.Y, cmd.Value)
	case "draw_by":
		res.OK = c.Device.DrawBy(cmd.X, cmd.Y, cmd.Value)
	case "turn_to":
		res.OK = c.Device.TurnTo(cmd.X, cmd.Value)
	case "turn_by":
		res.OK = c.Device.TurnBy(cmd.X, cmd.Value)
	case "move_steps":
		res.OK = c.Device.MoveSteps(int(cmd.X), int(cmd.Y), cmd.Value)
	case "pen_up":
		res.OK = c.Device.PenUp()
	case "pen_down":
		res.OK = c.Device.PenDown()
	case "estop":
		c.Device.EmergencyStop()
		res.OK = true
	case "clear_error":
		res.OK = c.Device.ClearError()
	default:
		res.Error = fmt.Sprintf("unknown command %q", cmd.Cmd)
	}

	return res
}

// CurrentState builds one state frame.
func (c *Conductor) CurrentState() StatePayload {
	return StatePayload{
		Pose:  c.Device.Pose(),
		State: c.Device.State().String(),
		Busy:  c.Device.Busy(),
	}
}

func (c *Conductor) AddClient(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[conn] = struct{}{}
}

func (c *Conductor) RemoveClient(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, conn)
}

// UpdateClients pushes state frames to every connected client at FRAMERATE
// and appends each frame to the telemetry log, pruning it periodically.
// Runs until Close.
func (c *Conductor) UpdateClients() {
	ticker := time.NewTicker(time.Second / FRAMERATE)
	defer ticker.Stop()

	frames := 0
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		state := c.CurrentState()

		if c.Log != nil {
			c.Log.Record(c.Device.Pose(), c.Device.State(), state.Busy)
			frames++
			if frames%pruneEvery == 0 && c.Keep > 0 {
				c.Log.Prune(c.Keep)
			}
		}

		c.mu.Lock()
		for conn := range c.clients {
			if err := conn.WriteJSON(state); err != nil {
				conn.Close()
				delete(c.clients, conn)
			}
		}
		c.mu.Unlock()
	}
}

func (c *Conductor) Close() {
	c.once.Do(func() { close(c.stop) })
}
