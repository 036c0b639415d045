package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/scribblebotics/goscribble/comms"
	"github.com/scribblebotics/goscribble/robot"
	"github.com/scribblebotics/goscribble/robot/hardware"
	"github.com/scribblebotics/goscribble/telemetry"
)

const (
	TICK_RATE      = 1000 // control loop Hz
	TELEMETRY_KEEP = 10000
)

type EnvConfig struct {
	JWTIssuer string `env:"SCRIBBLE_DEVICE_ID" envDefault:"DEV"`
	JWTSecret string `env:"SCRIBBLE_JWT_SECRET" envDefault:"dev-secret-change-me"`
	DEBUG     bool   `env:"DEBUG" envDefault:"false"`
	DATADIR   string `env:"DATADIR" envDefault:"./tmp"`
	HTMLDIR   string `env:"HTMLDIR" envDefault:"./frontend/dist/"`

	DB        *storm.DB
	Conductor *comms.Conductor
	Simulated bool
}

var ENV *EnvConfig

func init() {
	ENV = new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		panic(err)
	}

	if _, err := os.Stat(ENV.DATADIR); os.IsNotExist(err) {
		os.MkdirAll(ENV.DATADIR, 0755)
	}

	db, err := openDb(filepath.Join(ENV.DATADIR, "scribble.db"))
	if err != nil {
		panic(err)
	}
	ENV.DB = db
}

func main() {
	simulated := flag.Bool("sim", false, "run against simulated drivers instead of GPIO")
	port := flag.String("port", "0.0.0.0:8080", "ip:port to listen on")
	configPath := flag.String("config", "./scribble.yaml", "robot config file")
	flag.Parse()

	defer ENV.DB.Close()
	ENV.Simulated = *simulated

	yamlFile, err := os.ReadFile(*configPath)
	if err != nil {
		panic(fmt.Sprintf("unable to read config file: %v", err))
	}
	config, err := robot.LoadConfig(yamlFile)
	if err != nil {
		panic(fmt.Sprintf("unable to load config: %v", err))
	}

	//---
	// Assemble the robot
	//---
	var leftDrv, rightDrv hardware.MotorDriver
	var servoDrv hardware.ServoDriver

	if ENV.Simulated {
		println("Running with simulated drivers")
		leftDrv = new(robot.SimulatedMotorDriver)
		rightDrv = new(robot.SimulatedMotorDriver)
		servoDrv = new(robot.SimulatedServoDriver)
	} else {
		if err := hardware.OpenGPIO(); err != nil {
			panic(fmt.Sprintf("unable to map GPIO: %v", err))
		}
		defer hardware.CloseGPIO()

		leftDrv, err = hardware.NewGPIOMotorDriver(config.Pins.Left)
		if err != nil {
			panic(err)
		}
		rightDrv, err = hardware.NewGPIOMotorDriver(config.Pins.Right)
		if err != nil {
			panic(err)
		}
		servoDrv = hardware.NewGPIOServoDriver(config.Pins.Servo)
	}

	clock := hardware.SystemClock()
	left := hardware.NewStepperMotor(leftDrv, clock, config.Stepper)
	right := hardware.NewStepperMotor(rightDrv, clock, config.Stepper)
	pen := hardware.NewPenServo(servoDrv, config.Pen.UpAngle)

	coord := robot.NewCoordinator(config, left, right, pen, clock)
	loop := robot.NewLoop(coord)
	go loop.Run(time.Second / TICK_RATE)

	store, err := telemetry.NewStore(ENV.DB)
	if err != nil {
		panic(err)
	}

	ENV.Conductor = comms.NewConductor(loop)
	ENV.Conductor.Log = store
	ENV.Conductor.Keep = TELEMETRY_KEEP
	go ENV.Conductor.UpdateClients()

	//---
	// Local dev shell
	//---
	{
		shell := ishell.New()
		shell.Println("Scribble development shell")
		shell.ShowPrompt(true)

		shell.AddCmd(&ishell.Cmd{
			Name: "createsuperuser",
			Help: "createsuperuser <email> <password>",
			Func: func(c *ishell.Context) {
				c.ShowPrompt(false)
				defer c.ShowPrompt(true)

				var email string
				if len(c.Args) >= 1 {
					email = c.Args[0]
				} else {
					c.Print("Email: ")
					email = c.ReadLine()
				}

				var password string
				if len(c.Args) >= 2 {
					password = c.Args[1]
				} else {
					c.Print("Password: ")
					password = c.ReadPassword()
				}

				user := &User{
					Email: email,
					Name:  email,
					Admin: true,
				}
				if err := user.SetPassword([]byte(password)); err != nil {
					c.Err(err)
					return
				}
				if err := ENV.DB.Save(user); err != nil {
					c.Err(err)
					return
				}
				c.Println("Superuser created")
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "move",
			Help: "move <x> <y> <speed mm/s>",
			Func: func(c *ishell.Context) {
				x, y, speed := parseXYV(c)
				if !loop.MoveTo(x, y, speed) {
					c.Println("rejected")
				}
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "draw",
			Help: "draw <x> <y> <speed mm/s>",
			Func: func(c *ishell.Context) {
				x, y, speed := parseXYV(c)
				if !loop.DrawTo(x, y, speed) {
					c.Println("rejected")
				}
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "turn",
			Help: "turn <heading rad> <speed rad/s>",
			Func: func(c *ishell.Context) {
				heading, _ := strconv.ParseFloat(c.Args[0], 64)
				speed, _ := strconv.ParseFloat(c.Args[1], 64)
				if !loop.TurnTo(heading, speed) {
					c.Println("rejected")
				}
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "pen",
			Help: "pen <up|down>",
			Func: func(c *ishell.Context) {
				if len(c.Args) == 1 && c.Args[0] == "down" {
					loop.PenDown()
				} else {
					loop.PenUp()
				}
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "estop",
			Help: "emergency stop",
			Func: func(c *ishell.Context) {
				loop.EmergencyStop()
				c.Println("stopped")
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "clear",
			Help: "clear error / estop state",
			Func: func(c *ishell.Context) {
				if !loop.ClearError() {
					c.Println("nothing to clear")
				}
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "state",
			Help: "print pose and state",
			Func: func(c *ishell.Context) {
				pose := loop.Pose()
				c.Printf("x=%.2f y=%.2f heading=%.4f state=%s busy=%v\n",
					pose.X, pose.Y, pose.Heading, loop.State(), loop.Busy())
			},
		})

		// Blocking calibration primitive: steps a wheel at a fixed cadence,
		// bypassing the tick-path timing gate. Dev use only.
		shell.AddCmd(&ishell.Cmd{
			Name: "nudge",
			Help: "nudge <left|right> <steps> <delay ms>",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 3 {
					c.Println("usage: nudge <left|right> <steps> <delay ms>")
					return
				}
				motor := left
				if c.Args[0] == "right" {
					motor = right
				}
				steps, _ := strconv.Atoi(c.Args[1])
				delayMs, _ := strconv.Atoi(c.Args[2])

				direction := 1
				if steps < 0 {
					direction = -1
					steps = -steps
				}
				for i := 0; i < steps; i++ {
					motor.StepImmediate(direction)
					time.Sleep(time.Duration(delayMs) * time.Millisecond)
				}
			},
		})

		go shell.Start()
	}

	//---
	// API routes
	//---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", Login)

		r.Group(func(r chi.Router) {
			if !ENV.DEBUG {
				r.Use(ValidateJWT)
			}

			r.Get("/refresh_token", JWTRefresh)

			r.Get("/pose", func(w http.ResponseWriter, r *http.Request) {
				render.JSON(w, r, loop.Pose())
			})

			r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
				render.JSON(w, r, ENV.Conductor.CurrentState())
			})

			r.Get("/telemetry", func(w http.ResponseWriter, r *http.Request) {
				n, err := strconv.Atoi(r.URL.Query().Get("n"))
				if err != nil || n <= 0 {
					n = 100
				}
				samples, err := store.Recent(n)
				if err != nil {
					render.Render(w, r, ErrRender(err))
					return
				}
				render.JSON(w, r, samples)
			})
		})
	})

	r.Route("/ws", func(r chi.Router) {
		if !ENV.DEBUG {
			r.Use(ValidateJWT)
		} else {
			fmt.Println("Running in debug mode. Authentication disabled.")
		}

		r.Get("/command", CommandHandler)
		r.Get("/telemetry", TelemetryHandler)
	})

	FileServer(r, "/", http.Dir(ENV.HTMLDIR))

	fmt.Println("Listening on", *port)
	if err := http.ListenAndServe(*port, r); err != nil {
		log.Fatal(err)
	}
}

func parseXYV(c *ishell.Context) (x, y, v float64) {
	if len(c.Args) != 3 {
		c.Println("expected three arguments")
		return
	}
	x, _ = strconv.ParseFloat(c.Args[0], 64)
	y, _ = strconv.ParseFloat(c.Args[1], 64)
	v, _ = strconv.ParseFloat(c.Args[2], 64)
	return
}

func openDb(dbFile string) (db *storm.DB, err error) {
	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	if err := db.Init(&User{}); err != nil {
		return nil, err
	}

	return
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	fs := http.StripPrefix(path, http.FileServer(root))

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	}))
}
