package hardware

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

const motorPins = 4

// servo PWM runs at 50Hz with 10µs resolution
const (
	servoCycle   = 2000   // duty units per period
	servoClockHz = 100000 // pwm clock = 50Hz * servoCycle
	pulseMinUs   = 500    // 0°
	pulseMaxUs   = 2500   // 180°
)

// OpenGPIO maps the memory for GPIO access. Call once before constructing
// any pin-backed driver, paired with CloseGPIO on shutdown.
func OpenGPIO() error {
	return rpio.Open()
}

func CloseGPIO() error {
	return rpio.Close()
}

// GPIOMotorDriver commutates a unipolar stepper through four GPIO pins
// wired to a ULN2003-style darlington board.
type GPIOMotorDriver struct {
	pins [motorPins]rpio.Pin
}

func NewGPIOMotorDriver(pinNums []int) (d *GPIOMotorDriver, err error) {
	if c := len(pinNums); c != motorPins {
		return nil, fmt.Errorf("motor driver requires %d pins, got %d", motorPins, c)
	}

	d = new(GPIOMotorDriver)
	for i, p := range pinNums {
		d.pins[i] = rpio.Pin(p)
		d.pins[i].Output()
		d.pins[i].Low()
	}
	return
}

func (d *GPIOMotorDriver) SetPhase(pattern uint8) {
	for i := 0; i < motorPins; i++ {
		if pattern&1 == 1 {
			d.pins[i].High()
		} else {
			d.pins[i].Low()
		}
		pattern >>= 1
	}
}

func (d *GPIOMotorDriver) Release() {
	for i := 0; i < motorPins; i++ {
		d.pins[i].Low()
	}
}

// GPIOServoDriver drives a hobby servo on a hardware PWM pin.
type GPIOServoDriver struct {
	pin rpio.Pin
}

func NewGPIOServoDriver(pinNum int) (d *GPIOServoDriver) {
	d = &GPIOServoDriver{pin: rpio.Pin(pinNum)}
	d.pin.Mode(rpio.Pwm)
	d.pin.Freq(servoClockHz)
	return
}

func (d *GPIOServoDriver) SetAngle(deg float64) {
	if deg < 0 {
		deg = 0
	} else if deg > 180 {
		deg = 180
	}

	pulseUs := pulseMinUs + deg/180*(pulseMaxUs-pulseMinUs)
	d.pin.DutyCycle(uint32(pulseUs/10), servoCycle)
}
