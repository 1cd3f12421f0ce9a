package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// NoPin marks an unconnected optional output.
const NoPin GPIOPin = 0xFFFFFFFF

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// ConfigureInputPullDown configures a pin as a digital input with pull-down resistor
	ConfigureInputPullDown(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// ReadPin reads the current pin state
	ReadPin(pin GPIOPin) bool
}

// PinMap is the board wiring of one controller.
type PinMap struct {
	Light         GPIOPin // light PNP stage
	CameraTrigger GPIOPin // camera TRIGGER_IN
	CameraStrobe  GPIOPin // camera STROBE_OUT, input
	ErrorLED      GPIOPin
	Fan           GPIOPin
	Aux           GPIOPin // NIR camera trigger, NoPin if absent

	// Daisy-chain lines, index = bit number. Bit 0 is the clock.
	DaisyOut [3]GPIOPin
	DaisyIn  [3]GPIOPin
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// configurePins sets the directions of every pin in m.
func configurePins(d GPIODriver, m PinMap) error {
	outputs := []GPIOPin{m.Light, m.CameraTrigger, m.ErrorLED, m.Fan, m.Aux,
		m.DaisyOut[0], m.DaisyOut[1], m.DaisyOut[2]}
	for _, pin := range outputs {
		if pin == NoPin {
			continue
		}
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		if err := d.SetPin(pin, false); err != nil {
			return err
		}
	}
	if err := d.ConfigureInputPullUp(m.CameraStrobe); err != nil {
		return err
	}
	for _, pin := range m.DaisyIn {
		if err := d.ConfigureInputPullDown(pin); err != nil {
			return err
		}
	}
	return nil
}
