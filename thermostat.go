package terneo

import (
	"context"
	"fmt"
	"time"
)

// Temperature returns the floor sensor reading in degrees Celsius. The
// value is cached after the first read; call Update to refresh it.
func (c *Client) Temperature(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if c.temperature != nil {
		value := *c.temperature
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	status, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	value, err := status.Temperature(c.cfg.TemperatureScale)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.temperature = &value
	c.mu.Unlock()
	return value, nil
}

// Setpoint returns the target temperature in degrees Celsius, cached after
// the first read.
func (c *Client) Setpoint(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if c.setpoint != nil {
		value := *c.setpoint
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	status, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	value, err := status.Setpoint(c.cfg.TemperatureScale)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.setpoint = &value
	c.mu.Unlock()
	return value, nil
}

// Mode returns the operating mode, cached after the first read. ModeOff is
// reported when the device is powered down, regardless of the schedule.
func (c *Client) Mode(ctx context.Context) (Mode, error) {
	c.mu.Lock()
	if c.mode != nil {
		mode := *c.mode
		c.mu.Unlock()
		return mode, nil
	}
	c.mu.Unlock()

	status, err := c.Status(ctx)
	if err != nil {
		return ModeOff, err
	}
	mode, err := c.decodeMode(ctx, status)
	if err != nil {
		return ModeOff, err
	}

	c.mu.Lock()
	c.mode = &mode
	c.mu.Unlock()
	return mode, nil
}

// RelayOn reports whether the heating relay is energised, cached after the
// first read.
func (c *Client) RelayOn(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.relayOn != nil {
		on := *c.relayOn
		c.mu.Unlock()
		return on, nil
	}
	c.mu.Unlock()

	status, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	on, err := status.RelayOn()
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.relayOn = &on
	c.mu.Unlock()
	return on, nil
}

// decodeMode resolves the power state using the strategy detected from the
// first status payload: newer firmware carries an explicit flag, older
// firmware needs the parameter-table round-trip.
func (c *Client) decodeMode(ctx context.Context, status Status) (Mode, error) {
	c.mu.Lock()
	caps := c.caps
	c.mu.Unlock()

	var on bool
	if caps == capsPowerFlag {
		flag, ok := status.PowerFlag()
		if !ok {
			return ModeOff, fmt.Errorf("%w: %s", ErrFieldMissing, fieldPower)
		}
		on = flag
	} else {
		var err error
		on, err = c.IsOn(ctx)
		if err != nil {
			return ModeOff, err
		}
	}
	if !on {
		return ModeOff, nil
	}
	code, err := status.ModeCode()
	if err != nil {
		return ModeOff, err
	}
	return Mode(code), nil
}

// Update forces a fresh status read and repopulates all cached properties
// atomically from the single response. Stale values survive a failed
// refresh untouched.
func (c *Client) Update(ctx context.Context) error {
	status, err := c.Status(ctx)
	if err != nil {
		return err
	}

	temperature, err := status.Temperature(c.cfg.TemperatureScale)
	if err != nil {
		return err
	}
	setpoint, err := status.Setpoint(c.cfg.TemperatureScale)
	if err != nil {
		return err
	}
	relayOn, err := status.RelayOn()
	if err != nil {
		return err
	}
	mode, err := c.decodeMode(ctx, status)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.temperature = &temperature
	c.setpoint = &setpoint
	c.relayOn = &relayOn
	c.mode = &mode
	c.lastUpdated = time.Now()
	c.mu.Unlock()
	return nil
}

// Cached returns a copy of the cached state without touching the device.
// LastUpdated is zero until the first successful Update.
func (c *Client) Cached() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Temperature: copyFloat(c.temperature),
		Setpoint:    copyFloat(c.setpoint),
		Mode:        copyMode(c.mode),
		RelayOn:     copyBool(c.relayOn),
		LastUpdated: c.lastUpdated,
	}
}

// LastUpdated reports when the cache was last repopulated by Update.
func (c *Client) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// SetSetpoint writes the target temperature. The write also forces the
// relay parameter to neutral and the device into manual mode, which is how
// the firmware expects setpoint changes. The cache is updated only after
// the device acknowledges the write.
func (c *Client) SetSetpoint(ctx context.Context, celsius float64) error {
	if err := c.write(ctx, powerParam(true), modeParam(SetManual), setpointParam(celsius)); err != nil {
		return err
	}
	c.mu.Lock()
	c.setpoint = &celsius
	c.mu.Unlock()
	return nil
}

// SetMode switches between schedule and manual operation. Any other value
// fails with ErrInvalidMode before any request is issued.
func (c *Client) SetMode(ctx context.Context, setting ModeSetting) error {
	if setting != SetSchedule && setting != SetManual {
		return ErrInvalidMode
	}
	return c.write(ctx, powerParam(true), modeParam(setting))
}

// TurnOn powers the thermostat on.
func (c *Client) TurnOn(ctx context.Context) error {
	return c.write(ctx, powerParam(true))
}

// TurnOff powers the thermostat off and drops the cached mode to ModeOff,
// so mode reads reflect the switch without another round-trip.
func (c *Client) TurnOff(ctx context.Context) error {
	if err := c.write(ctx, powerParam(false)); err != nil {
		return err
	}
	off := ModeOff
	c.mu.Lock()
	c.mode = &off
	c.mu.Unlock()
	return nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyMode(v *Mode) *Mode {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
