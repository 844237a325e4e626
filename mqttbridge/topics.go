package mqttbridge

import "fmt"

// State topic fields published by the bridge.
const (
	FieldTemperature = "temperature"
	FieldSetpoint    = "setpoint"
	FieldMode        = "mode"
	FieldRelay       = "relay"
	FieldOnline      = "online"
)

// Command topic fields the bridge subscribes to.
const (
	CommandSetpoint = "setpoint"
	CommandMode     = "mode"
	CommandPower    = "power"
)

// Topics builds bridge topic names for one device. The scheme is
// {prefix}/{serial}/{field} for state and {prefix}/{serial}/set/{field}
// for commands.
type Topics struct {
	Prefix string
	Serial string
}

// State returns the retained state topic for a field.
//
// Example: terneo/16001bXXXX/temperature
func (t Topics) State(field string) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, t.Serial, field)
}

// Online returns the availability topic used for the last will.
//
// Example: terneo/16001bXXXX/online
func (t Topics) Online() string {
	return t.State(FieldOnline)
}

// Command returns the command topic for a field.
//
// Example: terneo/16001bXXXX/set/setpoint
func (t Topics) Command(field string) string {
	return fmt.Sprintf("%s/%s/set/%s", t.Prefix, t.Serial, field)
}

// AllCommands returns a pattern matching every command topic for the
// device.
//
// Pattern: terneo/16001bXXXX/set/+
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/%s/set/+", t.Prefix, t.Serial)
}
