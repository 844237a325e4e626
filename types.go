package terneo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Telemetry field identifiers returned by the status command. Values are
// string-encoded by the device firmware.
const (
	fieldTemperature = "t.1"
	fieldSetpoint    = "t.5"
	fieldMode        = "m.1"
	fieldRelay       = "f.0"
	fieldPower       = "f.16" // present from firmware 2.4
	fieldStatus      = "status"

	statusTimeout = "timeout"
)

// Parameter table identifiers and their value types. The device addresses
// configuration flags by numeric id; each write carries the id, the value
// type, and a string-encoded value.
const (
	parSetpoint = 5
	parMode     = 2
	parPower    = 125

	typeSetpoint = 1
	typeMode     = 2
	typePower    = 7
)

// Mode is the operating mode as reported by the device. The read encoding
// differs between firmware revisions; 3 and 4 are not reported by all units.
type Mode int

const (
	ModeOff      Mode = -1
	ModeSchedule Mode = 0
	ModeManual   Mode = 3
	ModeAway     Mode = 4
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeSchedule:
		return "schedule"
	case ModeManual:
		return "manual"
	case ModeAway:
		return "away"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeSetting selects the operating mode for SetMode. The write encoding is
// not the read encoding: manual is written as 1 but reported as 3.
type ModeSetting int

const (
	SetSchedule ModeSetting = 0
	SetManual   ModeSetting = 1
)

// Status is the decoded telemetry payload returned by the status command.
// Keys are device field identifiers ("t.1", "f.0", ...).
type Status map[string]any

// Field returns the string form of a telemetry field. Firmware revisions are
// inconsistent about quoting numbers, so both strings and JSON numbers are
// accepted.
func (s Status) Field(key string) (string, bool) {
	raw, ok := s[key]
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Temperature decodes the floor sensor reading in degrees Celsius.
func (s Status) Temperature(scale int) (float64, error) {
	return s.scaled(fieldTemperature, scale)
}

// Setpoint decodes the target temperature in degrees Celsius.
func (s Status) Setpoint(scale int) (float64, error) {
	return s.scaled(fieldSetpoint, scale)
}

// RelayOn reports whether the heating relay is energised.
func (s Status) RelayOn() (bool, error) {
	raw, ok := s.Field(fieldRelay)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrFieldMissing, fieldRelay)
	}
	return raw == "1", nil
}

// ModeCode decodes the raw operating mode code.
func (s Status) ModeCode() (int, error) {
	raw, ok := s.Field(fieldMode)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFieldMissing, fieldMode)
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", fieldMode, err)
	}
	return code, nil
}

// PowerFlag reports the power state on firmware that exposes f.16.
// ok is false on older firmware; callers fall back to the parameter table.
func (s Status) PowerFlag() (on bool, ok bool) {
	raw, present := s.Field(fieldPower)
	if !present {
		return false, false
	}
	return raw == "0", true
}

func (s Status) timedOut() bool {
	raw, ok := s.Field(fieldStatus)
	return ok && raw == statusTimeout
}

func (s Status) scaled(key string, scale int) (float64, error) {
	raw, ok := s.Field(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFieldMissing, key)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return value / float64(scale), nil
}

// Snapshot is a copy of the client's cached device state. Nil pointers mean
// the field has never been read or the cache was invalidated.
type Snapshot struct {
	Temperature *float64
	Setpoint    *float64
	Mode        *Mode
	RelayOn     *bool
	LastUpdated time.Time
}

// command is the JSON body sent to the api endpoint: {"cmd": n, "sn": ...}
// for reads, {"sn": ..., "par": [[id, type, value], ...]} for writes.
type command struct {
	Cmd int     `json:"cmd,omitempty"`
	SN  string  `json:"sn"`
	Par []param `json:"par,omitempty"`
}

// param is one parameter-table write, encoded on the wire as a
// [id, type, value] triple.
type param struct {
	id    int
	typ   int
	value string
}

func (p param) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.id, p.typ, p.value})
}

func setpointParam(celsius float64) param {
	return param{id: parSetpoint, typ: typeSetpoint, value: strconv.FormatFloat(celsius, 'f', -1, 64)}
}

func modeParam(setting ModeSetting) param {
	return param{id: parMode, typ: typeMode, value: strconv.Itoa(int(setting))}
}

func powerParam(on bool) param {
	value := "1"
	if on {
		value = "0"
	}
	return param{id: parPower, typ: typePower, value: value}
}
