package terneo

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure modes callers need to tell apart.
// Use errors.Is() to check for these in calling code.
var (
	// ErrPartialCredentials is returned when only one of username and
	// password is configured.
	ErrPartialCredentials = errors.New("terneo: username and password must both be set, if either is set")

	// ErrConnectionFailed is returned when the liveness probe at
	// construction time fails. Construction is fail-fast: an unreachable
	// device is a hard error, not a deferred one.
	ErrConnectionFailed = errors.New("terneo: connection to thermostat failed")

	// ErrDeviceTimeout is returned when the device's embedded web server
	// reports congestion ({"status": "timeout"}).
	ErrDeviceTimeout = errors.New("terneo: device reported timeout")

	// ErrFieldMissing is returned when an expected telemetry field is
	// absent from the status payload.
	ErrFieldMissing = errors.New("terneo: field missing from status payload")

	// ErrParamMissing is returned when the parameter table response does
	// not carry the requested parameter.
	ErrParamMissing = errors.New("terneo: parameter missing from device response")

	// ErrInvalidMode is returned by SetMode for values other than
	// schedule and manual. No request is issued.
	ErrInvalidMode = errors.New("terneo: mode must be schedule (0) or manual (1)")
)

// HTTPStatusError is returned when the device answers with a non-2xx status.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("terneo api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}
