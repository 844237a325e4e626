package mqttbridge

import "errors"

// Domain-specific errors for bridge operations. Use errors.Is() to check
// for these in calling code.
var (
	// ErrConnectionFailed is returned when the initial broker connection
	// attempt fails.
	ErrConnectionFailed = errors.New("mqttbridge: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqttbridge: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqttbridge: subscribe failed")

	// ErrInvalidCommand is returned when a command payload cannot be
	// decoded.
	ErrInvalidCommand = errors.New("mqttbridge: invalid command payload")
)
