package carcontrol

import "errors"

// Sentinel errors for the carcontrol package.
var (
	// Connection errors
	ErrNotConnected     = errors.New("carcontrol: not connected to any device")
	ErrAlreadyConnected = errors.New("carcontrol: already connected")
	ErrDeviceNotFound   = errors.New("carcontrol: device not found")
	ErrConnectionFailed = errors.New("carcontrol: connection failed")

	// Radio errors
	ErrPermissionDenied = errors.New("carcontrol: bluetooth permissions denied")
	ErrRadioDisabled    = errors.New("carcontrol: bluetooth is disabled")

	// Parsing errors
	ErrUnknownDirection = errors.New("carcontrol: unknown direction")
)
