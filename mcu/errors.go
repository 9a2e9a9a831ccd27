package mcu

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is returned by Lookup for names missing in the command table
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoLink is returned when a connection string names neither a serial device nor a tcp endpoint
	ErrNoLink = errors.New("no valid link")
)

// Error codes reported by the firmware as leading reply byte
const (
	CodeInvalidCommand  byte = 0xE1
	CodeBadParameters   byte = 0xE2
	CodePinOutOfRange   byte = 0xE3
	CodePortRangeError  byte = 0xE4
	CodePwmNotSupported byte = 0xE5
	CodeBufferOverflow  byte = 0xE6
)

var errorCodes = map[byte]string{
	CodeInvalidCommand:  "Invalid Command",
	CodeBadParameters:   "Bad Parameters",
	CodePinOutOfRange:   "Pin Out of Range",
	CodePortRangeError:  "Port Range Error",
	CodePwmNotSupported: "PWM Not Supported",
	CodeBufferOverflow:  "Buffer Overflow",
}

// IsErrorCode reports whether b is one of the firmware error codes
func IsErrorCode(b byte) bool {
	_, ok := errorCodes[b]
	return ok
}

// DeviceError is a well-formed reply in which the device rejects a request
type DeviceError struct {
	Code   byte
	Detail byte
}

// Description returns the human readable name of the error code
func (e *DeviceError) Description() string {
	if s, ok := errorCodes[e.Code]; ok {
		return s
	}
	return "Unknown Error"
}

// Error implements error.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error %s (%#02x), detail %#02x", e.Description(), e.Code, e.Detail)
}
