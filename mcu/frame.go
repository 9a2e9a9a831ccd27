package mcu

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Delimiters of the two framing conventions spoken by the test firmware
const (
	STX byte = 0x02 // Start of frame in dialect A
	ETX byte = 0x03 // End of frame in dialect A
	SOB byte = 0xEB // Start of block in dialect B, also resets the receive buffer
	EOB byte = 0xEE // End of block in dialect B

	// appErrMarker leads a dialect A reply payload carrying (code, detail)
	appErrMarker byte = 0xEE
)

// MaxParams caps the parameter bytes of a single request frame
const MaxParams = 32

var (
	// ErrEncoding is returned when a request can not be framed unambiguously
	ErrEncoding = errors.New("encoding error")
	// ErrMalformed is returned for frames with missing delimiters or without payload
	ErrMalformed = errors.New("malformed frame")
)

// Dialect describes one choice of frame delimiters and the receive policy
type Dialect struct {
	Name  string
	Start byte
	End   byte
	// Resync makes any start byte discard the partially received frame.
	// Without it the reader hunts for a start byte and then collects until End.
	Resync bool
}

var (
	// DialectA is the STX/ETX framing of the commander script
	DialectA = Dialect{Name: "A", Start: STX, End: ETX}
	// DialectB is the 0xEB/0xEE framing of the test firmware
	DialectB = Dialect{Name: "B", Start: SOB, End: EOB, Resync: true}
)

// ParseDialect maps "A"/"stx" and "B"/"eb" to a Dialect
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "a", "stx":
		return DialectA, nil
	case "b", "eb", "":
		return DialectB, nil
	}
	return Dialect{}, fmt.Errorf("unknown dialect %q", s)
}

func (d Dialect) String() string {
	return fmt.Sprintf("%s(%#02x/%#02x)", d.Name, d.Start, d.End)
}

func (d Dialect) isDelimiter(b byte) bool {
	return b == d.Start || b == d.End
}

// Encode builds [Start, opcode, params..., End].
// Payload bytes equal to a delimiter are rejected since the framing has no escaping.
func Encode(d Dialect, opcode byte, params []byte) ([]byte, error) {
	if len(params) > MaxParams {
		return nil, fmt.Errorf("%w: %d parameter bytes exceed maximum of %d", ErrEncoding, len(params), MaxParams)
	}
	if d.isDelimiter(opcode) {
		return nil, fmt.Errorf("%w: opcode %#02x collides with dialect %v delimiters", ErrEncoding, opcode, d)
	}
	for i, p := range params {
		if d.isDelimiter(p) {
			return nil, fmt.Errorf("%w: parameter %d (%#02x) collides with dialect %v delimiters", ErrEncoding, i, p, d)
		}
	}

	b := make([]byte, 0, len(params)+3)
	b = append(b, d.Start, opcode)
	b = append(b, params...)
	b = append(b, d.End)
	return b, nil
}

// EncodeOverflow builds a frame holding opcode repeated count times.
// It ignores MaxParams on purpose, the firmware is expected to answer with a buffer overflow.
func EncodeOverflow(d Dialect, opcode byte, count int) ([]byte, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: overflow probe needs at least one byte", ErrEncoding)
	}
	if d.isDelimiter(opcode) {
		return nil, fmt.Errorf("%w: opcode %#02x collides with dialect %v delimiters", ErrEncoding, opcode, d)
	}
	b := make([]byte, 0, count+2)
	b = append(b, d.Start)
	b = append(b, bytes.Repeat([]byte{opcode}, count)...)
	b = append(b, d.End)
	return b, nil
}

// Frame is a decoded frame payload, delimiters stripped
type Frame struct {
	Dialect Dialect
	Payload []byte
}

// Decode checks the delimiters of raw and strips them
func Decode(d Dialect, raw []byte) (Frame, error) {
	if len(raw) < 3 {
		return Frame{}, fmt.Errorf("%w: got %d bytes, need at least 3", ErrMalformed, len(raw))
	}
	if raw[0] != d.Start {
		return Frame{}, fmt.Errorf("%w: start byte %#02x, expected %#02x", ErrMalformed, raw[0], d.Start)
	}
	if raw[len(raw)-1] != d.End {
		return Frame{}, fmt.Errorf("%w: end byte %#02x, expected %#02x", ErrMalformed, raw[len(raw)-1], d.End)
	}
	payload := make([]byte, len(raw)-2)
	copy(payload, raw[1:len(raw)-1])
	return Frame{Dialect: d, Payload: payload}, nil
}

// Opcode returns the leading payload byte
func (f Frame) Opcode() byte {
	if len(f.Payload) == 0 {
		return 0
	}
	return f.Payload[0]
}

// Params returns the payload after the opcode
func (f Frame) Params() []byte {
	if len(f.Payload) < 2 {
		return nil
	}
	return f.Payload[1:]
}

// DeviceError reports whether the payload is an error reply of the device.
// Dialect A marks errors with a leading 0xEE followed by (code, detail),
// dialect B uses one of the error codes as leading byte.
func (f Frame) DeviceError() (*DeviceError, bool) {
	p := f.Payload
	if len(p) == 0 {
		return nil, false
	}
	if f.Dialect.Start == STX {
		if p[0] != appErrMarker || len(p) < 3 {
			return nil, false
		}
		return &DeviceError{Code: p[1], Detail: p[2]}, true
	}
	if _, ok := errorCodes[p[0]]; !ok {
		return nil, false
	}
	e := &DeviceError{Code: p[0]}
	if len(p) > 1 {
		e.Detail = p[1]
	}
	return e, true
}
