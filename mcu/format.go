package mcu

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// analogChannels is the number of values in an all-pins analog reply
const analogChannels = 8

// FormatResponse renders a reply payload for humans.
// Error codes take precedence over the opcode, so an echo starting with 0xE4
// reads as Port Range Error just like the firmware documents it.
func FormatResponse(resp []byte) (string, error) {
	if len(resp) == 0 {
		return "", fmt.Errorf("empty response")
	}
	if desc, ok := errorCodes[resp[0]]; ok {
		return fmt.Sprintf("Error: %s (0x%02X)", desc, resp[0]), nil
	}

	switch resp[0] {
	case OpAnalogRead:
		return formatAnalog(resp)
	case OpPortWrite:
		if err := needLen(resp, 3); err != nil {
			return "", err
		}
		return fmt.Sprintf("PORT%02X <- 0x%02X", resp[1], resp[2]), nil
	case OpDDRSet:
		if err := needLen(resp, 3); err != nil {
			return "", err
		}
		return fmt.Sprintf("DDR%02X <- 0x%02X", resp[1], resp[2]), nil
	case OpPWMWrite:
		if err := needLen(resp, 3); err != nil {
			return "", err
		}
		return fmt.Sprintf("PWM Pin %d = %d", resp[1], resp[2]), nil
	case OpPinRead:
		if err := needLen(resp, 3); err != nil {
			return "", err
		}
		return fmt.Sprintf("PORT%02X = %08bb", resp[1], resp[2]), nil
	default:
		return "Unknown response", nil
	}
}

func needLen(resp []byte, n int) error {
	if len(resp) < n {
		return fmt.Errorf("response '% X' too short for opcode 0x%02X: got %d bytes, need %d", resp, resp[0], len(resp), n)
	}
	return nil
}

// AnalogValues decodes the big-endian 16 bit readings of an analog reply.
// 17 bytes carry all eight channels from offset 1, any other reply of 4 or more
// bytes carries (pin, value) in bytes 1..3 and 3 bytes carry a bare value.
func AnalogValues(resp []byte) (pin int, values []uint16, err error) {
	switch n := len(resp); {
	case n == 1+2*analogChannels:
		values = make([]uint16, analogChannels)
		for i := range values {
			values[i] = binary.BigEndian.Uint16(resp[1+2*i:])
		}
		return -1, values, nil
	case n >= 4:
		return int(resp[1]), []uint16{binary.BigEndian.Uint16(resp[2:4])}, nil
	case n == 3:
		return -1, []uint16{binary.BigEndian.Uint16(resp[1:])}, nil
	}
	return 0, nil, fmt.Errorf("analog response '% X' has unexpected length %d", resp, len(resp))
}

func formatAnalog(resp []byte) (string, error) {
	pin, values, err := AnalogValues(resp)
	if err != nil {
		return "", err
	}
	if len(values) == analogChannels {
		s := make([]string, len(values))
		for i, v := range values {
			s[i] = fmt.Sprintf("%4d", v)
		}
		return "Analog Values: " + strings.Join(s, ", "), nil
	}
	if pin < 0 {
		return fmt.Sprintf("A: %4d", values[0]), nil
	}
	return fmt.Sprintf("A%d: %4d", pin, values[0]), nil
}

// FormatFrame is FormatResponse aware of the dialect: a dialect A error reply
// (0xEE, code, detail) renders like a dialect B one.
func FormatFrame(f Frame) (string, error) {
	if e, ok := f.DeviceError(); ok {
		return fmt.Sprintf("Error: %s (0x%02X)", e.Description(), e.Code), nil
	}
	return FormatResponse(f.Payload)
}

// Describe renders a reply frame the way the commander prints it:
// device errors with code and detail, everything else via FormatResponse.
func Describe(f Frame) string {
	if e, ok := f.DeviceError(); ok {
		return fmt.Sprintf("Error: %s, Code 0x%02X, Details: 0x%02X", e.Description(), e.Code, e.Detail)
	}
	s, err := FormatResponse(f.Payload)
	if err != nil {
		return fmt.Sprintf("Parsed Data: % X", f.Payload)
	}
	return s
}
