package mcu

import (
	"fmt"
	"sort"
	"strings"
)

// Request is what a test case sends: a Packet or an OverflowProbe
type Request interface {
	// Frame encodes the request in dialect d
	Frame(d Dialect) ([]byte, error)
	// Label names the request in result records
	Label() string
	opcode() byte
	params() []byte
}

// Packet is a regular framed command
type Packet struct {
	Opcode byte
	Params []byte
}

// Frame implements Request.
func (p Packet) Frame(d Dialect) ([]byte, error) { return Encode(d, p.Opcode, p.Params) }

// Label implements Request.
func (p Packet) Label() string { return fmt.Sprintf("%02X", p.Opcode) }

func (p Packet) opcode() byte   { return p.Opcode }
func (p Packet) params() []byte { return p.Params }

// OverflowProbe sends Opcode repeated Count times as one oversized frame
type OverflowProbe struct {
	Opcode byte
	Count  int
}

// Frame implements Request.
func (o OverflowProbe) Frame(d Dialect) ([]byte, error) { return EncodeOverflow(d, o.Opcode, o.Count) }

// Label implements Request.
func (o OverflowProbe) Label() string { return fmt.Sprintf("0x%02X*%d", o.Opcode, o.Count) }

func (o OverflowProbe) opcode() byte { return o.Opcode }
func (o OverflowProbe) params() []byte {
	b := make([]byte, o.Count)
	for i := range b {
		b[i] = o.Opcode
	}
	return b
}

// Validator decides whether a reply payload passes.
// Returning an error (or panicking) marks the case as ERROR instead of FAIL.
type Validator func(resp []byte) (bool, error)

// Case is a single stimulus/response exchange
type Case struct {
	Name     string
	Request  Request
	Validate Validator
}

// Suite is a named, ordered list of cases
type Suite struct {
	Name  string
	Cases []Case
}

// Expect is a declarative validator: an optional exact length and expected bytes by index
type Expect struct {
	Len   *int          `yaml:"len,omitempty"`
	Bytes map[int]uint8 `yaml:"bytes,omitempty"`
}

// Length returns an Expect for replies of exactly n bytes
func Length(n int) Expect {
	return Expect{Len: &n}
}

// At adds the expectation resp[i] == b
func (e Expect) At(i int, b byte) Expect {
	m := make(map[int]uint8, len(e.Bytes)+1)
	for k, v := range e.Bytes {
		m[k] = v
	}
	m[i] = b
	e.Bytes = m
	return e
}

// ByteAt returns an Expect for resp[i] == b
func ByteAt(i int, b byte) Expect {
	return Expect{}.At(i, b)
}

func (e Expect) empty() bool {
	return e.Len == nil && len(e.Bytes) == 0
}

// Validator builds the predicate. The length is checked first and short-circuits,
// an index beyond the reply is a validator fault.
func (e Expect) Validator() Validator {
	idx := make([]int, 0, len(e.Bytes))
	for i := range e.Bytes {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	want := e.Len
	bytes := e.Bytes

	return func(resp []byte) (bool, error) {
		if want != nil && len(resp) != *want {
			return false, nil
		}
		for _, i := range idx {
			if i < 0 || i >= len(resp) {
				return false, fmt.Errorf("index %d out of range for response of %d bytes", i, len(resp))
			}
			if resp[i] != bytes[i] {
				return false, nil
			}
		}
		return true, nil
	}
}

func (e Expect) String() string {
	var s []string
	if e.Len != nil {
		s = append(s, fmt.Sprintf("len==%d", *e.Len))
	}
	idx := make([]int, 0, len(e.Bytes))
	for i := range e.Bytes {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		s = append(s, fmt.Sprintf("r[%d]==0x%02X", i, e.Bytes[i]))
	}
	return strings.Join(s, " && ")
}

func packetCase(name string, opcode byte, params []byte, e Expect) Case {
	return Case{Name: name, Request: Packet{Opcode: opcode, Params: params}, Validate: e.Validator()}
}

// AnalogSuite checks single and all-pins analog reads and pin range handling
func AnalogSuite() Suite {
	return Suite{Name: "Analog Read Tests", Cases: []Case{
		packetCase("A0 Read", OpAnalogRead, []byte{0x00}, Length(4).At(0, OpAnalogRead)),
		packetCase("All Pins Read", OpAnalogRead, []byte{0xAA}, Length(17).At(0, OpAnalogRead)),
		packetCase("Invalid Pin High", OpAnalogRead, []byte{0x08}, ByteAt(0, CodePinOutOfRange)),
		packetCase("Invalid Pin Low", OpAnalogRead, []byte{0xF0}, ByteAt(0, CodePinOutOfRange)),
		packetCase("Boundary Check", OpAnalogRead, []byte{0x07}, Length(4)),
	}}
}

// DigitalSuite checks DDR and port access
func DigitalSuite() Suite {
	return Suite{Name: "Digital Operations Tests", Cases: []Case{
		packetCase("Set DDRB", OpDDRSet, []byte{0xBB, 0xFF}, ByteAt(0, OpDDRSet).At(1, 0xBB)),
		packetCase("Set Invalid DDR", OpDDRSet, []byte{0x00, 0xFF}, ByteAt(0, CodePortRangeError)),
		packetCase("Write PORTB", OpPortWrite, []byte{0xBB, 0xAA}, ByteAt(0, OpPortWrite).At(1, 0xBB)),
		packetCase("Read PORTB", OpPinRead, []byte{0xBB}, ByteAt(0, OpPinRead).At(1, 0xBB)),
		packetCase("Invalid Port Write", OpPortWrite, []byte{0x00, 0xFF}, ByteAt(0, CodePortRangeError)),
	}}
}

// PWMSuite checks duty cycle limits and PWM capable pins
func PWMSuite() Suite {
	return Suite{Name: "PWM Tests", Cases: []Case{
		packetCase("Valid PWM 9", OpPWMWrite, []byte{0x09, 0x80}, ByteAt(0, OpPWMWrite).At(1, 0x09)),
		packetCase("Min PWM Value", OpPWMWrite, []byte{0x09, 0x00}, ByteAt(0, OpPWMWrite).At(2, 0x00)),
		packetCase("Max PWM Value", OpPWMWrite, []byte{0x09, 0xFF}, ByteAt(0, OpPWMWrite).At(2, 0xFF)),
		packetCase("Invalid PWM Pin", OpPWMWrite, []byte{0x02, 0x80}, ByteAt(0, CodePwmNotSupported)),
		packetCase("Unsupported PWM", OpPWMWrite, []byte{0x04, 0xFF}, ByteAt(0, CodePwmNotSupported)),
	}}
}

// ErrorSuite provokes each firmware error path, including the receive buffer overflow
func ErrorSuite() Suite {
	return Suite{Name: "Error Handling Tests", Cases: []Case{
		packetCase("Unknown Command", 0xFF, nil, ByteAt(0, CodeInvalidCommand)),
		packetCase("Short Packet", OpAnalogRead, nil, ByteAt(0, CodeBadParameters)),
		packetCase("Extra Parameters", OpAnalogRead, []byte{0x00, 0x00}, ByteAt(0, CodeBadParameters)),
		{
			Name:     "Buffer Overflow",
			Request:  OverflowProbe{Opcode: OpAnalogRead, Count: 30},
			Validate: ByteAt(0, CodeBufferOverflow).Validator(),
		},
	}}
}

// StressSuite hammers port writes and reads
func StressSuite() Suite {
	s := Suite{Name: "Stress Tests"}
	for i := 0; i < 100; i++ {
		s.Cases = append(s.Cases, packetCase(fmt.Sprintf("Stress Write %d", i+1),
			OpPortWrite, []byte{0xBB, byte(i % 256)}, ByteAt(0, OpPortWrite).At(1, 0xBB)))
	}
	for i := 0; i < 50; i++ {
		s.Cases = append(s.Cases, packetCase(fmt.Sprintf("Stress Read %d", i+1),
			OpPinRead, []byte{0xBB}, ByteAt(0, OpPinRead).At(1, 0xBB)))
	}
	return s
}

var builtinSuites = map[string]func() Suite{
	"analog":  AnalogSuite,
	"digital": DigitalSuite,
	"pwm":     PWMSuite,
	"errors":  ErrorSuite,
	"stress":  StressSuite,
}

// DefaultSuites lists the suites of a comprehensive run, stress is opt-in
var DefaultSuites = []string{"analog", "digital", "pwm", "errors"}

// BuiltinSuite returns the built-in suite with key name
func BuiltinSuite(name string) (Suite, bool) {
	f, ok := builtinSuites[strings.ToLower(name)]
	if !ok {
		return Suite{}, false
	}
	return f(), true
}

// BuiltinSuiteNames returns the keys of all built-in suites, sorted
func BuiltinSuiteNames() []string {
	names := make([]string, 0, len(builtinSuites))
	for n := range builtinSuites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
