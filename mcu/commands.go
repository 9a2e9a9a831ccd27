package mcu

import (
	"fmt"
	"strings"
)

// Opcodes understood by the test firmware
const (
	OpAnalogRead byte = 0xAE
	OpPortWrite  byte = 0xBF
	OpDDRSet     byte = 0xDD
	OpPWMWrite   byte = 0xE4
	OpPinRead    byte = 0xFE
)

// Command is a named opcode with its default parameters
type Command struct {
	Name   string `json:"name"`
	Opcode byte   `json:"opcode"`
	Params []byte `json:"params"`
}

// With returns a request for c with params replacing the defaults
func (c Command) With(params ...byte) Packet {
	p := make([]byte, len(params))
	copy(p, params)
	return Packet{Opcode: c.Opcode, Params: p}
}

// Request returns a request for c with its default parameters
func (c Command) Request() Packet {
	return c.With(c.Params...)
}

// commandTable is populated once and read-only afterwards
var commandTable = []Command{
	{Name: "ANALOG_READ", Opcode: OpAnalogRead, Params: []byte{0x09}},
	{Name: "PORT_WRITE", Opcode: OpPortWrite, Params: []byte{0xBB, 0x3F}},
	{Name: "DDR_SET", Opcode: OpDDRSet, Params: []byte{0xBB, 0x3F}},
	{Name: "PWM_WRITE", Opcode: OpPWMWrite, Params: []byte{0x09, 0x80}},
	{Name: "PIN_READ", Opcode: OpPinRead, Params: []byte{0xCC}},
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, len(commandTable))
	for _, c := range commandTable {
		m[c.Name] = c
	}
	return m
}()

// Lookup returns the command named name, ignoring case
func Lookup(name string) (Command, error) {
	c, ok := commandsByName[strings.ToUpper(name)]
	if !ok {
		return Command{}, fmt.Errorf("%w: %v", ErrUnknownCommand, name)
	}
	return c, nil
}

// MustLookup is Lookup for static tables, it panics on unknown names
func MustLookup(name string) Command {
	c, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Commands returns all commands in definition order
func Commands() []Command {
	cmds := make([]Command, len(commandTable))
	copy(cmds, commandTable)
	return cmds
}
