package mcu

import (
	"time"
)

// fakeLink is a Transport answering each write with the bytes respond returns
type fakeLink struct {
	respond func(req []byte) []byte
	queue   []byte
	writes  [][]byte
	readErr error
}

func (f *fakeLink) Write(b []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), b...))
	if f.respond != nil {
		f.queue = append(f.queue, f.respond(b)...)
	}
	return len(b), nil
}

func (f *fakeLink) ReadByteTimeout(d time.Duration) (byte, bool, error) {
	if f.readErr != nil {
		return 0, false, f.readErr
	}
	if len(f.queue) == 0 {
		time.Sleep(d)
		return 0, false, nil
	}
	b := f.queue[0]
	f.queue = f.queue[1:]
	return b, true, nil
}

// firmware mimics the dialect B test firmware
func firmware(req []byte) []byte {
	f, err := Decode(DialectB, req)
	if err != nil {
		return nil
	}
	reply := func(b ...byte) []byte {
		return append(append([]byte{SOB}, b...), EOB)
	}
	if len(f.Payload) > 20 {
		return reply(CodeBufferOverflow)
	}
	op, p := f.Opcode(), f.Params()
	switch op {
	case OpAnalogRead:
		if len(p) != 1 {
			return reply(CodeBadParameters)
		}
		if p[0] == 0xAA {
			all := []byte{OpAnalogRead}
			for i := 0; i < 8; i++ {
				all = append(all, 0x01, byte(i))
			}
			return reply(all...)
		}
		if p[0] > 7 {
			return reply(CodePinOutOfRange, p[0])
		}
		return reply(OpAnalogRead, p[0], 0x03, 0xE8)
	case OpDDRSet, OpPortWrite:
		if len(p) != 2 {
			return reply(CodeBadParameters)
		}
		if p[0] != 0xBB {
			return reply(CodePortRangeError)
		}
		return reply(op, p[0], p[1])
	case OpPinRead:
		if len(p) != 1 {
			return reply(CodeBadParameters)
		}
		return reply(OpPinRead, p[0], 0x05)
	case OpPWMWrite:
		if len(p) != 2 {
			return reply(CodeBadParameters)
		}
		switch p[0] {
		case 3, 5, 6, 9, 10, 11:
			return reply(OpPWMWrite, p[0], p[1])
		}
		return reply(CodePwmNotSupported)
	}
	return reply(CodeInvalidCommand)
}
