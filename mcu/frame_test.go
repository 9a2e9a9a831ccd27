package mcu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	b, err := Encode(DialectA, OpAnalogRead, []byte{0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0xAE, 0x00, 0x03}, b)

	b, err = Encode(DialectB, OpAnalogRead, []byte{0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0xEB, 0xAE, 0x00, 0xEE}, b)

	b, err = Encode(DialectB, 0xFF, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0xEB, 0xFF, 0xEE}, b)
}

func TestEncodeRejects(t *testing.T) {
	testCases := []struct {
		name    string
		dialect Dialect
		opcode  byte
		params  []byte
	}{
		{"too many params", DialectB, OpAnalogRead, make([]byte, MaxParams+1)},
		{"param is end byte", DialectB, OpPortWrite, []byte{0xBB, EOB}},
		{"param is start byte", DialectB, OpPortWrite, []byte{SOB}},
		{"opcode is delimiter", DialectA, STX, nil},
		{"param is etx", DialectA, OpPortWrite, []byte{0xBB, ETX}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.dialect, tc.opcode, tc.params)
			require.ErrorIs(t, err, ErrEncoding)
		})
	}

	_, err := Encode(DialectB, OpAnalogRead, make([]byte, MaxParams))
	require.NoError(t, err)
}

func TestEncodeOverflow(t *testing.T) {
	b, err := EncodeOverflow(DialectB, OpAnalogRead, 30)
	require.NoError(t, err)
	require.Len(t, b, 32)
	require.Equal(t, SOB, b[0])
	require.Equal(t, EOB, b[31])
	for _, c := range b[1:31] {
		require.Equal(t, OpAnalogRead, c)
	}

	_, err = EncodeOverflow(DialectB, OpAnalogRead, 0)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestRoundTrip(t *testing.T) {
	params := [][]byte{nil, {0x00}, {0xBB, 0x3F}, {0x09, 0x80}, {0x01, 0x7F, 0xFF, 0x10}}
	for _, d := range []Dialect{DialectA, DialectB} {
		for op := 0; op < 256; op++ {
			for _, p := range params {
				raw, err := Encode(d, byte(op), p)
				if d.isDelimiter(byte(op)) || containsAny(p, d.Start, d.End) {
					require.ErrorIs(t, err, ErrEncoding)
					continue
				}
				require.NoError(t, err)
				f, err := Decode(d, raw)
				require.NoError(t, err)
				require.Equal(t, byte(op), f.Opcode())
				if len(p) == 0 {
					require.Empty(t, f.Params())
				} else {
					require.Equal(t, p, f.Params())
				}
			}
		}
	}
}

func containsAny(b []byte, vals ...byte) bool {
	for _, c := range b {
		for _, v := range vals {
			if c == v {
				return true
			}
		}
	}
	return false
}

func TestDecodeMalformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"delimiters only", []byte{STX, ETX}},
		{"missing start", []byte{0xAE, 0x00, ETX}},
		{"missing end", []byte{STX, 0xAE, 0x00}},
		{"other dialect", []byte{SOB, 0xAE, EOB}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(DialectA, tc.raw)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDeviceError(t *testing.T) {
	e, ok := Frame{Dialect: DialectA, Payload: []byte{0xEE, 0x05, 0x01}}.DeviceError()
	require.True(t, ok)
	assert.Equal(t, byte(0x05), e.Code)
	assert.Equal(t, byte(0x01), e.Detail)

	_, ok = Frame{Dialect: DialectA, Payload: []byte{0xEE, 0x05}}.DeviceError()
	assert.False(t, ok)

	e, ok = Frame{Dialect: DialectB, Payload: []byte{0xE3, 0x00, 0x01}}.DeviceError()
	require.True(t, ok)
	assert.Equal(t, CodePinOutOfRange, e.Code)
	assert.Equal(t, "Pin Out of Range", e.Description())
	assert.Contains(t, e.Error(), "Pin Out of Range")

	_, ok = Frame{Dialect: DialectB, Payload: []byte{0xAE, 0x00, 0x03, 0xE8}}.DeviceError()
	assert.False(t, ok)
	_, ok = Frame{Dialect: DialectB}.DeviceError()
	assert.False(t, ok)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("a")
	require.NoError(t, err)
	require.Equal(t, DialectA, d)

	d, err = ParseDialect("B")
	require.NoError(t, err)
	require.Equal(t, DialectB, d)

	_, err = ParseDialect("c")
	require.Error(t, err)
}
