package mcu

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	suites    []string
	results   []Result
	finalized bool
}

func (s *recordingSink) BeginSuite(name string) { s.suites = append(s.suites, name) }

func (s *recordingSink) Record(res Result) error {
	s.results = append(s.results, res)
	return nil
}

func (s *recordingSink) Finalize() (Report, error) {
	s.finalized = true
	return NewReport(s.results), nil
}

func TestRunSuitesAgainstFirmware(t *testing.T) {
	link := &fakeLink{respond: firmware}
	out := &recordingSink{}
	runID := uuid.New()
	d := NewDriver(link, WithSink(out), WithRunID(runID), WithTimeout(100*time.Millisecond))

	suites := []Suite{AnalogSuite(), DigitalSuite(), PWMSuite(), ErrorSuite()}
	report, err := d.RunSuites(suites...)
	require.NoError(t, err)
	require.True(t, out.finalized)
	require.Equal(t, []string{"Analog Read Tests", "Digital Operations Tests", "PWM Tests", "Error Handling Tests"}, out.suites)

	require.Len(t, report.Results, 19)
	for _, res := range report.Results {
		assert.Equal(t, Pass, res.Status, "%s: %s", res.Name, res.Details)
		assert.Equal(t, runID, res.RunID)
	}
	require.True(t, report.OK())
	require.Equal(t, 19, report.Passed)
	require.Equal(t, runID, report.RunID)

	byName := map[string]Result{}
	for _, res := range report.Results {
		byName[res.Name] = res
	}
	assert.Equal(t, "A0: 1000", byName["A0 Read"].Details)
	assert.Equal(t, "Error: Pin Out of Range (0xE3)", byName["Invalid Pin High"].Details)
	assert.Equal(t, "PORTBB <- 0xAA", byName["Write PORTB"].Details)
	assert.Equal(t, "Error: Buffer Overflow (0xE6)", byName["Buffer Overflow"].Details)
	assert.Equal(t, "0xAE*30", byName["Buffer Overflow"].Command)
	assert.Equal(t, "AE", byName["A0 Read"].Command)
	assert.Equal(t, "Error Handling Tests", byName["Buffer Overflow"].Suite)
}

func TestRunNoResponse(t *testing.T) {
	link := &fakeLink{}
	d := NewDriver(link, WithTimeout(20*time.Millisecond))

	res := d.Run("s", packetCase("silent", OpAnalogRead, []byte{0x00}, Length(4)))
	require.Equal(t, Fail, res.Status)
	require.Equal(t, "No response", res.Details)
	require.Nil(t, res.Response)
	require.Len(t, link.writes, 1)
}

func TestRunEmptyFrameIsNoResponse(t *testing.T) {
	link := &fakeLink{respond: func([]byte) []byte { return []byte{SOB, EOB} }}
	res := NewDriver(link).Run("s", packetCase("empty", OpAnalogRead, []byte{0x00}, Length(4)))
	require.Equal(t, Fail, res.Status)
	require.Equal(t, "No response", res.Details)
}

func TestRunValidationFailed(t *testing.T) {
	link := &fakeLink{respond: firmware}
	res := NewDriver(link).Run("s", packetCase("wrong pin", OpAnalogRead, []byte{0x00}, Length(17)))
	require.Equal(t, Fail, res.Status)
	require.Equal(t, "Validation failed", res.Details)
	require.Equal(t, Bytes{0xAE, 0x00, 0x03, 0xE8}, res.Response)
}

func TestValidatorFaultDoesNotStopRun(t *testing.T) {
	link := &fakeLink{respond: firmware}
	out := &recordingSink{}
	d := NewDriver(link, WithSink(out))

	suite := Suite{Name: "faults", Cases: []Case{
		{
			Name:    "panicking validator",
			Request: Packet{Opcode: 0xFF},
			Validate: func(resp []byte) (bool, error) {
				return resp[5] == 0, nil
			},
		},
		{
			Name:     "erroring validator",
			Request:  Packet{Opcode: 0xFF},
			Validate: func([]byte) (bool, error) { return false, errors.New("bad validator") },
		},
		packetCase("index beyond reply", 0xFF, nil, ByteAt(3, 0x00)),
		{Name: "no validator", Request: Packet{Opcode: 0xFF}},
		packetCase("still running", 0xFF, nil, ByteAt(0, CodeInvalidCommand)),
	}}
	report, err := d.RunSuites(suite)
	require.NoError(t, err)
	require.Len(t, report.Results, 5)

	assert.Equal(t, Error, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Details, "index out of range")
	assert.Equal(t, Error, report.Results[1].Status)
	assert.Equal(t, "bad validator", report.Results[1].Details)
	assert.Equal(t, Error, report.Results[2].Status)
	assert.Equal(t, Error, report.Results[3].Status)
	assert.Equal(t, Pass, report.Results[4].Status)
	assert.Equal(t, "Error: Invalid Command (0xE1)", report.Results[4].Details)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 4, report.Errored)
	assert.False(t, report.OK())
}

func TestRunFormatFaultIsError(t *testing.T) {
	link := &fakeLink{respond: func([]byte) []byte { return []byte{SOB, OpPortWrite, EOB} }}
	res := NewDriver(link).Run("s", packetCase("short echo", OpPortWrite, []byte{0xBB, 0x01}, ByteAt(0, OpPortWrite)))
	require.Equal(t, Error, res.Status)
	require.Contains(t, res.Details, "too short")
}

func TestRunEncodingError(t *testing.T) {
	link := &fakeLink{respond: firmware}
	res := NewDriver(link).Run("s", packetCase("too long", OpAnalogRead, make([]byte, 40), ByteAt(0, 0)))
	require.Equal(t, Error, res.Status)
	require.Contains(t, res.Details, "encoding error")
	require.Empty(t, link.writes)
}

func TestRunReadError(t *testing.T) {
	link := &fakeLink{readErr: errors.New("unplugged")}
	res := NewDriver(link).Run("s", packetCase("gone", OpAnalogRead, []byte{0}, Length(4)))
	require.Equal(t, Error, res.Status)
	require.Equal(t, "unplugged", res.Details)
}

func TestOverflowProbeFrame(t *testing.T) {
	link := &fakeLink{respond: firmware}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDriver(link, WithClock(func() time.Time { return clock }))

	res := d.Run("errors", ErrorSuite().Cases[3])
	require.Equal(t, Pass, res.Status)
	require.Equal(t, clock, res.Timestamp)
	require.Len(t, res.Params, 30)

	want := append([]byte{SOB}, make([]byte, 30)...)
	for i := 1; i <= 30; i++ {
		want[i] = OpAnalogRead
	}
	want = append(want, EOB)
	require.Equal(t, [][]byte{want}, link.writes)
}

func TestDialectAExchange(t *testing.T) {
	link := &fakeLink{respond: func(req []byte) []byte {
		return []byte{0x55, STX, 0xEE, 0xE2, 0x01, ETX}
	}}
	d := NewDriver(link, WithDialect(DialectA))
	resp, ok, err := d.Exchange(MustLookup("PWM_WRITE").Request())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0xEE, 0xE2, 0x01}, resp)
	require.Equal(t, [][]byte{{STX, 0xE4, 0x09, 0x80, ETX}}, link.writes)

	e, ok := Frame{Dialect: DialectA, Payload: resp}.DeviceError()
	require.True(t, ok)
	require.Equal(t, CodeBadParameters, e.Code)
}

func TestRunDialectADeviceErrorDetails(t *testing.T) {
	link := &fakeLink{respond: func([]byte) []byte {
		return []byte{STX, 0xEE, CodePinOutOfRange, 0x01, ETX}
	}}
	d := NewDriver(link, WithDialect(DialectA), WithTimeout(50*time.Millisecond))
	res := d.Run("s", packetCase("pin high", OpAnalogRead, []byte{0x08}, ByteAt(0, 0xEE)))
	require.Equal(t, Pass, res.Status)
	require.Equal(t, Bytes{0xEE, CodePinOutOfRange, 0x01}, res.Response)
	require.Equal(t, "Error: Pin Out of Range (0xE3)", res.Details)
}

func TestRunMalformedReplyIsNoResponse(t *testing.T) {
	link := &fakeLink{respond: func([]byte) []byte {
		return []byte{OpAnalogRead, 0x00, 0x03, 0xE8, ETX}
	}}
	d := NewDriver(link, WithDialect(DialectA), WithTimeout(50*time.Millisecond))
	res := d.Run("s", packetCase("no start byte", OpAnalogRead, []byte{0x00}, Length(4)))
	require.Equal(t, Fail, res.Status)
	require.Equal(t, "No response", res.Details)
	require.Nil(t, res.Response)
}

func TestRunAnalogTrailingByte(t *testing.T) {
	link := &fakeLink{respond: func([]byte) []byte {
		return []byte{SOB, OpAnalogRead, 0x01, 0x03, 0xE8, 0x00, EOB}
	}}
	res := NewDriver(link).Run("s", packetCase("A1", OpAnalogRead, []byte{0x01}, ByteAt(0, OpAnalogRead)))
	require.Equal(t, Pass, res.Status)
	require.Equal(t, "A1: 1000", res.Details)
}

func TestStressSuite(t *testing.T) {
	s := StressSuite()
	require.Len(t, s.Cases, 150)

	link := &fakeLink{respond: firmware}
	report, err := NewDriver(link).RunSuites(s)
	require.NoError(t, err)
	require.Equal(t, 150, report.Passed)
}
