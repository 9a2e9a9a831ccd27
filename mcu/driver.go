package mcu

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds the wait for a reply frame
const DefaultTimeout = 2 * time.Second

// CaseState is the state of a test case inside the driver
type CaseState byte

const (
	pending CaseState = iota
	sending
	awaitingResponse
	validating
	passed
	failed
	errored
)

func (s CaseState) String() string {
	switch s {
	case pending:
		return "Pending"
	case sending:
		return "Sending"
	case awaitingResponse:
		return "AwaitingResponse"
	case validating:
		return "Validating"
	case passed:
		return "Pass"
	case failed:
		return "Fail"
	case errored:
		return "Error"
	}
	return fmt.Sprintf("CaseState(%d)", byte(s))
}

// Option configures a Driver
type Option func(*Driver)

// WithDialect sets the framing, DialectB by default
func WithDialect(d Dialect) Option {
	return func(o *Driver) { o.dialect = d }
}

// WithTimeout sets the per case reply timeout
func WithTimeout(d time.Duration) Option {
	return func(o *Driver) { o.timeout = d }
}

// WithSink sets where results go
func WithSink(s Sink) Option {
	return func(o *Driver) { o.sink = s }
}

// WithClock replaces time.Now for result timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Driver) { o.now = now }
}

// WithRunID sets the run identifier stamped on results, a random one is used otherwise
func WithRunID(id uuid.UUID) Option {
	return func(o *Driver) { o.runID = id }
}

// Driver runs test cases one by one over a Transport
type Driver struct {
	t       Transport
	reader  *FrameReader
	dialect Dialect
	timeout time.Duration
	sink    Sink
	now     func() time.Time
	runID   uuid.UUID
}

// NewDriver creates a Driver talking over t
func NewDriver(t Transport, opts ...Option) *Driver {
	o := &Driver{
		t:       t,
		dialect: DialectB,
		timeout: DefaultTimeout,
		now:     time.Now,
		runID:   uuid.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.reader = NewFrameReader(t, o.dialect)
	return o
}

// RunID returns the identifier stamped on every result of this driver
func (o *Driver) RunID() uuid.UUID {
	return o.runID
}

// Exchange sends req and waits for one reply frame. ok is false on timeout.
func (o *Driver) Exchange(req Request) (resp []byte, ok bool, err error) {
	b, err := req.Frame(o.dialect)
	if err != nil {
		return nil, false, err
	}
	if _, err = o.t.Write(b); err != nil {
		return nil, false, fmt.Errorf("write %s: %w", req.Label(), err)
	}
	resp, ok, err = o.reader.ReadFrame(o.timeout)
	if err != nil {
		return nil, false, fmt.Errorf("read reply to %s: %w", req.Label(), err)
	}
	return resp, ok, nil
}

// Run executes c exactly once and records the result to the sink
func (o *Driver) Run(suite string, c Case) Result {
	res := Result{
		RunID:   o.runID,
		Suite:   suite,
		Name:    c.Name,
		Command: c.Request.Label(),
		Opcode:  c.Request.opcode(),
		Params:  Bytes(c.Request.params()),
	}

	state, prevstate := pending, pending
	next := func(s CaseState) {
		prevstate, state = state, s
		log.Debugf("%v: State changed: %v --> %v", c.Name, prevstate, state)
	}

	next(sending)
	frame, err := c.Request.Frame(o.dialect)
	if err == nil {
		_, err = o.t.Write(frame)
	}
	if err != nil {
		next(errored)
		res.Status, res.Details = Error, err.Error()
		return o.record(res)
	}

	next(awaitingResponse)
	resp, ok, err := o.reader.ReadFrame(o.timeout)
	switch {
	case err != nil:
		next(errored)
		res.Status, res.Details = Error, err.Error()
		return o.record(res)
	case !ok || len(resp) == 0:
		if ok {
			res.Response = Bytes(resp)
		}
		next(failed)
		res.Status, res.Details = Fail, "No response"
		return o.record(res)
	}
	res.Response = Bytes(resp)

	next(validating)
	valid, details, err := validate(c.Validate, Frame{Dialect: o.dialect, Payload: resp})
	switch {
	case err != nil:
		next(errored)
		res.Status, res.Details = Error, err.Error()
	case !valid:
		next(failed)
		res.Status, res.Details = Fail, "Validation failed"
	default:
		next(passed)
		res.Status, res.Details = Pass, details
	}
	return o.record(res)
}

// validate runs the validator and the formatter, turning panics into errors
func validate(v Validator, f Frame) (ok bool, details string, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, details, err = false, "", fmt.Errorf("%v", r)
		}
	}()
	if v == nil {
		return false, "", fmt.Errorf("no validator")
	}
	ok, err = v(f.Payload)
	if err != nil || !ok {
		return ok, "", err
	}
	details, err = FormatFrame(f)
	return ok, details, err
}

func (o *Driver) record(res Result) Result {
	res.Timestamp = o.now()
	if o.sink != nil {
		if err := o.sink.Record(res); err != nil {
			log.Errorf("Recording %v failed: %v", res.Name, err)
		}
	}
	log.Debugf("%v %v: %v", res.Status, res.Name, res.Details)
	return res
}

// RunSuites runs every case of every suite in order and finalizes the sink
func (o *Driver) RunSuites(suites ...Suite) (Report, error) {
	var results []Result
	for _, s := range suites {
		if ss, ok := o.sink.(SuiteStarter); ok {
			ss.BeginSuite(s.Name)
		}
		log.Infof("Running %v (%d cases)", s.Name, len(s.Cases))
		for _, c := range s.Cases {
			results = append(results, o.Run(s.Name, c))
		}
	}
	if o.sink == nil {
		return NewReport(results), nil
	}
	return o.sink.Finalize()
}
