package mcu

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bytes marshals to JSON as space separated upper case hex
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("\"% X\"", []byte(b))), nil
}

// Hex renders b as space separated upper case hex, "None" for a missing response
func (b Bytes) Hex() string {
	if b == nil {
		return "None"
	}
	return fmt.Sprintf("% X", []byte(b))
}

// Status is the terminal classification of a test case
type Status byte

const (
	Pass Status = iota
	Fail
	Error
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("Status(%d)", byte(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the immutable outcome of one test case execution
type Result struct {
	RunID     uuid.UUID `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Suite     string    `json:"suite,omitempty"`
	Name      string    `json:"name"`
	// Command is the request label, "AE" for packets and "0xAE*30" for overflow probes
	Command  string `json:"command"`
	Opcode   byte   `json:"opcode"`
	Params   Bytes  `json:"params"`
	Response Bytes  `json:"response"`
	Status   Status `json:"status"`
	Details  string `json:"details"`
}

// Report summarizes the results of a run in order
type Report struct {
	RunID   uuid.UUID `json:"run_id"`
	Results []Result  `json:"results"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
	Errored int       `json:"errored"`
}

// NewReport counts results into a Report
func NewReport(results []Result) Report {
	r := Report{Results: results}
	if len(results) > 0 {
		r.RunID = results[0].RunID
	}
	for _, res := range results {
		switch res.Status {
		case Pass:
			r.Passed++
		case Fail:
			r.Failed++
		case Error:
			r.Errored++
		}
	}
	return r
}

// OK reports whether every case passed
func (r Report) OK() bool {
	return r.Failed == 0 && r.Errored == 0
}

// String renders the columnar summary
func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-25s %-6s %s\n", "Test Name", "Status", "Details")
	for _, res := range r.Results {
		fmt.Fprintf(&sb, "%-25s %-6s %s\n", res.Name, res.Status, res.Details)
	}
	fmt.Fprintf(&sb, "\n%d passed, %d failed, %d errors\n", r.Passed, r.Failed, r.Errored)
	return sb.String()
}

// Sink receives results in execution order and produces the final Report
type Sink interface {
	Record(res Result) error
	Finalize() (Report, error)
}

// SuiteStarter is implemented by sinks that want to know when a suite begins
type SuiteStarter interface {
	BeginSuite(name string)
}
