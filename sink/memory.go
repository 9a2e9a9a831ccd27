// Package sink provides destinations for test results: csv files, the console and memory.
package sink

import (
	"sync"

	"github.com/speters/mcuprobe/mcu"
)

// Memory keeps results in order
type Memory struct {
	mu      sync.Mutex
	results []mcu.Result
}

// NewMemory creates an empty Memory sink
func NewMemory() *Memory {
	return &Memory{}
}

// Record implements mcu.Sink.
func (m *Memory) Record(res mcu.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

// Finalize implements mcu.Sink.
func (m *Memory) Finalize() (mcu.Report, error) {
	return mcu.NewReport(m.Results()), nil
}

// Results returns a copy of the recorded results
func (m *Memory) Results() []mcu.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := make([]mcu.Result, len(m.results))
	copy(r, m.results)
	return r
}
