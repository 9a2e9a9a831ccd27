package sink

import (
	"errors"

	"github.com/speters/mcuprobe/mcu"
)

// Multi fans results out to several sinks
type Multi []mcu.Sink

// Record implements mcu.Sink.
func (m Multi) Record(res mcu.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BeginSuite implements mcu.SuiteStarter.
func (m Multi) BeginSuite(name string) {
	for _, s := range m {
		if ss, ok := s.(mcu.SuiteStarter); ok {
			ss.BeginSuite(name)
		}
	}
}

// Finalize finalizes every sink and returns the report of the first one
func (m Multi) Finalize() (mcu.Report, error) {
	var (
		report mcu.Report
		errs   []error
	)
	for i, s := range m {
		r, err := s.Finalize()
		if err != nil {
			errs = append(errs, err)
		}
		if i == 0 {
			report = r
		}
	}
	return report, errors.Join(errs...)
}
