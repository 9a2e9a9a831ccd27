package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/speters/mcuprobe/config"
	"github.com/speters/mcuprobe/mcu"
	"github.com/speters/mcuprobe/sink"
)

func newRunCmd() *cobra.Command {
	var (
		strict  bool
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "run [suite...]",
		Short: "Run test suites against the device",
		Long: fmt.Sprintf(`Run test suites against the device. Built-in suites: %s.
Without arguments the configured suites run, followed by every suite of the suite file.
"all" selects the default built-in suites plus the suite file.`, strings.Join(mcu.BuiltinSuiteNames(), ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("csv") {
				cfg.CSV = csvPath
			}
			suites, err := suitesFor(cfg, args)
			if err != nil {
				return err
			}

			var report mcu.Report
			err = withDevice(cfg, func(dev *mcu.Device) error {
				sinks, err := resultSinks(cfg, time.Now())
				if err != nil {
					return err
				}
				d := mcu.NewDriver(dev, append(driverOptions(cfg), mcu.WithSink(sinks))...)
				log.Debugf("Run %v over %v, dialect %v", d.RunID(), cfg.Link, cfg.DialectValue())
				report, err = d.RunSuites(suites...)
				return err
			})
			if err != nil {
				return err
			}
			if strict && !report.OK() {
				return fmt.Errorf("%d failed, %d errors", report.Failed, report.Errored)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&csvPath, "csv", "o", "", "csv result `file`, \"-\" to disable (default test_log_<time>.csv)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when a case does not pass")
	return cmd
}

func resultSinks(cfg config.Config, start time.Time) (sink.Multi, error) {
	path := cfg.CSV
	sinks := sink.Multi{sink.NewConsole(os.Stdout)}
	if path == "-" {
		return sinks, nil
	}
	if path == "" {
		path = sink.CSVName(start)
	}
	c, err := sink.CreateCSV(path)
	if err != nil {
		return nil, err
	}
	return append(sinks, c), nil
}

// suitesFor resolves suite names against the built-in suites and the suite file
func suitesFor(cfg config.Config, names []string) ([]mcu.Suite, error) {
	var fileSuites []mcu.Suite
	if cfg.SuiteFile != "" {
		var err error
		fileSuites, err = mcu.LoadSuiteFile(cfg.SuiteFile)
		if err != nil {
			return nil, err
		}
	}
	return resolveSuites(names, cfg.Suites, fileSuites)
}

func resolveSuites(names, defaults []string, fileSuites []mcu.Suite) ([]mcu.Suite, error) {
	var suites []mcu.Suite
	if len(names) == 0 || (len(names) == 1 && strings.EqualFold(names[0], "all")) {
		if len(names) == 1 {
			defaults = mcu.DefaultSuites
		}
		for _, n := range defaults {
			s, ok := mcu.BuiltinSuite(n)
			if !ok {
				return nil, fmt.Errorf("no built-in suite %q", n)
			}
			suites = append(suites, s)
		}
		return append(suites, fileSuites...), nil
	}

	for _, n := range names {
		if s, ok := mcu.BuiltinSuite(n); ok {
			suites = append(suites, s)
			continue
		}
		found := false
		for _, s := range fileSuites {
			if strings.EqualFold(s.Name, n) {
				suites = append(suites, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no suite %q", n)
		}
	}
	return suites, nil
}
