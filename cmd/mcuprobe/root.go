package main

import (
	"errors"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/speters/mcuprobe/config"
	"github.com/speters/mcuprobe/mcu"
)

var (
	cfgFile   string
	flagLink  string
	flagBaud  int
	flagDial  string
	flagTime  time.Duration
	flagVerb  bool
	flagSuite string
)

var rootCmd = &cobra.Command{
	Use:   "mcuprobe",
	Short: "Command and test a microcontroller over a framed serial protocol",
	Long: `mcuprobe sends delimited command frames to the test firmware of a
microcontroller, waits for the reply frames and checks them against test
suites. Results go to the console and a csv log.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerb {
			log.SetLevel(log.DebugLevel)
			log.SetFormatter(&log.TextFormatter{
				FullTimestamp: true,
			})
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	rootCmd.Version = buildVersion + " (" + buildDate + ")"
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "toml config `file`")
	pf.StringVarP(&flagLink, "link", "c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for direct serial connection")
	pf.IntVarP(&flagBaud, "baud", "b", mcu.DefaultBaud, "serial line speed")
	pf.StringVarP(&flagDial, "dialect", "d", mcu.DialectB.Name, "framing dialect, A (STX/ETX) or B (0xEB/0xEE)")
	pf.DurationVarP(&flagTime, "timeout", "t", mcu.DefaultTimeout, "reply timeout per command")
	pf.StringVarP(&flagSuite, "suite-file", "f", "", "yaml `file` with additional suites")
	pf.BoolVarP(&flagVerb, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newServeCmd())
}

// loadConfig reads the config file and lets explicitly set flags win
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("link") {
		cfg.Link = flagLink
	}
	if flags.Changed("baud") {
		cfg.Baud = flagBaud
	}
	if flags.Changed("dialect") {
		cfg.Dialect = flagDial
	}
	if flags.Changed("timeout") {
		cfg.Timeout.Duration = flagTime
	}
	if flags.Changed("suite-file") {
		cfg.SuiteFile = flagSuite
	}
	if flagVerb {
		cfg.Verbose = true
	}
	if cfg.Verbose && !log.IsLevelEnabled(log.DebugLevel) {
		log.SetLevel(log.DebugLevel)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var errNoLink = errors.New("need connection string in -c option or link in config")

// openDevice connects to the configured link and waits for the board to settle.
// The caller closes the device.
func openDevice(cfg config.Config) (*mcu.Device, error) {
	if cfg.Link == "" {
		return nil, errNoLink
	}
	dev, err := mcu.Open(cfg.Link, cfg.Baud)
	if err != nil {
		return nil, err
	}
	settle(cfg)
	return dev, nil
}

// withDevice runs fn on the configured link and closes it afterwards
func withDevice(cfg config.Config, fn func(*mcu.Device) error) error {
	if cfg.Link == "" {
		return errNoLink
	}
	return mcu.WithDevice(cfg.Link, cfg.Baud, func(dev *mcu.Device) error {
		settle(cfg)
		return fn(dev)
	})
}

func settle(cfg config.Config) {
	if cfg.Settle.Duration > 0 {
		log.Debugf("Waiting %v for %v to settle", cfg.Settle.Duration, cfg.Link)
		time.Sleep(cfg.Settle.Duration)
	}
}

func driverOptions(cfg config.Config) []mcu.Option {
	return []mcu.Option{
		mcu.WithDialect(cfg.DialectValue()),
		mcu.WithTimeout(cfg.Timeout.Duration),
	}
}
