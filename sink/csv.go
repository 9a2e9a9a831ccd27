package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/speters/mcuprobe/mcu"
)

// TimestampLayout is the format of the Timestamp column
const TimestampLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"Timestamp", "Test Name", "Command", "Parameters", "Response", "Status", "Details"}

// CSVName returns the default log file name for a run started at t
func CSVName(t time.Time) string {
	return fmt.Sprintf("test_log_%s.csv", t.Format("20060102_150405"))
}

// CSV writes one row per result and flushes it immediately
type CSV struct {
	w      *csv.Writer
	closer io.Closer
	mem    Memory
}

// NewCSV writes the header to w and returns the sink
func NewCSV(w io.Writer) (*CSV, error) {
	c := &CSV{w: csv.NewWriter(w)}
	if err := c.write(csvHeader); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCSV creates the file at path and writes the header. Finalize closes the file.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c, err := NewCSV(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	log.Infof("Logging results to %v", path)
	return c, nil
}

func (c *CSV) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// Row renders res as csv columns
func Row(res mcu.Result) []string {
	params := "" // an empty parameter list is an empty cell, not None
	if len(res.Params) > 0 {
		params = res.Params.Hex()
	}
	return []string{
		res.Timestamp.Format(TimestampLayout),
		res.Name,
		res.Command,
		params,
		res.Response.Hex(),
		res.Status.String(),
		res.Details,
	}
}

// Record implements mcu.Sink.
func (c *CSV) Record(res mcu.Result) error {
	c.mem.Record(res)
	return c.write(Row(res))
}

// Finalize implements mcu.Sink.
func (c *CSV) Finalize() (mcu.Report, error) {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
		c.closer = nil
	}
	r, _ := c.mem.Finalize()
	return r, err
}
