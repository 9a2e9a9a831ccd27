package sink

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/speters/mcuprobe/mcu"
)

// Console prints results as they come in and the summary at the end
type Console struct {
	w      io.Writer
	mem    Memory
	styles map[mcu.Status]lipgloss.Style
	header lipgloss.Style
}

// NewConsole creates a Console on w. Colors are dropped when w is not a terminal.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	status := r.NewStyle().Bold(true)
	return &Console{
		w: w,
		styles: map[mcu.Status]lipgloss.Style{
			mcu.Pass:  status.Foreground(lipgloss.Color("2")),
			mcu.Fail:  status.Foreground(lipgloss.Color("1")),
			mcu.Error: status.Foreground(lipgloss.Color("3")),
		},
		header: r.NewStyle().Bold(true),
	}
}

// BeginSuite implements mcu.SuiteStarter.
func (c *Console) BeginSuite(name string) {
	fmt.Fprintf(c.w, "\n%s\n", c.header.Render(fmt.Sprintf("=== %s ===", name)))
}

// Record implements mcu.Sink.
func (c *Console) Record(res mcu.Result) error {
	c.mem.Record(res)
	style, ok := c.styles[res.Status]
	if !ok {
		style = lipgloss.NewStyle()
	}
	_, err := fmt.Fprintf(c.w, "%s %s\n   Details: %s\n", style.Render("["+res.Status.String()+"]"), res.Name, res.Details)
	return err
}

// Finalize prints the final report.
func (c *Console) Finalize() (mcu.Report, error) {
	r, _ := c.mem.Finalize()
	_, err := fmt.Fprintf(c.w, "\n%s\n%s", c.header.Render("=== Final Test Report ==="), r)
	return r, err
}
