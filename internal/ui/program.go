package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// ServiceRow is one discovered (sender, name, type) triple.
type ServiceRow struct {
	From string
	Name string
	Type string
}

// NodeRow is one node found over mDNS.
type NodeRow struct {
	Instance string
	Endpoint string
	Version  string
	Services []string
}

// Printer writes styled command output.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintError prints a failure box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.PrintResult(NewFailureResult(title, err, troubleshooting))
}

// PrintServices prints discovery results as aligned columns.
func (p *Printer) PrintServices(rows []ServiceRow) {
	tw := tabwriter.NewWriter(p.out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FROM\tNAME\tTYPE")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.From, r.Name, r.Type)
	}
	_ = tw.Flush()
}

// PrintNodes prints mDNS scan results as aligned columns.
func (p *Printer) PrintNodes(rows []NodeRow) {
	tw := tabwriter.NewWriter(p.out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "INSTANCE\tENDPOINT\tVERSION\tSERVICES")
	for _, r := range rows {
		services := strings.Join(r.Services, ", ")
		if services == "" {
			services = "-"
		}
		version := r.Version
		if version == "" {
			version = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Instance, r.Endpoint, version, services)
	}
	_ = tw.Flush()
}
