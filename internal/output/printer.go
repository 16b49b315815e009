package output

import (
	"fmt"
	"io"
	"os"
)

// Printer writes results either as JSON or as a table.
type Printer struct {
	out  io.Writer
	json bool
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, asJSON bool) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, json: asJSON}
}

// JSON reports whether the printer emits JSON.
func (p *Printer) JSON() bool { return p.json }

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.out }

// Print renders data. In table mode data must implement TableRenderer,
// otherwise it falls back to JSON.
func (p *Printer) Print(data any) error {
	if !p.json {
		if r, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, r)
		}
	}
	return PrintJSON(p.out, data)
}

// Printf prints a formatted message.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Println prints a message followed by a newline.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}
