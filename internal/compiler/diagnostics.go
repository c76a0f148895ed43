package compiler

import (
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "askgraph/internal/compiler"

// Diagnostics carries logging and tracing for one compiler or scheduler.
// It is passed in explicitly; nothing in this package reads global toggles.
type Diagnostics struct {
	Logger  *log.Logger
	Verbose bool
	Tracer  trace.Tracer
}

// NewDiagnostics builds diagnostics logging to the standard writer with prefix.
func NewDiagnostics(prefix string, verbose bool) Diagnostics {
	return Diagnostics{
		Logger:  log.New(log.Writer(), prefix, log.LstdFlags),
		Verbose: verbose,
		Tracer:  otel.Tracer(tracerName),
	}
}

func (d Diagnostics) withDefaults(prefix string) Diagnostics {
	if d.Logger == nil {
		d.Logger = log.New(log.Writer(), prefix, log.LstdFlags)
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer(tracerName)
	}
	return d
}

func (d Diagnostics) printf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

func (d Diagnostics) debugf(format string, args ...any) {
	if d.Verbose {
		d.printf(format, args...)
	}
}

// block logs a delimited multi-line section in verbose mode.
func (d Diagnostics) block(title, body string) {
	if !d.Verbose || d.Logger == nil {
		return
	}
	bar := strings.Repeat("=", 40)
	d.Logger.Printf("%s\n%s\n%s\n%s", bar, title, strings.TrimRight(body, "\n"), bar)
}
