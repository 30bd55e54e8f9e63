package replica

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Severity is the level of a diagnostic.
type Severity string

// Diagnostic severities.
const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// DiagnosticCode identifies what a diagnostic reports.
type DiagnosticCode string

// Diagnostic codes.
const (
	DiagUnsupported     DiagnosticCode = "unsupported"
	DiagDisallowed      DiagnosticCode = "disallowed"
	DiagCallable        DiagnosticCode = "callable"
	DiagAccessor        DiagnosticCode = "accessor"
	DiagErrorFamily     DiagnosticCode = "error-family"
	DiagNotIterable     DiagnosticCode = "not-iterable"
	DiagHookError       DiagnosticCode = "hook-error"
	DiagMalformedResult DiagnosticCode = "malformed-result"
	DiagAsyncOnly       DiagnosticCode = "async-only"
	DiagAsyncRejected   DiagnosticCode = "async-rejected"
	DiagAssignFailed    DiagnosticCode = "assign-failed"
)

// Diagnostic is one message emitted while cloning.
type Diagnostic struct {
	Severity Severity
	Code     DiagnosticCode
	Tag      Tag
	Message  string
	Err      error
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Code))
	if d.Tag != "" {
		b.WriteString(" [")
		b.WriteString(string(d.Tag))
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	if d.Err != nil {
		b.WriteString(": ")
		b.WriteString(d.Err.Error())
	}
	return b.String()
}

// Logger receives diagnostics at two severities.
type Logger interface {
	Warn(d Diagnostic)
	Error(d Diagnostic)
}

// LogFunc adapts a single-severity function to Logger.
type LogFunc func(d Diagnostic)

// Warn calls f.
func (f LogFunc) Warn(d Diagnostic) { f(d) }

// Error calls f.
func (f LogFunc) Error(d Diagnostic) { f(d) }

type silentLogger struct{}

func (silentLogger) Warn(Diagnostic)  {}
func (silentLogger) Error(Diagnostic) {}

// SilentLogger returns a logger that drops everything.
func SilentLogger() Logger { return silentLogger{} }

type writerLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// WriterLogger returns a logger printing one line per diagnostic to w.
func WriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

func (l *writerLogger) Warn(d Diagnostic)  { l.write("warn", d) }
func (l *writerLogger) Error(d Diagnostic) { l.write("error", d) }

func (l *writerLogger) write(level string, d Diagnostic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "replica %s: %s\n", level, d)
}

// signalLogger routes diagnostics to capitan signals.
type signalLogger struct {
	ctx context.Context
}

// SignalLogger returns the default logger, which emits SignalDiagnosticWarn
// and SignalDiagnosticError.
func SignalLogger() Logger { return signalLogger{ctx: context.Background()} }

func (l signalLogger) Warn(d Diagnostic)  { emitDiagnostic(l.ctx, d) }
func (l signalLogger) Error(d Diagnostic) { emitDiagnostic(l.ctx, d) }

// Recorder collects diagnostics in memory. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Warn records d.
func (r *Recorder) Warn(d Diagnostic) { r.add(d) }

// Error records d.
func (r *Recorder) Error(d Diagnostic) { r.add(d) }

func (r *Recorder) add(d Diagnostic) {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
}

// Diagnostics returns a copy of everything recorded so far.
func (r *Recorder) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.diags...)
}

// Has reports whether a diagnostic with code was recorded.
func (r *Recorder) Has(code DiagnosticCode) bool {
	for _, d := range r.Diagnostics() {
		if d.Code == code {
			return true
		}
	}
	return false
}

// diagnostics stamps severity and forwards to the configured logger.
type diagnostics struct {
	logger Logger
}

func (d diagnostics) warn(code DiagnosticCode, tag Tag, msg string, err error) {
	d.logger.Warn(Diagnostic{Severity: SeverityWarn, Code: code, Tag: tag, Message: msg, Err: err})
}

func (d diagnostics) error(code DiagnosticCode, tag Tag, msg string, err error) {
	d.logger.Error(Diagnostic{Severity: SeverityError, Code: code, Tag: tag, Message: msg, Err: err})
}
