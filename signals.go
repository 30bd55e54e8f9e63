package replica

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for clone events.
var (
	SignalCloneStart      = capitan.NewSignal("replica.clone.start", "Clone call beginning")
	SignalCloneComplete   = capitan.NewSignal("replica.clone.complete", "Clone call finished")
	SignalAsyncBatch      = capitan.NewSignal("replica.async.batch", "Pending async batch settled")
	SignalDiagnosticWarn  = capitan.NewSignal("replica.diagnostic.warn", "Clone diagnostic at warning severity")
	SignalDiagnosticError = capitan.NewSignal("replica.diagnostic.error", "Clone diagnostic at error severity")
)

// Keys for typed event data.
var (
	KeyMode      = capitan.NewStringKey("mode")
	KeyTag       = capitan.NewStringKey("tag")
	KeyCode      = capitan.NewStringKey("code")
	KeyMessage   = capitan.NewStringKey("message")
	KeyNodes     = capitan.NewIntKey("nodes")
	KeyBatchSize = capitan.NewIntKey("batch_size")
	KeyFailures  = capitan.NewIntKey("failures")
	KeyDuration  = capitan.NewDurationKey("duration")
	KeyError     = capitan.NewErrorKey("error")
)

// emitCloneStart emits an event when a clone call begins.
func emitCloneStart(ctx context.Context, mode string, tag Tag) {
	capitan.Emit(ctx, SignalCloneStart,
		KeyMode.Field(mode),
		KeyTag.Field(string(tag)),
	)
}

// emitCloneComplete emits an event when a clone call finishes.
func emitCloneComplete(ctx context.Context, mode string, nodes int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyMode.Field(mode),
		KeyNodes.Field(nodes),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalCloneComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalCloneComplete, fields...)
	}
}

// emitAsyncBatch emits an event when a batch of pending results settles.
func emitAsyncBatch(ctx context.Context, size, failures int, duration time.Duration) {
	capitan.Emit(ctx, SignalAsyncBatch,
		KeyBatchSize.Field(size),
		KeyFailures.Field(failures),
		KeyDuration.Field(duration),
	)
}

// emitDiagnostic emits a diagnostic on the signal matching its severity.
func emitDiagnostic(ctx context.Context, d Diagnostic) {
	fields := []capitan.Field{
		KeyCode.Field(string(d.Code)),
		KeyTag.Field(string(d.Tag)),
		KeyMessage.Field(d.Message),
	}
	if d.Err != nil {
		fields = append(fields, KeyError.Field(d.Err))
	}
	if d.Severity == SeverityError {
		capitan.Error(ctx, SignalDiagnosticError, fields...)
		return
	}
	capitan.Emit(ctx, SignalDiagnosticWarn, fields...)
}
