package replica

import "strings"

// LogModeSilent suppresses every diagnostic.
const LogModeSilent = "silent"

type options struct {
	customizer    Customizer
	logger        Logger
	silent        bool
	robust        bool
	ignoreMethods bool
	letThrow      bool
	force         bool
}

// Option configures a clone call.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// activeLogger resolves the logger for a call.
func (o *options) activeLogger() Logger {
	if o.silent {
		return SilentLogger()
	}
	if o.logger != nil {
		return o.logger
	}
	return SignalLogger()
}

// WithCustomizer sets the per-value customizer. Compose several with UseCustomizers.
func WithCustomizer(c Customizer) Option {
	return func(o *options) { o.customizer = c }
}

// WithLogger sets the diagnostic logger. Defaults to SignalLogger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLogMode sets the log mode. "silent" (any case) drops all diagnostics.
func WithLogMode(mode string) Option {
	return func(o *options) { o.silent = strings.EqualFold(mode, LogModeSilent) }
}

// WithRobustTypeChecking selects the probing classifier.
func WithRobustTypeChecking(robust bool) Option {
	return func(o *options) { o.robust = robust }
}

// WithIgnoreCloningMethods disables self-describing clone methods.
func WithIgnoreCloningMethods(ignore bool) Option {
	return func(o *options) { o.ignoreMethods = ignore }
}

// WithLetCustomizerThrow makes hook failures abort the call with a *HookError.
func WithLetCustomizerThrow(throw bool) Option {
	return func(o *options) { o.letThrow = throw }
}

// WithForce makes CloneFully walk past ancestors exposing callable members.
func WithForce(force bool) Option {
	return func(o *options) { o.force = force }
}
