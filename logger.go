package peerchat

// Logger is the logging seam used by every peerchat service.
// Binaries plug in adapters/logging.Zerolog; tests usually pass NoopLogger.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Info logs a message without formatting.
	Info(message string)
}

// NoopLogger discards everything.
type NoopLogger struct{}

// Debugf implements Logger.
func (l *NoopLogger) Debugf(_ string, _ ...interface{}) {}

// Infof implements Logger.
func (l *NoopLogger) Infof(_ string, _ ...interface{}) {}

// Warnf implements Logger.
func (l *NoopLogger) Warnf(_ string, _ ...interface{}) {}

// Errorf implements Logger.
func (l *NoopLogger) Errorf(_ string, _ ...interface{}) {}

// Info implements Logger.
func (l *NoopLogger) Info(_ string) {}

// componentLogger prefixes every line with the owning component so that the
// store, gateway and history service can share one underlying logger.
type componentLogger struct {
	name string
	next Logger
}

func withComponent(name string, next Logger) Logger {
	if next == nil {
		next = &NoopLogger{}
	}
	return &componentLogger{name: name, next: next}
}

func (l *componentLogger) Debugf(format string, args ...interface{}) {
	l.next.Debugf(l.name+": "+format, args...)
}

func (l *componentLogger) Infof(format string, args ...interface{}) {
	l.next.Infof(l.name+": "+format, args...)
}

func (l *componentLogger) Warnf(format string, args ...interface{}) {
	l.next.Warnf(l.name+": "+format, args...)
}

func (l *componentLogger) Errorf(format string, args ...interface{}) {
	l.next.Errorf(l.name+": "+format, args...)
}

func (l *componentLogger) Info(message string) {
	l.next.Info(l.name + ": " + message)
}
