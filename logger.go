package dnsrelay

import (
	"strings"

	syslog "github.com/RackSec/srslog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is the logging surface used throughout the package. Components
// take a Logger via their constructor rather than reaching for a package
// global, so tests can inject a discard logger and callers can wire up
// whatever sink they want.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LogrusLogger is the default Logger, backed by a *logrus.Logger. Each
// call site gets its own log line rather than a shared *logrus.Entry, the
// same pattern the reference logger used with its package-global.
type LogrusLogger struct {
	log *logrus.Logger
}

var _ Logger = (*LogrusLogger)(nil)

// NewLogrusLogger builds a LogrusLogger writing text-formatted lines at
// the given level ("debug", "info", "warning", "error"; invalid values
// fall back to "info").
func NewLogrusLogger(level string) *LogrusLogger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &LogrusLogger{log: l}
}

func (l *LogrusLogger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }
func (l *LogrusLogger) Infof(format string, args ...interface{})    { l.log.Infof(format, args...) }
func (l *LogrusLogger) Warningf(format string, args ...interface{}) { l.log.Warningf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }

// SetOutput redirects the underlying logrus logger's output, e.g. to a
// log file opened by the caller.
func (l *LogrusLogger) SetOutput(w interface {
	Write([]byte) (int, error)
}) {
	l.log.SetOutput(w)
}

// AddSyslogHook attaches a syslog sink to the logger in addition to its
// existing output, so every log line goes to both. network is one of
// "udp", "tcp", "unix"; address is the remote syslog server, or empty for
// the local daemon.
func (l *LogrusLogger) AddSyslogHook(network, address, tag string) error {
	writer, err := syslog.Dial(network, address, syslog.LOG_INFO, tag)
	if err != nil {
		return errors.Wrap(err, "failed to dial syslog")
	}
	l.log.AddHook(&syslogHook{writer: writer})
	return nil
}

type syslogHook struct {
	writer *syslog.Writer
}

func (h *syslogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *syslogHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	line = strings.TrimRight(line, "\n")
	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return h.writer.Err(line)
	case logrus.WarnLevel:
		return h.writer.Warning(line)
	case logrus.DebugLevel, logrus.TraceLevel:
		return h.writer.Debug(line)
	default:
		return h.writer.Info(line)
	}
}

// NopLogger discards everything. Useful in tests that don't care about
// log output.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Debugf(string, ...interface{})   {}
func (NopLogger) Infof(string, ...interface{})    {}
func (NopLogger) Warningf(string, ...interface{}) {}
func (NopLogger) Errorf(string, ...interface{})   {}
