package inference

import (
	"bytes"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the logging sink of a Client. Both *logrus.Logger and
// *logrus.Entry satisfy it.
type Logger interface {
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NewLogger returns the default sink: a private logrus logger whose entries
// carry component=firefox-ml.
func NewLogger(verbose bool) *logrus.Entry {
	l := logrus.New()
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l.WithField("component", "firefox-ml")
}

// NullLogger returns a sink that discards everything.
func NullLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// levelWriter is implemented by logrus loggers and entries.
type levelWriter interface {
	WriterLevel(logrus.Level) *io.PipeWriter
}

// outputWriter returns a writer that logs every line written to it, for the
// browser's stdout and stderr.
func outputWriter(l Logger) io.WriteCloser {
	if lw, ok := l.(levelWriter); ok {
		return lw.WriterLevel(logrus.InfoLevel)
	}
	return &lineWriter{logf: l.Infof}
}

// lineWriter calls logf once per complete line.
type lineWriter struct {
	logf func(string, ...interface{})

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			return len(p), nil
		}
		line := string(w.buf.Next(i + 1))
		w.logf("%s", line[:len(line)-1])
	}
}

// Close flushes a trailing partial line.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.logf("%s", w.buf.String())
		w.buf.Reset()
	}
	return nil
}
