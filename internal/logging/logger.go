// Package logging holds the process-wide logrus logger and its line format.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger. It writes to stderr at info level until Init
// is called.
var Logger = logrus.New()

// DefaultSource names the event source when Options.Source is empty.
const DefaultSource = "taski"

// Options configures Init. Zero values keep stderr output at info level.
type Options struct {
	Source     string // event source written on every line
	Level      string // logrus level name
	File       string // rotate into this file instead of Output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Caller     bool      // report the calling function
	Output     io.Writer // used when File is empty; defaults to stderr
}

// Init configures Logger from opts.
func Init(opts Options) error {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("parsing log level: %w", err)
		}
		level = parsed
	}

	source := opts.Source
	if source == "" {
		source = DefaultSource
	}

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
	}

	Logger.SetOutput(out)
	Logger.SetFormatter(&CustomFormatter{SystemName: source})
	Logger.SetLevel(level)
	Logger.SetReportCaller(opts.Caller)
	return nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// CustomFormatter writes one comma-separated line per entry, each tagged
// with a fresh event ID.
type CustomFormatter struct {
	SystemName string
}

// Format implements logrus.Formatter.
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	t := entry.Time.UTC()
	fmt.Fprintf(b, "Date: %s, Time: %s, ", t.Format("2006-01-02"), t.Format("15:04:05"))
	fmt.Fprintf(b, "Event Source: %s, ", f.SystemName)
	fmt.Fprintf(b, "Event Type: %s, ", strings.ToUpper(entry.Level.String()))
	fmt.Fprintf(b, "Event ID: %s, ", uuid.New().String())
	fmt.Fprintf(b, "Message: %s", entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, ", %s=%v", k, entry.Data[k])
	}

	if entry.HasCaller() {
		fmt.Fprintf(b, ", Location: %s:%d in %s",
			filepath.Base(entry.Caller.File), entry.Caller.Line, entry.Caller.Function)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Since returns the elapsed time rounded for log fields.
func Since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Microsecond)
}
