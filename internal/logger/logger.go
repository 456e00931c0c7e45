package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Options controls how the process logger is built.
type Options struct {
	// Dev selects a text handler at debug level. Otherwise JSON at info level.
	Dev bool
	// SentryDSN enables forwarding of error records to Sentry when non-empty.
	SentryDSN string
	// Location is the zone timestamps are rendered in. Nil means UTC.
	Location *time.Location
}

// Log is the process-wide logger, also installed as slog's default by Init.
var Log = slog.Default()

// Init builds the logger writing to stdout and installs it as the default.
// It returns a flush func to run before exit.
func Init(opts Options) func() {
	l, sentryOn := New(os.Stdout, opts)
	Log = l
	slog.SetDefault(l)
	return func() {
		if sentryOn {
			sentry.Flush(2 * time.Second)
		}
	}
}

// New builds a logger writing to w. The bool reports whether Sentry was enabled.
func New(w io.Writer, opts Options) (*slog.Logger, bool) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	hopts := &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: timestampIn(loc),
	}

	var handlers []slog.Handler
	if opts.Dev {
		hopts.Level = slog.LevelDebug
		handlers = append(handlers, slog.NewTextHandler(w, hopts))
	} else {
		handlers = append(handlers, slog.NewJSONHandler(w, hopts))
	}

	sentryOn := false
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			TracesSampleRate: 1.0,
		})
		if err == nil {
			handlers = append(handlers, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
			sentryOn = true
		}
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}
	return slog.New(handler), sentryOn
}

// timestampIn renames the time key to "ts" and renders it in loc.
func timestampIn(loc *time.Location) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.TimeKey {
			return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339Nano))
		}
		return a
	}
}
