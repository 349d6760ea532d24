// A simple telemetry package.
// Log messages go through zerolog; counters are kept in memory and
// dumped to the log on shutdown.
package telemetry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type TelemetryData struct {
	logLock sync.RWMutex
	logger  zerolog.Logger

	counterLock sync.Mutex
	counters    map[string]int
}

// Options configures the process-wide logger
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	Writer io.Writer
}

var data = TelemetryData{
	counters: make(map[string]int),
}

// init is called at program startup time to initialize the logger
func init() {
	Configure(Options{Level: "debug", Format: "console"})
}

var ErrUnknownFormat = errors.New("unknown log format")

// ParseFormat normalizes a log format name, empty means console
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case "", "console", "text":
		return "console", nil
	case "json":
		return "json", nil
	}
	return "", fmt.Errorf("%w [%s]", ErrUnknownFormat, s)
}

// Configure replaces the process-wide logger
func Configure(opt Options) {
	var w io.Writer = os.Stdout
	if opt.Writer != nil {
		w = opt.Writer
	}
	if format, _ := ParseFormat(opt.Format); format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(opt.Level))
	if err != nil || opt.Level == "" {
		level = zerolog.DebugLevel
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()

	data.logLock.Lock()
	data.logger = l
	data.logLock.Unlock()
}

// Logger returns the current logger for callers that want structured fields
func Logger() *zerolog.Logger {
	data.logLock.RLock()
	defer data.logLock.RUnlock()
	l := data.logger
	return &l
}

func Log(format string, args ...any) {
	Logger().Info().Msg(fmt.Sprintf(format, args...))
}

func Trace(format string, args ...any) {
	Logger().Debug().Msg(fmt.Sprintf(format, args...))
}

func Error(err error, format string, args ...any) {
	Logger().Error().Err(err).Msg(fmt.Sprintf(format, args...))
	Increment("errors", 1)
}

// Request logs essential information about an HTTP request
func Request(r *http.Request, format string, args ...any) {
	Logger().Info().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Msg(fmt.Sprintf(format, args...))
}

// Increment increases a count, thread-safe
func Increment(name string, n int) {
	data.counterLock.Lock()
	defer data.counterLock.Unlock()
	data.counters[name] += n
}

func GetCounter(name string) int {
	data.counterLock.Lock()
	defer data.counterLock.Unlock()
	return data.counters[name]
}

func LogCounters() {
	s := make([]string, 0)
	data.counterLock.Lock()
	for k, v := range data.counters {
		s = append(s, fmt.Sprintf("%s=%d", k, v))
	}
	data.counterLock.Unlock()
	if len(s) == 0 {
		s = append(s, "no counters were recorded")
	}
	sort.Strings(s)
	Log(strings.Join(s, ", "))
}
