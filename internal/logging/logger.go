package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

const DefaultLevel = "info"

// New builds the run logger writing timestamped, leveled lines to w.
// An empty level means DefaultLevel. Files that are not a terminal get
// logfmt lines instead of the human formatter.
func New(w io.Writer, level string) (*log.Logger, error) {
	if strings.TrimSpace(level) == "" {
		level = DefaultLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Formatter:       formatterFor(w),
	}), nil
}

func formatterFor(w io.Writer) log.Formatter {
	f, ok := w.(*os.File)
	if !ok {
		return log.TextFormatter
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return log.TextFormatter
	}
	return log.LogfmtFormatter
}

// Discard returns a logger that drops everything. Used where a logger is
// required but no output is wanted.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
