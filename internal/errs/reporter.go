package errs

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Reporter handles a terminal Error: logging it, and optionally rendering
// it for an interactive operator. Mirrors ErrorHandler/set_error_handler
// in original_source/src/madengine/core/errors.py.
type Reporter interface {
	Report(err *Error)
}

// slogReporter is the default Reporter: structured logging only, no
// terminal rendering. Appropriate for non-interactive/CI use.
type slogReporter struct {
	logger *slog.Logger
}

func (r *slogReporter) Report(err *Error) {
	attrs := []any{
		slog.String("category", string(err.Category)),
		slog.Bool("recoverable", err.Recoverable),
	}
	if err.Context.Operation != "" {
		attrs = append(attrs, slog.String("operation", err.Context.Operation))
	}
	if err.Context.Phase != "" {
		attrs = append(attrs, slog.String("phase", err.Context.Phase))
	}
	if err.Context.Component != "" {
		attrs = append(attrs, slog.String("component", err.Context.Component))
	}
	if err.Context.ModelName != "" {
		attrs = append(attrs, slog.String("model", err.Context.ModelName))
	}
	if err.Context.NodeID != "" {
		attrs = append(attrs, slog.String("node_id", err.Context.NodeID))
	}
	if len(err.Suggestions) > 0 {
		attrs = append(attrs, slog.Any("suggestions", err.Suggestions))
	}
	if err.Cause != nil {
		attrs = append(attrs, slog.String("cause", err.Cause.Error()))
	}
	r.logger.Error(err.Message, attrs...)
}

// panelReporter renders a terminal panel for interactive CLI sessions, in
// addition to structured logging. There is no Rich-equivalent in the Go
// ecosystem dependencies available here, so the panel is a plain
// bordered text block to stderr.
type panelReporter struct {
	inner *slogReporter
}

var categoryGlyph = map[Category]string{
	CategoryValidation:     "!",
	CategoryConnection:     "x",
	CategoryAuthentication: "x",
	CategoryRuntime:        "x",
	CategoryBuild:          "x",
	CategoryDiscovery:      "?",
	CategoryOrchestration:  "x",
	CategoryRunner:         "x",
	CategoryConfiguration:  "!",
	CategoryTimeout:        "~",
}

func (r *panelReporter) Report(err *Error) {
	r.inner.Report(err)

	glyph := categoryGlyph[err.Category]
	fmt.Fprintf(os.Stderr, "\n[%s] %s: %s\n", glyph, err.Category, err.Message)
	if err.Context.Operation != "" {
		fmt.Fprintf(os.Stderr, "  operation: %s\n", err.Context.Operation)
	}
	if err.Cause != nil {
		fmt.Fprintf(os.Stderr, "  cause: %v\n", err.Cause)
	}
	if !err.Recoverable {
		fmt.Fprintln(os.Stderr, "  this error is not recoverable")
	}
	for _, s := range err.Suggestions {
		fmt.Fprintf(os.Stderr, "  suggestion: %s\n", s)
	}
	fmt.Fprintln(os.Stderr)
}

var (
	reporterMu       sync.RWMutex
	currentReporter  Reporter = &slogReporter{logger: slog.Default()}
)

// SetReporter replaces the global reporter. Callers typically install a
// panelReporter for interactive CLI invocations and leave the default
// slogReporter for non-interactive runs.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	currentReporter = r
}

// NewPanelReporter returns an interactive terminal Reporter backed by the
// given logger.
func NewPanelReporter(logger *slog.Logger) Reporter {
	return &panelReporter{inner: &slogReporter{logger: logger}}
}

// Report dispatches err to the currently installed global Reporter.
func Report(err *Error) {
	reporterMu.RLock()
	r := currentReporter
	reporterMu.RUnlock()
	r.Report(err)
}
