package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/canvas"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // document or lookup rejected
	ExitCommandError = 2 // unreadable input, bad flags
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// GetExitCode extracts the exit code from an error.
// Errors that are not ExitErrors map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *ExitError
	if errors.As(err, &e) {
		return e.Code
	}
	return ExitFailure
}

// printer writes either JSON or text to the command's output.
type printer struct {
	format string
	w      io.Writer
	log    *slog.Logger
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *printer {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return &printer{
		format: opts.Format,
		w:      cmd.OutOrStdout(),
		log:    slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})),
	}
}

// emit writes v as indented JSON in json format, otherwise calls text.
func (p *printer) emit(v any, text func(w io.Writer)) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}

func (p *printer) textf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// readDocument loads and validates a canvas document from path.
func readDocument(path string) (*canvas.Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Err: err}
	}
	g, err := canvas.ParseDocument(b)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Err: err}
	}
	return g, nil
}
