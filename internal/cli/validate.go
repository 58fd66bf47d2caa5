package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// ValidationResult is the JSON shape of validate.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Nodes       int    `json:"nodes"`
	Connections int    `json:"connections"`
	Error       string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <document.json>",
		Short: "Check a canvas document against the graph rules",
		Long: `Parse a canvas document and check every graph rule: unique ids,
typed payloads, connections between declared and compatible ports,
and no cycles.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(newPrinter(rootOpts, cmd), args[0])
		},
	}
}

func runValidate(p *printer, path string) error {
	p.log.Debug("validating document", "path", path)

	g, err := readDocument(path)
	if err != nil {
		if GetExitCode(err) == ExitCommandError {
			return err
		}
		res := ValidationResult{Error: err.Error()}
		if perr := p.emit(res, func(w io.Writer) { p.textf("✗ %s\n", err) }); perr != nil {
			return perr
		}
		return err
	}

	state := g.Snapshot()
	res := ValidationResult{Valid: true, Nodes: len(state.Nodes), Connections: len(state.Connections)}
	return p.emit(res, func(w io.Writer) {
		p.textf("✓ valid: %d nodes, %d connections\n", res.Nodes, res.Connections)
	})
}
