package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/canvas/internal/config"
	"github.com/meikuraledutech/canvas/shortcut"
)

type keysOptions struct {
	file  string
	chord string
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &keysOptions{}
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Show the shortcut table or resolve one chord",
		Long: `Print the shortcut table, with overrides from --file (or the
shortcuts_file setting) merged over the defaults. With --chord, print
only the action bound to that chord.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.file == "" {
				opts.file = config.New().GetString("shortcuts_file")
			}
			return runKeys(newPrinter(rootOpts, cmd), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML file with binding overrides")
	cmd.Flags().StringVar(&opts.chord, "chord", "", `chord to resolve, e.g. "ctrl+shift+v"`)
	return cmd
}

func runKeys(p *printer, opts *keysOptions) error {
	table, err := shortcut.LoadFile(opts.file)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Err: err}
	}
	p.log.Debug("shortcut table loaded", "bindings", len(table), "file", opts.file)

	if opts.chord != "" {
		ev, err := shortcut.ParseChord(opts.chord)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Err: err}
		}
		action, ok := table.Match(ev)
		if !ok {
			return &ExitError{Code: ExitFailure, Err: fmt.Errorf("no binding for %q", opts.chord)}
		}
		return p.emit(map[string]string{"chord": opts.chord, "action": string(action)}, func(w io.Writer) {
			p.textf("%s\n", action)
		})
	}

	if len(table) == 0 {
		return &ExitError{Code: ExitFailure, Err: errors.New("empty shortcut table")}
	}
	return p.emit(table, func(w io.Writer) {
		for _, b := range table {
			p.textf("%-16s %-18s %s\n", b.Chord(), b.Action, b.Description)
		}
	})
}
