package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/canvas/group"
)

// NewBoundsCommand creates the bounds command.
func NewBoundsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bounds <document.json> <node-id>...",
		Short: "Print the group box enclosing the given nodes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(rootOpts, cmd)
			g, err := readDocument(args[0])
			if err != nil {
				return err
			}
			b := group.BoundsFromMembers(g.Snapshot().Nodes, args[1:])
			return p.emit(b, func(w io.Writer) {
				p.textf("x=%g y=%g width=%g height=%g\n", b.Position.X, b.Position.Y, b.Size.Width, b.Size.Height)
			})
		},
	}
}
