package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/canvas/chain"
	"github.com/meikuraledutech/canvas/sqlite"
)

type versionsOptions struct {
	sqlitePath string
	chainID    string
	latest     bool
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &versionsOptions{}
	cmd := &cobra.Command{
		Use:   "versions [artifacts.json]",
		Short: "List the derived versions of a render chain",
		Long: `List the version numbers of a render chain. Artifacts are read from a
JSON array file, or from a SQLite database with --sqlite and --chain.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arts, err := loadArtifacts(cmd.Context(), opts, args)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Err: err}
			}
			return runVersions(newPrinter(rootOpts, cmd), opts, arts)
		},
	}
	cmd.Flags().StringVar(&opts.sqlitePath, "sqlite", "", "SQLite database to read artifacts from")
	cmd.Flags().StringVar(&opts.chainID, "chain", "", "chain id (with --sqlite)")
	cmd.Flags().BoolVar(&opts.latest, "latest", false, "print only the latest version")
	return cmd
}

func loadArtifacts(ctx context.Context, opts *versionsOptions, args []string) ([]chain.Artifact, error) {
	switch {
	case len(args) == 1 && opts.sqlitePath != "":
		return nil, errors.New("give either a file or --sqlite, not both")
	case len(args) == 1:
		b, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		var arts []chain.Artifact
		if err := json.Unmarshal(b, &arts); err != nil {
			return nil, fmt.Errorf("decode %s: %w", args[0], err)
		}
		return arts, nil
	case opts.sqlitePath != "":
		if opts.chainID == "" {
			return nil, errors.New("--chain is required with --sqlite")
		}
		s, err := sqlite.OpenReadOnly(opts.sqlitePath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.ListArtifacts(ctx, opts.chainID)
	default:
		return nil, errors.New("an artifacts file or --sqlite is required")
	}
}

func runVersions(p *printer, opts *versionsOptions, arts []chain.Artifact) error {
	if opts.latest {
		a, ok := chain.Latest(arts)
		if !ok {
			return &ExitError{Code: ExitFailure, Err: errors.New("chain has no completed artifact")}
		}
		n, _ := chain.VersionOf(a, arts)
		v := chain.Version{Number: n, Artifact: a}
		return p.emit(v, func(w io.Writer) { printVersion(p, v) })
	}

	versions := chain.Versions(arts)
	return p.emit(versions, func(w io.Writer) {
		for _, v := range versions {
			printVersion(p, v)
		}
		if a, ok := chain.InFlight(arts); ok {
			p.textf("in flight: %s (position %d, %s)\n", a.ID, a.ChainPosition, a.Status)
		}
	})
}

func printVersion(p *printer, v chain.Version) {
	p.textf("v%d\t%s\tposition %d\t%s\n", v.Number, v.Artifact.ID, v.Artifact.ChainPosition, v.Artifact.OutputRef)
}
