package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/canvas"
	"github.com/meikuraledutech/canvas/search"
)

type searchOptions struct {
	query     string
	category  string
	kind      string
	connected string
}

// SearchResult is the JSON shape of search.
type SearchResult struct {
	Nodes       []string `json:"nodes"`
	Highlighted []string `json:"highlighted"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <document.json>",
		Short: "Filter the nodes of a canvas document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(newPrinter(rootOpts, cmd), opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "text to look for in labels, payloads and ids")
	cmd.Flags().StringVar(&opts.category, "category", "", "input|processing|utility")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "node kind")
	cmd.Flags().StringVar(&opts.connected, "connected", "", "true|false: keep only (un)connected nodes")
	return cmd
}

func runSearch(p *printer, opts *searchOptions, path string) error {
	f := search.Filters{
		Query:    opts.query,
		Category: canvas.Category(opts.category),
		Kind:     canvas.NodeKind(opts.kind),
	}
	if opts.connected != "" {
		b, err := strconv.ParseBool(opts.connected)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Err: err}
		}
		f.HasConnections = &b
	}

	g, err := readDocument(path)
	if err != nil {
		return err
	}
	res := search.Apply(g.Snapshot(), f)
	p.log.Debug("search done", "matched", len(res.Nodes), "highlighted", len(res.Highlighted))

	out := SearchResult{Nodes: make([]string, 0, len(res.Nodes)), Highlighted: res.Highlighted}
	for _, n := range res.Nodes {
		out.Nodes = append(out.Nodes, n.ID)
	}
	return p.emit(out, func(w io.Writer) {
		for _, n := range res.Nodes {
			p.textf("%s\t%s\t%s\n", n.ID, n.Kind, canvas.Lookup(n.Kind).Label)
		}
	})
}
