package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tec-more/odoo-plugins/internal/outline"
	"github.com/tec-more/odoo-plugins/internal/style"
)

// Output formats for commands that print trees or records.
const (
	outputAuto = "auto"
	outputTree = "tree"
	outputJSON = "json"
)

type parseOpts struct {
	Hint   string
	Output string
}

func newParseCmd(a *app) *cobra.Command {
	var opts parseOpts
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse an outline and print the node tree",
		Long: `Parse a requirement outline without importing it.

The format is taken from the file extension (.txt, .md, .json, .yaml)
unless --hint is given. Output is a tree on a terminal and JSON otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runParse(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Hint, "hint", "", "format hint overriding the extension (txt, md, json, yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputAuto, "output format (auto, tree, json)")
	return cmd
}

func (a *app) runParse(out io.Writer, path string, opts parseOpts) error {
	nodes, err := a.parseFile(path, opts.Hint)
	if err != nil {
		return err
	}

	switch resolveOutput(out, opts.Output) {
	case outputJSON:
		return writeJSON(out, nodes)
	case outputTree:
		fmt.Fprintln(out, renderTree(filepath.Base(path), nodes))
		fmt.Fprintf(out, "\n%s %d nodes\n", style.Dim.Render("Total:"), outline.Count(nodes))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want auto, tree or json)", opts.Output)
	}
}

// parseFile reads path from the app filesystem and parses it with the
// configured parser.
func (a *app) parseFile(path, hint string) ([]*outline.Node, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	format := outline.FormatFromExt(filepath.Ext(path))
	if hint != "" {
		format = outline.FormatFromExt(hint)
	}
	return a.parser().ParseBytes(data, string(format))
}

// resolveOutput turns "auto" into tree for terminals and JSON otherwise.
func resolveOutput(out io.Writer, output string) string {
	if output != outputAuto && output != "" {
		return output
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return outputTree
	}
	return outputJSON
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTree draws nodes under a root label with rounded branches.
func renderTree(label string, nodes []*outline.Node) string {
	t := tree.Root(style.Bold.Render(label)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(style.Subtle)
	for _, n := range nodes {
		t.Child(nodeTree(n))
	}
	return t.String()
}

func nodeTree(n *outline.Node) any {
	label := nodeLabel(n)
	if len(n.Children) == 0 && len(n.Tasks) == 0 {
		return label
	}
	t := tree.Root(label)
	for _, c := range n.Children {
		t.Child(nodeTree(c))
	}
	for _, task := range n.Tasks {
		t.Child(nodeLabel(task))
	}
	return t
}

func nodeLabel(n *outline.Node) string {
	name := n.Name
	var meta string
	switch {
	case n.IsTask():
		name = style.Task.Render("[task] " + n.Name)
		if n.EstimatedHours > 0 {
			meta = fmt.Sprintf(" p%d, %gh", n.Priority, n.EstimatedHours)
		} else {
			meta = fmt.Sprintf(" p%d", n.Priority)
		}
	case n.IsLeaf():
		if n.EstimatedStoryPoints > 0 {
			meta = fmt.Sprintf(" p%d, %g pts", n.Priority, n.EstimatedStoryPoints)
		} else {
			meta = fmt.Sprintf(" p%d", n.Priority)
		}
	default:
		name = style.Bold.Render(n.Name)
		meta = fmt.Sprintf(" p%d", n.Priority)
	}
	return name + style.Dim.Render(meta)
}
