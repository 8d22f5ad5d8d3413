package graph

import (
	"fmt"
	"io"
	"strings"
)

// Render writes the tree in the usual "+- / \-" layout. Inactive nodes are
// shown with the reason they were dropped.
func (g *Graph) Render(w io.Writer) error {
	root := g.Root()
	if _, err := fmt.Fprintln(w, root.Artifact.String()); err != nil {
		return err
	}
	return g.renderChildren(w, root, "")
}

func (g *Graph) renderChildren(w io.Writer, n *Node, prefix string) error {
	for i, id := range n.Children {
		child := g.Node(id)
		last := i == len(n.Children)-1
		branch, indent := "+- ", "|  "
		if last {
			branch, indent = `\- `, "   "
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, branch, describe(child)); err != nil {
			return err
		}
		if err := g.renderChildren(w, child, prefix+indent); err != nil {
			return err
		}
	}
	return nil
}

func describe(n *Node) string {
	var b strings.Builder
	b.WriteString(n.Artifact.String())
	if n.Artifact.Version == "" {
		b.WriteString(n.Range.String())
	}
	b.WriteString(" (")
	b.WriteString(string(n.Scope.OrDefault()))
	if n.Optional {
		b.WriteString(", optional")
	}
	b.WriteString(")")
	switch {
	case n.Filtered:
		b.WriteString(" filtered")
	case !n.Active:
		b.WriteString(" omitted")
	}
	return b.String()
}
