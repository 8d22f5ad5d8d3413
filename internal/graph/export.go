package graph

import (
	"errors"
	"fmt"
	"io"

	graphlib "github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// Export converts the live part of the tree into a directed graph keyed by
// coordinate string, with one edge per parent/child pair.
func (g *Graph) Export() (graphlib.Graph[string, string], error) {
	out := graphlib.New(graphlib.StringHash, graphlib.Directed(), graphlib.Acyclic())
	var err error
	g.Walk(func(n *Node) bool {
		if err != nil || !n.Active {
			return false
		}
		id := n.Artifact.String()
		if addErr := out.AddVertex(id,
			graphlib.VertexAttribute("scope", string(n.Scope.OrDefault())),
			graphlib.VertexAttribute("depth", fmt.Sprint(n.Depth)),
		); addErr != nil && !errors.Is(addErr, graphlib.ErrVertexAlreadyExists) {
			err = addErr
			return false
		}
		if parent := g.Node(n.Parent); parent != nil {
			if addErr := out.AddEdge(parent.Artifact.String(), id); addErr != nil && !errors.Is(addErr, graphlib.ErrEdgeAlreadyExists) {
				err = addErr
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("graph: export: %w", err)
	}
	return out, nil
}

// WriteDOT renders the live tree in Graphviz DOT format.
func (g *Graph) WriteDOT(w io.Writer) error {
	out, err := g.Export()
	if err != nil {
		return err
	}
	return draw.DOT(out, w, draw.GraphAttribute("rankdir", "LR"))
}
