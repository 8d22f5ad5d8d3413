// Package graph holds the dependency tree built during collection.
//
// Nodes live in an arena and refer to each other by NodeID. Children are
// owned as index lists; the parent link is a plain index used for trail
// reconstruction and cycle checks.
package graph

import (
	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/version"
)

type NodeID int

// None is the parent of the root.
const None NodeID = -1

// Node is one edge of the tree together with the artifact it leads to.
type Node struct {
	ID       NodeID
	Parent   NodeID
	Depth    int
	Children []NodeID

	// Artifact carries the selected version; it is empty while a hard range
	// is still unresolved.
	Artifact      artifact.Coordinate
	Range         version.Range
	DeclaredScope artifact.Scope
	Scope         artifact.Scope
	Optional      bool
	SystemPath    string
	Exclusions    artifact.Exclusions
	Remotes       []repository.Remote
	// Managed is the dependency management in force for this node's children.
	Managed artifact.ManagedVersions

	Active bool
	// Filtered nodes were rejected by the collection filter; they stay in
	// the tree for trail completeness but are never expanded.
	Filtered bool
	// Unresolved nodes carry a hard range that no available version
	// satisfied.
	Unresolved bool
	Expanded   bool
}

func (n *Node) Key() artifact.Key { return n.Artifact.Key() }

func (n *Node) IsRoot() bool { return n.Parent == None }

func (n *Node) IsChildOfRoot() bool { return n.Depth == 1 }

type Graph struct {
	nodes []*Node
}

// New starts a graph at root.
func New(root Node) *Graph {
	root.ID, root.Parent, root.Depth, root.Active = 0, None, 0, true
	root.Children = nil
	return &Graph{nodes: []*Node{&root}}
}

func (g *Graph) Root() *Node { return g.nodes[0] }

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

func (g *Graph) Len() int { return len(g.nodes) }

// Add attaches n below parent and returns the stored node.
func (g *Graph) Add(parent NodeID, n Node) *Node {
	p := g.Node(parent)
	n.ID = NodeID(len(g.nodes))
	n.Parent = parent
	n.Depth = p.Depth + 1
	n.Children = nil
	stored := &n
	g.nodes = append(g.nodes, stored)
	p.Children = append(p.Children, n.ID)
	return stored
}

// Trail returns the coordinates from the root down to id.
func (g *Graph) Trail(id NodeID) []artifact.Coordinate {
	var rev []artifact.Coordinate
	for n := g.Node(id); n != nil; n = g.Node(n.Parent) {
		rev = append(rev, n.Artifact)
	}
	out := make([]artifact.Coordinate, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

// InTrail reports whether key occurs on the parent chain starting at id.
func (g *Graph) InTrail(id NodeID, key artifact.Key) bool {
	for n := g.Node(id); n != nil; n = g.Node(n.Parent) {
		if n.Key() == key {
			return true
		}
	}
	return false
}

// Disable deactivates id and everything below it.
func (g *Graph) Disable(id NodeID) {
	stack := []NodeID{id}
	for len(stack) > 0 {
		n := g.Node(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		n.Active = false
		stack = append(stack, n.Children...)
	}
}

// Live reports whether id and all of its ancestors are active.
func (g *Graph) Live(id NodeID) bool {
	for n := g.Node(id); n != nil; n = g.Node(n.Parent) {
		if !n.Active {
			return false
		}
	}
	return true
}

// Walk visits nodes depth-first in child order, starting at the root. fn
// returning false skips the node's children.
func (g *Graph) Walk(fn func(n *Node) bool) {
	var visit func(id NodeID)
	visit = func(id NodeID) {
		n := g.Node(id)
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(0)
}
