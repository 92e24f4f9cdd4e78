// Package tree turns a session's flat file list into a hierarchy.
package tree

import (
	"strings"

	"github.com/sprite-ai/revify/internal/model"
)

// Node is a file or directory with its immediate children.
type Node struct {
	model.FileNode
	Children []*Node
}

// Build links nodes to their parents by path. A node whose parent path is
// not in the input becomes a root. Roots and children keep input order.
func Build(nodes []model.FileNode) []*Node {
	byPath := make(map[string]*Node, len(nodes))
	all := make([]*Node, len(nodes))
	for i, n := range nodes {
		all[i] = &Node{FileNode: n}
		if _, dup := byPath[n.Path]; !dup {
			byPath[n.Path] = all[i]
		}
	}

	var roots []*Node
	for _, n := range all {
		parent, ok := byPath[parentPath(n.Path)]
		if !ok || parent == n {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots
}

func parentPath(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Flatten returns every path in depth-first order.
func Flatten(roots []*Node) []string {
	var out []string
	var walk func([]*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			out = append(out, n.Path)
			walk(n.Children)
		}
	}
	walk(roots)
	return out
}

// Row is one visible line of a rendered tree.
type Row struct {
	Node  *Node
	Depth int
}

// Visible lists the rows shown when only directories in expanded are open.
func Visible(roots []*Node, expanded map[string]bool) []Row {
	var rows []Row
	var walk func([]*Node, int)
	walk = func(ns []*Node, depth int) {
		for _, n := range ns {
			rows = append(rows, Row{Node: n, Depth: depth})
			if n.IsDirectory && expanded[n.Path] {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(roots, 0)
	return rows
}

// Find returns the node at path, or nil.
func Find(roots []*Node, path string) *Node {
	for _, n := range roots {
		if n.Path == path {
			return n
		}
		if found := Find(n.Children, path); found != nil {
			return found
		}
	}
	return nil
}
