package placeholders

import (
	"sort"

	"github.com/google/uuid"
)

// buildTree arranges plugins into ordered forests. Plugins whose parent is
// not part of the input become roots.
func buildTree(plugins []*Plugin) []*Node {
	nodes := make(map[uuid.UUID]*Node, len(plugins))
	for _, p := range plugins {
		nodes[p.ID] = &Node{Plugin: p}
	}
	var roots []*Node
	for _, p := range plugins {
		node := nodes[p.ID]
		if p.ParentID != nil {
			if parent, ok := nodes[*p.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	sortNodes(roots, 0)
	return roots
}

func sortNodes(nodes []*Node, depth int) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Plugin.Position < nodes[j].Plugin.Position
	})
	for _, n := range nodes {
		n.Depth = depth
		sortNodes(n.Children, depth+1)
	}
}

// flatten walks the forest depth first.
func flatten(nodes []*Node) []*Plugin {
	var out []*Plugin
	var walk func([]*Node)
	walk = func(list []*Node) {
		for _, n := range list {
			out = append(out, n.Plugin)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// findNode returns the node for id anywhere in the forest.
func findNode(nodes []*Node, id uuid.UUID) *Node {
	for _, n := range nodes {
		if n.Plugin.ID == id {
			return n
		}
		if found := findNode(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// siblingsOf filters plugins sharing parent, in position order.
func siblingsOf(plugins []*Plugin, parentID *uuid.UUID, exclude uuid.UUID) []*Plugin {
	var out []*Plugin
	for _, p := range plugins {
		if p.ID == exclude || !sameParent(p.ParentID, parentID) {
			continue
		}
		out = append(out, p)
	}
	sortPlugins(out)
	return out
}

// insertAt places plugin among siblings at position, appending when the
// position is nil or out of range.
func insertAt(siblings []*Plugin, plugin *Plugin, position *int) []*Plugin {
	idx := len(siblings)
	if position != nil && *position >= 0 && *position < len(siblings) {
		idx = *position
	}
	out := make([]*Plugin, 0, len(siblings)+1)
	out = append(out, siblings[:idx]...)
	out = append(out, plugin)
	out = append(out, siblings[idx:]...)
	return out
}
