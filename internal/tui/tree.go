package tui

import "github.com/starexec/jobview/internal/models"

// node is one job space in the tree pane. Children are fetched the first
// time the node is opened.
type node struct {
	space    models.JobSpace
	parent   *node
	children []*node
	depth    int
	loaded   bool
	loading  bool
	expanded bool
}

type tree struct {
	roots []*node
	rows  []*node // visible nodes, in display order
}

func newNodes(spaces []models.JobSpace, parent *node) []*node {
	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	out := make([]*node, 0, len(spaces))
	for _, s := range spaces {
		out = append(out, &node{space: s, parent: parent, depth: depth})
	}
	return out
}

// find returns the node of the space id, or nil.
func (t *tree) find(id int) *node {
	var walk func([]*node) *node
	walk = func(nodes []*node) *node {
		for _, n := range nodes {
			if n.space.ID == id {
				return n
			}
			if found := walk(n.children); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(t.roots)
}

func (t *tree) flatten() {
	t.rows = t.rows[:0]
	var walk func([]*node)
	walk = func(nodes []*node) {
		for _, n := range nodes {
			t.rows = append(t.rows, n)
			if n.expanded {
				walk(n.children)
			}
		}
	}
	walk(t.roots)
}

func (t *tree) index(n *node) int {
	for i, row := range t.rows {
		if row == n {
			return i
		}
	}
	return -1
}
