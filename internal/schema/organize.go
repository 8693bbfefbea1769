package schema

import (
	"fmt"
	"strings"
)

type rowTree struct {
	row      paramRow
	children []*rowTree
}

// linkRows threads flat rows into trees by parent id and returns the roots in
// input order. A row whose parent id is absent or zero is a root; rows that
// point at a missing parent are dropped, as are rows caught in a parent cycle.
func linkRows(rows []paramRow) []*rowTree {
	byID := make(map[int]*rowTree, len(rows))
	trees := make([]*rowTree, len(rows))
	for i, r := range rows {
		t := &rowTree{row: r}
		trees[i] = t
		if r.ID != 0 {
			byID[r.ID] = t
		}
	}
	var roots []*rowTree
	for _, t := range trees {
		pid := t.row.ParentParamID
		if pid == nil || *pid == 0 {
			roots = append(roots, t)
			continue
		}
		if parent, ok := byID[*pid]; ok && parent != t {
			parent.children = append(parent.children, t)
		}
	}
	return roots
}

func (t *rowTree) node() ParamNode {
	n := t.row.node()
	if len(t.children) > 0 {
		n.Children = make([]ParamNode, 0, len(t.children))
		for _, c := range t.children {
			n.Children = append(n.Children, c.node())
		}
	}
	return n
}

// organizeRequestRows groups flat request rows into per-location trees.
func organizeRequestRows(rows []paramRow) map[Location][]ParamNode {
	out := map[Location][]ParamNode{}
	for _, root := range linkRows(rows) {
		loc := Location(strings.ToLower(strings.TrimSpace(root.row.Location)))
		out[loc] = append(out[loc], root.node())
	}
	return out
}

// organizeResponseRows groups flat response rows into per-status trees.
func organizeResponseRows(rows []paramRow) (map[int][]ParamNode, error) {
	out := map[int][]ParamNode{}
	for _, root := range linkRows(rows) {
		code, err := parseStatus(string(root.row.StatusCode))
		if err != nil {
			return nil, fmt.Errorf("response param %q: %w", root.row.Name, err)
		}
		out[code] = append(out[code], root.node())
	}
	return out, nil
}
