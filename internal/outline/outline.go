// Package outline builds a nested table of contents from the flat block list of a page.
package outline

import (
	"strings"

	"github.com/takak2166/notionblog/internal/models"
)

// UntitledHeading replaces empty heading titles
const UntitledHeading = "Untitled"

// Lookup resolves block refs against the content graph
type Lookup interface {
	Block(ref string) (models.BlockInfo, bool)
}

type heading struct {
	id    string
	title string
	level int
}

// Build returns the heading tree for the given top-level refs in document order.
// Container blocks are inlined at their position, missing refs and non-heading
// blocks are skipped. A heading attaches to the most recent open heading with a
// strictly lower level, so a level jump (h1 -> h3) nests instead of breaking the tree.
func Build(refs []string, lookup Lookup) []models.OutlineNode {
	flat := collect(refs, lookup, nil, map[string]bool{})
	return nest(flat)
}

// collect flattens headings depth-first; seen guards against container cycles
func collect(refs []string, lookup Lookup, out []heading, seen map[string]bool) []heading {
	for _, ref := range refs {
		info, ok := lookup.Block(ref)
		if !ok {
			continue
		}

		if info.Type == models.BlockContainer {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			out = collect(info.Children, lookup, out, seen)
			continue
		}

		level := info.Type.HeadingLevel()
		if level == 0 {
			continue
		}

		title := info.Title
		if strings.TrimSpace(title) == "" {
			title = UntitledHeading
		}
		out = append(out, heading{id: ref, title: title, level: level})
	}
	return out
}

type draft struct {
	heading
	children []*draft
}

func nest(flat []heading) []models.OutlineNode {
	var roots []*draft
	var open []*draft

	for _, h := range flat {
		d := &draft{heading: h}

		for len(open) > 0 && open[len(open)-1].level >= h.level {
			open = open[:len(open)-1]
		}

		if len(open) == 0 {
			roots = append(roots, d)
		} else {
			parent := open[len(open)-1]
			parent.children = append(parent.children, d)
		}
		open = append(open, d)
	}

	return freeze(roots)
}

func freeze(drafts []*draft) []models.OutlineNode {
	nodes := make([]models.OutlineNode, 0, len(drafts))
	for _, d := range drafts {
		node := models.OutlineNode{ID: d.id, Title: d.title, Level: d.level}
		if len(d.children) > 0 {
			node.Children = freeze(d.children)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Flatten returns heading ids in document order
func Flatten(nodes []models.OutlineNode) []string {
	var ids []string
	var walk func([]models.OutlineNode)
	walk = func(ns []models.OutlineNode) {
		for _, n := range ns {
			ids = append(ids, n.ID)
			walk(n.Children)
		}
	}
	walk(nodes)
	return ids
}
