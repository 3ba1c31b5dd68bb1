package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// BlockType classifies a block of the content graph
type BlockType string

const (
	BlockHeading1  BlockType = "heading-1"
	BlockHeading2  BlockType = "heading-2"
	BlockHeading3  BlockType = "heading-3"
	BlockContainer BlockType = "container" // transparent grouping, children are inlined
	BlockOther     BlockType = "other"
)

// HeadingLevel returns 1-3 for heading types and 0 for everything else
func (t BlockType) HeadingLevel() int {
	switch t {
	case BlockHeading1:
		return 1
	case BlockHeading2:
		return 2
	case BlockHeading3:
		return 3
	default:
		return 0
	}
}

// BlockInfo is what the content graph knows about a single block
type BlockInfo struct {
	Type     BlockType
	Title    string   // plain text, rich-text formatting already stripped
	Children []string // child refs, only meaningful for containers
}

// Graph is an in-memory content graph keyed by block ref
type Graph map[string]BlockInfo

// Block looks up a block by ref
func (g Graph) Block(ref string) (BlockInfo, bool) {
	info, ok := g[ref]
	return info, ok
}

// OutlineNode is a heading in the table of contents tree
type OutlineNode struct {
	ID       string        `json:"id" msgpack:"id"`
	Title    string        `json:"title" msgpack:"title"`
	Level    int           `json:"level" msgpack:"level"`
	Children []OutlineNode `json:"children,omitempty" msgpack:"children,omitempty"`
}

// PageMarker is either a page number or an ellipsis placeholder
type PageMarker struct {
	Page     int
	Ellipsis bool
}

// Ellipsis marks a collapsed run of pages
var Ellipsis = PageMarker{Ellipsis: true}

const ellipsisText = "ellipsis"

// PageNumber returns a marker for page n
func PageNumber(n int) PageMarker {
	return PageMarker{Page: n}
}

func (m PageMarker) String() string {
	if m.Ellipsis {
		return "..."
	}
	return strconv.Itoa(m.Page)
}

// MarshalJSON encodes numbers as JSON numbers and the ellipsis as "ellipsis"
func (m PageMarker) MarshalJSON() ([]byte, error) {
	if m.Ellipsis {
		return json.Marshal(ellipsisText)
	}
	return json.Marshal(m.Page)
}

func (m *PageMarker) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != ellipsisText {
			return fmt.Errorf("unknown page marker %q", s)
		}
		*m = Ellipsis
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to parse page marker: %w", err)
	}
	*m = PageNumber(n)
	return nil
}

// Post represents a published blog post from the posts database
type Post struct {
	ID          string    `json:"id" msgpack:"id"`
	Slug        string    `json:"slug" msgpack:"slug"`
	Title       string    `json:"title" msgpack:"title"`
	Description string    `json:"description,omitempty" msgpack:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty" msgpack:"tags,omitempty"`
	Date        time.Time `json:"date" msgpack:"date"`
	Cover       string    `json:"cover,omitempty" msgpack:"cover,omitempty"`
	LastEdited  time.Time `json:"lastEdited" msgpack:"last_edited"`
}

// PostRecord is a post together with its exported outline
type PostRecord struct {
	Post    Post          `json:"post" msgpack:"post"`
	Outline []OutlineNode `json:"outline" msgpack:"outline"`
}
