// Package parser turns Notion API objects into the blog's content model.
package parser

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/jomei/notionapi"

	"github.com/takak2166/notionblog/internal/models"
)

// Property names of the posts database
const (
	PropTitle       = "Name"
	PropSlug        = "Slug"
	PropDate        = "Date"
	PropTags        = "Tags"
	PropDescription = "Description"
	PropPublished   = "Published"
)

// Classify maps a Notion block onto the content graph.
// Column lists, columns and synced blocks only group other blocks, so they are containers.
func Classify(block notionapi.Block) models.BlockInfo {
	switch b := block.(type) {
	case *notionapi.Heading1Block:
		return models.BlockInfo{Type: models.BlockHeading1, Title: PlainText(b.Heading1.RichText)}
	case *notionapi.Heading2Block:
		return models.BlockInfo{Type: models.BlockHeading2, Title: PlainText(b.Heading2.RichText)}
	case *notionapi.Heading3Block:
		return models.BlockInfo{Type: models.BlockHeading3, Title: PlainText(b.Heading3.RichText)}
	case *notionapi.ColumnListBlock, *notionapi.ColumnBlock, *notionapi.SyncedBlock:
		return models.BlockInfo{Type: models.BlockContainer}
	default:
		return models.BlockInfo{Type: models.BlockOther}
	}
}

// PlainText concatenates rich text segments, stripping formatting
func PlainText(richText []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range richText {
		if rt.PlainText != "" {
			sb.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			sb.WriteString(rt.Text.Content)
		}
	}
	return sb.String()
}

// PropertyText extracts plain text from title and rich text properties
func PropertyText(p notionapi.Property) string {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return PlainText(v.Title)
	case notionapi.TitleProperty:
		return PlainText(v.Title)
	case *notionapi.RichTextProperty:
		return PlainText(v.RichText)
	case notionapi.RichTextProperty:
		return PlainText(v.RichText)
	default:
		return ""
	}
}

func propertyDate(p notionapi.Property) (time.Time, bool) {
	var obj *notionapi.DateObject
	switch v := p.(type) {
	case *notionapi.DateProperty:
		obj = v.Date
	case notionapi.DateProperty:
		obj = v.Date
	}
	if obj == nil || obj.Start == nil {
		return time.Time{}, false
	}
	return time.Time(*obj.Start), true
}

func propertyTags(p notionapi.Property) []string {
	var options []notionapi.Option
	switch v := p.(type) {
	case *notionapi.MultiSelectProperty:
		options = v.MultiSelect
	case notionapi.MultiSelectProperty:
		options = v.MultiSelect
	}
	var tags []string
	for _, o := range options {
		if name := strings.TrimSpace(o.Name); name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}

// PostFromPage reads a post from a row of the posts database.
// The slug falls back to a slug of the title and the date to the creation time.
func PostFromPage(page *notionapi.Page) models.Post {
	post := models.Post{
		ID:         string(page.ID),
		LastEdited: page.LastEditedTime,
		Date:       page.CreatedTime,
	}

	post.Title = strings.TrimSpace(titleOf(page.Properties))

	post.Slug = strings.TrimSpace(PropertyText(page.Properties[PropSlug]))
	if post.Slug == "" {
		post.Slug = slug.Make(post.Title)
	}
	if post.Slug == "" {
		post.Slug = strings.ReplaceAll(post.ID, "-", "")
	}

	if d, ok := propertyDate(page.Properties[PropDate]); ok {
		post.Date = d
	}
	post.Tags = propertyTags(page.Properties[PropTags])
	post.Description = strings.TrimSpace(PropertyText(page.Properties[PropDescription]))
	post.Cover = CoverURL(page)

	return post
}

// titleOf prefers the Name column; databases with a renamed title column still have exactly one
func titleOf(props notionapi.Properties) string {
	if t := PropertyText(props[PropTitle]); t != "" {
		return t
	}
	for _, p := range props {
		switch p.(type) {
		case *notionapi.TitleProperty, notionapi.TitleProperty:
			return PropertyText(p)
		}
	}
	return ""
}

// CoverURL returns the page cover image URL, hosted or external
func CoverURL(page *notionapi.Page) string {
	if page.Cover == nil {
		return ""
	}
	if page.Cover.File != nil && page.Cover.File.URL != "" {
		return page.Cover.File.URL
	}
	if page.Cover.External != nil {
		return page.Cover.External.URL
	}
	return ""
}
