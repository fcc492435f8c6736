package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/trprince/rss-slicer/app/cfg"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders a channel and its items as an RSS 2.0 document. The name is
// the slice (or source) identifier used for the atom:link self reference.
func (g *Generator) Run(name string, meta Metadata, items []CanonicalItem) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", meta.Title, 4)
	g.writeElement(&buf, "link", meta.Link, 4)
	description := meta.Description
	if description == "" {
		description = fmt.Sprintf("Sliced feed %s", name)
	}
	g.writeElement(&buf, "description", description, 4)

	var selfLink string
	if cfg.Get().BaseUrl != "" {
		selfLink = fmt.Sprintf("%s/slices/%s", cfg.Get().BaseUrl, name)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/slices/%s", cfg.Get().Port, name)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	if meta.FeedPublishedAt != nil {
		g.writeElement(&buf, "pubDate", meta.FeedPublishedAt.Format(time.RFC1123Z), 4)
	}

	lastBuildDate := time.Now().In(time.Local)
	if len(items) > 0 && items[0].PublishedAt != nil {
		lastBuildDate = *items[0].PublishedAt
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("RSS-Slicer/%s", cfg.Get().Version), 4)
	if meta.Language != "" {
		g.writeElement(&buf, "language", meta.Language, 4)
	}
	if meta.Copyright != "" {
		g.writeElement(&buf, "copyright", meta.Copyright, 4)
	}
	if meta.TTL > 0 {
		g.writeElement(&buf, "ttl", fmt.Sprintf("%d", meta.TTL), 4)
	}

	if meta.ImageURL != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", meta.ImageURL, 6)
		g.writeElement(&buf, "title", meta.Title, 6)
		g.writeElement(&buf, "link", meta.Link, 6)
		buf.WriteString("    </image>\n")
	}

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item CanonicalItem) {
	buf.WriteString("    <item>\n")

	if item.GUID != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(item.GUID)))
		xml.EscapeText(buf, []byte(item.GUID))
		buf.WriteString("</guid>\n")
	}

	if item.Title != "" {
		g.writeElement(buf, "title", item.Title, 6)
	}

	if item.Link != "" {
		g.writeElement(buf, "link", item.Link, 6)
	}

	g.writeElement(buf, "description", cmp.Or(item.Description, "No description available"), 6)

	if item.Content != "" && item.Content != item.Description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(item.Content)
		buf.WriteString("]]></content:encoded>\n")
	}

	if item.PublishedAt != nil {
		g.writeElement(buf, "pubDate", item.PublishedAt.Format(time.RFC1123Z), 6)
	}

	if len(item.Authors) > 0 && item.Authors[0] != "" {
		g.writeElement(buf, "author", item.Authors[0], 6)
	}

	for _, category := range item.Categories {
		if category != "" {
			g.writeElement(buf, "category", category, 6)
		}
	}

	// Add enclosure element if present (RSS 2.0 spec: url, length, type are required)
	if item.Enclosure != nil && item.Enclosure.URL != "" && item.Enclosure.Type != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
			html.EscapeString(item.Enclosure.URL),
			item.Enclosure.Length,
			html.EscapeString(item.Enclosure.Type)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}
