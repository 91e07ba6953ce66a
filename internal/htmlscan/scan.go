// Package htmlscan extracts resource tags from HTML assets with a streaming
// tokenizer.
package htmlscan

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Tag is one start tag with its attributes lower-cased by name.
type Tag struct {
	Name  string
	Attrs map[string]string
}

// Attr returns the attribute value.
func (t Tag) Attr(name string) string {
	return t.Attrs[name]
}

// Rel reports whether the tag's rel attribute contains value.
func (t Tag) Rel(value string) bool {
	for _, r := range strings.Fields(strings.ToLower(t.Attrs["rel"])) {
		if r == value {
			return true
		}
	}
	return false
}

var wanted = map[string]bool{"script": true, "link": true}

// Scan returns every <script> and <link> start tag in document order.
// Malformed markup stops the scan and returns the tags seen so far.
func Scan(content []byte) ([]Tag, error) {
	z := html.NewTokenizer(bytes.NewReader(content))
	var tags []Tag
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return tags, err
			}
			return tags, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !wanted[string(name)] {
				continue
			}
			tag := Tag{Name: string(name), Attrs: make(map[string]string)}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				tag.Attrs[string(key)] = string(val)
			}
			tags = append(tags, tag)
		}
	}
}

// ScriptSources returns the src of every external script.
func ScriptSources(tags []Tag) []string {
	var srcs []string
	for _, t := range tags {
		if t.Name == "script" && t.Attr("src") != "" {
			srcs = append(srcs, t.Attr("src"))
		}
	}
	return srcs
}

// Stylesheets returns the href of every stylesheet link.
func Stylesheets(tags []Tag) []string {
	var hrefs []string
	for _, t := range tags {
		if t.Name == "link" && t.Rel("stylesheet") && t.Attr("href") != "" {
			hrefs = append(hrefs, t.Attr("href"))
		}
	}
	return hrefs
}

// Hints returns the href of every preconnect or dns-prefetch link.
func Hints(tags []Tag) []string {
	var hrefs []string
	for _, t := range tags {
		if t.Name == "link" && (t.Rel("preconnect") || t.Rel("dns-prefetch")) && t.Attr("href") != "" {
			hrefs = append(hrefs, t.Attr("href"))
		}
	}
	return hrefs
}
