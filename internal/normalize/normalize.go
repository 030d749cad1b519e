// Package normalize turns raw provider markup into a canonical document
// tree per chapter. Provider chrome (scripts, trackers, navigation) is
// stripped; reading-order text, structural markup and embedded images are
// preserved. Malformed markup never fails a chapter: the cleaner keeps
// whatever parses.
package normalize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"storybind/pkg/models"
)

// Chapter is the cleaned document tree for one story part, plus every
// embedded image reference discovered in it (document order). Chapters are
// immutable after Clean returns and are owned by a single request.
type Chapter struct {
	Ref       models.ChapterRef
	Root      *html.Node // a <div> wrapping the cleaned content
	ImageURLs []string
}

// droppedElements are provider-specific or non-content elements removed
// entirely, subtree included.
var droppedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"noscript": true,
	"form":     true,
	"button":   true,
	"nav":      true,
	"object":   true,
	"embed":    true,
	"link":     true,
	"meta":     true,
}

// keptAttrs is the per-element attribute whitelist. Elements not listed
// keep no attributes at all (provider data-* tracking markers included).
var keptAttrs = map[string]map[string]bool{
	"img": {"src": true, "alt": true},
	"a":   {"href": true},
}

// Clean builds a Chapter from one part's raw markup. It never returns an
// error: the parser is tolerant, and anything unparseable simply does not
// appear in the result. A chapter heading with the part title is always
// prepended so even an empty part renders with its title.
func Clean(ref models.ChapterRef, raw string) *Chapter {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	ch := &Chapter{Ref: ref, Root: root}

	heading := &html.Node{Type: html.ElementNode, Data: "h2", DataAtom: atom.H2}
	heading.AppendChild(&html.Node{Type: html.TextNode, Data: ref.Title})
	root.AppendChild(heading)

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// html.Parse only fails on reader errors, which a string reader
		// cannot produce. Degrade to heading-only content regardless.
		return ch
	}

	if body := findElement(doc, atom.Body); body != nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if cleaned := ch.cleanNode(c); cleaned != nil {
				root.AppendChild(cleaned)
			}
		}
	}
	return ch
}

// cleanNode deep-copies a node into the cleaned tree, dropping excluded
// elements, comments and non-whitelisted attributes, and recording image
// references as it goes. Returns nil when the node is dropped.
func (ch *Chapter) cleanNode(n *html.Node) *html.Node {
	switch n.Type {
	case html.TextNode:
		return &html.Node{Type: html.TextNode, Data: n.Data}
	case html.ElementNode:
		// handled below
	default:
		return nil
	}

	name := strings.ToLower(n.Data)
	if droppedElements[name] {
		return nil
	}

	out := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
	if allowed := keptAttrs[name]; allowed != nil {
		for _, a := range n.Attr {
			if allowed[strings.ToLower(a.Key)] {
				out.Attr = append(out.Attr, html.Attribute{Key: a.Key, Val: a.Val})
			}
		}
	}

	if name == "img" {
		src := attrVal(out, "src")
		if src == "" {
			return nil
		}
		ch.ImageURLs = append(ch.ImageURLs, src)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if cleaned := ch.cleanNode(c); cleaned != nil {
			out.AppendChild(cleaned)
		}
	}
	return out
}

// BodyXHTML serializes the cleaned tree's content for embedding in an
// XHTML chapter document.
func (ch *Chapter) BodyXHTML() string {
	var b strings.Builder
	for c := ch.Root.FirstChild; c != nil; c = c.NextSibling {
		// Render only fails on unrenderable node types, which cleanNode
		// never produces.
		_ = html.Render(&b, c)
	}
	return b.String()
}

// PlainText flattens the cleaned tree into paragraph-separated text for
// renderers that do not consume markup.
func (ch *Chapter) PlainText() string {
	var b strings.Builder
	collectText(ch.Root, &b)
	return strings.TrimSpace(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			b.WriteString("\n")
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		b.WriteString("\n\n")
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Li:
		return true
	}
	return false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
