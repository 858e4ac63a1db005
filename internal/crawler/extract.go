package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// contentSelectors are tried in order; the first match becomes the extraction
// root so navigation and footer noise around the main content is dropped.
var contentSelectors = []string{
	"main", "article", ".content", "#content", ".main-content",
	".entry-content", ".post-content", "#main",
}

var textElements = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true,
}

// ExtractContent returns the page title and the readable text of the most
// specific content container, joining paragraph, heading and list-item text
// with single spaces. Script and style subtrees are ignored.
func ExtractContent(doc *html.Node) (title, text string) {
	if n := findElement(doc, "title"); n != nil {
		title = strings.TrimSpace(nodeText(n))
	}

	root := contentRoot(doc)

	var parts []string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && textElements[n.Data] {
			if t := strings.TrimSpace(nodeText(n)); t != "" {
				parts = append(parts, t)
			}
		}
		return true
	})

	return title, strings.TrimSpace(strings.Join(parts, " "))
}

// ExtractLinks returns every anchor href resolved against the page URL, with
// fragments stripped. Unparsable hrefs are skipped.
func ExtractLinks(doc *html.Node, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				ref, err := url.Parse(href)
				if err != nil {
					return true
				}
				resolved := base.ResolveReference(ref)
				resolved.Fragment = ""
				links = append(links, resolved.String())
			}
		}
		return true
	})
	return links
}

func contentRoot(doc *html.Node) *html.Node {
	for _, sel := range contentSelectors {
		if n := selectOne(doc, sel); n != nil {
			return n
		}
	}
	if body := findElement(doc, "body"); body != nil {
		return body
	}
	return doc
}

func selectOne(doc *html.Node, selector string) *html.Node {
	var match func(*html.Node) bool
	switch {
	case strings.HasPrefix(selector, "."):
		class := selector[1:]
		match = func(n *html.Node) bool { return hasClass(n, class) }
	case strings.HasPrefix(selector, "#"):
		id := selector[1:]
		match = func(n *html.Node) bool {
			v, ok := attr(n, "id")
			return ok && v == id
		}
	default:
		match = func(n *html.Node) bool { return n.Data == selector }
	}

	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found == nil && n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return found == nil
	})
	return found
}

func findElement(doc *html.Node, name string) *html.Node {
	return selectOne(doc, name)
}

// walk visits nodes in document order, skipping script and style subtrees.
// Returning false from fn stops descent into the current node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
