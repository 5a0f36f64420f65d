package article

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	blankRunRe = regexp.MustCompile(`\n{3,}`)

	mainSelectors = []string{"main", "article", "[role=main]"}

	boilerplateTags = map[string]bool{
		"nav": true, "header": true, "footer": true, "aside": true,
		"script": true, "style": true, "noscript": true, "iframe": true,
		"svg": true, "object": true, "embed": true, "form": true,
		"input": true, "button": true,
	}

	boilerplateClasses = map[string]bool{
		"nav": true, "navbar": true, "navigation": true, "sidebar": true,
		"menu": true, "footer": true, "header": true, "ad": true,
		"advertisement": true, "social": true, "share": true,
		"comments": true, "related": true, "breadcrumb": true, "cookie": true,
	}
)

// extractor turns an HTML document into readable text.
type extractor struct {
	conv *md.Converter
}

func newExtractor() *extractor {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &extractor{conv: conv}
}

// Extract returns the page title and the readable body text. Text is empty
// when nothing readable was found.
func (e *extractor) Extract(doc *html.Node) (title, text string, err error) {
	title = findTitle(doc)

	content := mainContent(doc)
	if content == nil {
		return title, "", nil
	}
	var sb strings.Builder
	if err := html.Render(&sb, content); err != nil {
		return title, "", err
	}
	markdown, err := e.conv.ConvertString(sb.String())
	if err != nil {
		return title, "", err
	}
	return title, tidy(markdown), nil
}

func findTitle(doc *html.Node) string {
	if n := findElement(doc, "title"); n != nil {
		return strings.TrimSpace(textOf(n))
	}
	if n := findElement(doc, "h1"); n != nil {
		return strings.TrimSpace(textOf(n))
	}
	return ""
}

// mainContent prefers an explicit main region and otherwise strips page
// chrome from the body.
func mainContent(doc *html.Node) *html.Node {
	for _, sel := range mainSelectors {
		if n := findElement(doc, sel); n != nil {
			stripBoilerplate(n)
			return n
		}
	}
	body := findElement(doc, "body")
	if body == nil {
		return nil
	}
	stripBoilerplate(body)
	return body
}

func findElement(n *html.Node, selector string) *html.Node {
	if n.Type == html.ElementNode && matches(n, selector) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, selector); found != nil {
			return found
		}
	}
	return nil
}

func matches(n *html.Node, selector string) bool {
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		key, val, ok := strings.Cut(strings.Trim(selector, "[]"), "=")
		if !ok {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == key && a.Val == val {
				return true
			}
		}
		return false
	}
	return n.Data == selector
}

func stripBoilerplate(root *html.Node) {
	var drop []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n != root && n.Type == html.ElementNode && isBoilerplate(n) {
			drop = append(drop, n)
			return
		}
		if n.Type == html.CommentNode {
			drop = append(drop, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	for _, n := range drop {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func isBoilerplate(n *html.Node) bool {
	if boilerplateTags[n.Data] {
		return true
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(strings.ToLower(a.Val)) {
			if boilerplateClasses[c] {
				return true
			}
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
