package mail

import (
	htmlescape "html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	tagRe        = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)
	stripPolicy  = bluemonday.StrictPolicy()
	blockElement = map[string]bool{
		"p": true, "div": true, "br": true, "li": true, "tr": true,
		"table": true, "ul": true, "ol": true, "blockquote": true,
		"pre": true, "h1": true, "h2": true, "h3": true, "h4": true,
		"h5": true, "h6": true, "hr": true, "section": true, "article": true,
	}
)

// htmlToText converts an HTML email body to plain text, preserving line
// breaks as paragraph separators. Non-HTML input is returned unchanged.
func htmlToText(body string) string {
	if !tagRe.MatchString(body) {
		return body
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		// Degrade to tag stripping; the policy escapes entities, so undo that.
		return htmlescape.UnescapeString(stripPolicy.Sanitize(body))
	}

	var b strings.Builder
	renderText(&b, doc)
	return b.String()
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head", "title":
			return
		}
		if blockElement[n.Data] {
			ensureNewline(b)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}

	if n.Type == html.ElementNode && blockElement[n.Data] {
		ensureNewline(b)
	}
}

func ensureNewline(b *strings.Builder) {
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}
