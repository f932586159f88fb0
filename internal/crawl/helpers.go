package crawl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	goListPattern = regexp.MustCompile(`goList\((\d+)\)`)
	goViewPattern = regexp.MustCompile(`goView\('(.+?)'\)`)
)

// normalizeSpace collapses runs of whitespace into one space and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// strippedText joins every descendant text node after trimming each one, so
// "<td>1,000 <span>원</span></td>" reads "1,000원".
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.TrimSpace(n.Data))
		case html.CommentNode:
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

// goListPage extracts N from an attribute like "javascript:goList(N)".
func goListPage(attr string) (int, bool) {
	m := goListPattern.FindStringSubmatch(attr)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// goViewID extracts the id from an attribute like "goView('ABC123')".
func goViewID(attr string) string {
	m := goViewPattern.FindStringSubmatch(attr)
	if m == nil {
		return ""
	}
	return m[1]
}
