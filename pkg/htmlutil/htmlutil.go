// Package htmlutil holds the small text helpers used when reading portal markup.
package htmlutil

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// GetText returns the text nodes under `node` joined in document order, with no
// normalization applied.
func GetText(node *html.Node) string {
	if node == nil {
		return ""
	}
	var out strings.Builder
	stack := []*html.Node{node}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current.Type == html.TextNode {
			out.WriteString(current.Data)
			continue
		}
		for child := current.LastChild; child != nil; child = child.PrevSibling {
			stack = append(stack, child)
		}
	}
	return out.String()
}

// NormalizeText drops non printable characters and collapses every run of
// whitespace into a single space, trimming both ends.
func NormalizeText(s string) string {
	printable := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(printable), " ")
}
