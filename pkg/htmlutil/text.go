package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText returns the visible text of an HTML or XHTML document, with
// runs of whitespace collapsed to single spaces. Script and style contents
// are skipped.
func ExtractText(doc string) string {
	tok := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skip := 0

	for {
		switch tok.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tok.TagName()
			if isInvisible(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if isInvisible(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tok.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isInvisible(tag string) bool {
	return tag == "script" || tag == "style" || tag == "head"
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
