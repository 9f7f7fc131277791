package epub

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Chapter is one entry of a table of contents.
type Chapter struct {
	Title    string
	Href     string
	Children []Chapter
}

// navHTML mirrors the EPUB 3 navigation document for parsing.
type navHTML struct {
	XMLName xml.Name `xml:"html"`
	Body    struct {
		Nav []struct {
			Type string `xml:"type,attr"`
			OL   *navOL `xml:"ol"`
		} `xml:"nav"`
	} `xml:"body"`
}

type navOL struct {
	Items []navLI `xml:"li"`
}

type navLI struct {
	A *struct {
		Href string `xml:"href,attr"`
		Text string `xml:",chardata"`
	} `xml:"a"`
	Span *struct {
		Text string `xml:",chardata"`
	} `xml:"span"`
	Children *navOL `xml:"ol"`
}

func parseNavDocument(data []byte) ([]Chapter, error) {
	var nav navHTML
	if err := xml.Unmarshal(data, &nav); err != nil {
		return nil, errors.WithStack(err)
	}

	for _, n := range nav.Body.Nav {
		if n.Type == "toc" && n.OL != nil {
			return parseNavOL(n.OL), nil
		}
	}
	return nil, nil
}

func parseNavOL(ol *navOL) []Chapter {
	if ol == nil {
		return nil
	}

	chapters := make([]Chapter, 0, len(ol.Items))
	for _, li := range ol.Items {
		ch := Chapter{}
		if li.A != nil {
			ch.Title = strings.TrimSpace(li.A.Text)
			ch.Href = li.A.Href
		} else if li.Span != nil {
			ch.Title = strings.TrimSpace(li.Span.Text)
		}
		if ch.Title == "" {
			continue
		}
		if li.Children != nil {
			ch.Children = parseNavOL(li.Children)
		}
		chapters = append(chapters, ch)
	}
	return chapters
}

// ncx mirrors the EPUB 2 NCX file for parsing.
type ncx struct {
	XMLName xml.Name `xml:"ncx"`
	NavMap  struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	NavLabel struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

func parseNCX(data []byte) ([]Chapter, error) {
	var n ncx
	if err := xml.Unmarshal(data, &n); err != nil {
		return nil, errors.WithStack(err)
	}
	return parseNCXNavPoints(n.NavMap.NavPoints), nil
}

func parseNCXNavPoints(navPoints []ncxNavPoint) []Chapter {
	chapters := make([]Chapter, 0, len(navPoints))
	for _, np := range navPoints {
		title := strings.TrimSpace(np.NavLabel.Text)
		if title == "" {
			continue
		}
		ch := Chapter{Title: title, Href: np.Content.Src}
		if len(np.Children) > 0 {
			ch.Children = parseNCXNavPoints(np.Children)
		}
		chapters = append(chapters, ch)
	}
	return chapters
}

// chapters recovers the table of contents from a parsed book, preferring the
// EPUB 3 nav document over the legacy NCX. When neither exists or parses,
// one flat entry per spine document is synthesized so a regenerated package
// always has a usable table of contents.
func chapters(book *Book) []Chapter {
	for _, item := range book.Items {
		if strings.Contains(item.Properties, "nav") {
			if chs, err := parseNavDocument(item.Data); err == nil && len(chs) > 0 {
				return chs
			}
		}
	}
	for _, item := range book.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			if chs, err := parseNCX(item.Data); err == nil && len(chs) > 0 {
				return chs
			}
		}
	}

	chs := []Chapter{}
	for i, id := range book.Spine {
		item := book.Item(id)
		if item == nil || !isDocument(item.MediaType) {
			continue
		}
		chs = append(chs, Chapter{
			Title: fmt.Sprintf("Chapter %d", i+1),
			Href:  item.Href,
		})
	}
	return chs
}

// generateNavDocument renders an EPUB 3 navigation document for the given
// chapters.
func generateNavDocument(title string, chs []Chapter) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	b.WriteString("<head><title>" + escapeXML(title) + "</title></head>\n")
	b.WriteString("<body>\n")
	b.WriteString(`<nav epub:type="toc" id="toc">` + "\n")
	writeNavOL(&b, chs, 1)
	b.WriteString("</nav>\n</body>\n</html>\n")
	return []byte(b.String())
}

func writeNavOL(b *strings.Builder, chs []Chapter, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent + "<ol>\n")
	for _, ch := range chs {
		b.WriteString(indent + "  <li>")
		if ch.Href != "" {
			b.WriteString(`<a href="` + escapeXML(ch.Href) + `">` + escapeXML(ch.Title) + "</a>")
		} else {
			b.WriteString("<span>" + escapeXML(ch.Title) + "</span>")
		}
		if len(ch.Children) > 0 {
			b.WriteString("\n")
			writeNavOL(b, ch.Children, depth+2)
			b.WriteString(indent + "  ")
		}
		b.WriteString("</li>\n")
	}
	b.WriteString(indent + "</ol>\n")
}

// generateNCX renders an EPUB 2 NCX file for the given chapters, for readers
// that predate the EPUB 3 nav document.
func generateNCX(uid, title string, chs []Chapter) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">` + "\n")
	b.WriteString("<head>\n")
	b.WriteString(`  <meta name="dtb:uid" content="` + escapeXML(uid) + `"/>` + "\n")
	b.WriteString(`  <meta name="dtb:depth" content="1"/>` + "\n")
	b.WriteString("</head>\n")
	b.WriteString("<docTitle><text>" + escapeXML(title) + "</text></docTitle>\n")
	b.WriteString("<navMap>\n")
	order := 1
	writeNavPoints(&b, chs, &order)
	b.WriteString("</navMap>\n</ncx>\n")
	return []byte(b.String())
}

func writeNavPoints(b *strings.Builder, chs []Chapter, order *int) {
	for _, ch := range chs {
		id := fmt.Sprintf("navpoint-%d", *order)
		b.WriteString(`  <navPoint id="` + id + `" playOrder="` + fmt.Sprint(*order) + `">` + "\n")
		b.WriteString("    <navLabel><text>" + escapeXML(ch.Title) + "</text></navLabel>\n")
		if ch.Href != "" {
			b.WriteString(`    <content src="` + escapeXML(ch.Href) + `"/>` + "\n")
		}
		*order++
		writeNavPoints(b, ch.Children, order)
		b.WriteString("  </navPoint>\n")
	}
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
