package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// CoverMode controls how the generated EPUB declares its cover image.
type CoverMode int

const (
	// CoverNone generates no cover image at all.
	CoverNone CoverMode = iota
	// CoverProperty flags the cover item with properties="cover-image".
	CoverProperty
	// CoverMetaRef references the cover only through meta[name=cover].
	CoverMetaRef
	// CoverBare includes a cover-named image with no declaration anywhere.
	CoverBare
)

// Chapter is one content document in a generated EPUB.
type Chapter struct {
	Title string
	Body  string
}

// EPUBOptions controls the metadata and structure of a generated EPUB.
// Empty fields are omitted from the metadata block, which is how the
// fallback paths get exercised.
type EPUBOptions struct {
	Title         string
	Authors       []string
	ISBN          string
	Language      string
	Publisher     string
	Date          string
	Subjects      []string
	Chapters      []Chapter
	Cover         CoverMode
	CoverMimeType string
	IncludeNCX    bool
}

// GenerateEPUB creates a valid EPUB file at the specified path with the
// given options and returns its path.
func GenerateEPUB(t *testing.T, dir, filename string, opts EPUBOptions) string {
	t.Helper()

	if len(opts.Chapters) == 0 {
		opts.Chapters = []Chapter{{Title: "Chapter 1", Body: "<p>This is a test chapter.</p>"}}
	}
	if opts.CoverMimeType == "" {
		opts.CoverMimeType = "image/png"
	}

	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create EPUB file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	// mimetype must be first and uncompressed.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("failed to create mimetype entry: %v", err)
	}
	if _, err := w.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("failed to write mimetype: %v", err)
	}

	containerXML := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	if err := writeZipFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		t.Fatalf("failed to write container.xml: %v", err)
	}

	coverFilename := ""
	if opts.Cover != CoverNone {
		coverData := generateImage(t, opts.CoverMimeType)
		if opts.CoverMimeType == "image/jpeg" {
			coverFilename = "cover.jpg"
		} else {
			coverFilename = "cover.png"
		}
		if err := writeZipFile(zw, "OEBPS/"+coverFilename, coverData); err != nil {
			t.Fatalf("failed to write cover image: %v", err)
		}
	}

	if err := writeZipFile(zw, "OEBPS/content.opf", []byte(generateOPF(opts, coverFilename))); err != nil {
		t.Fatalf("failed to write content.opf: %v", err)
	}

	for i, ch := range opts.Chapters {
		content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>%s</title>
</head>
<body>
  <h1>%s</h1>
  %s
</body>
</html>`, escapeXML(ch.Title), escapeXML(ch.Title), ch.Body)
		if err := writeZipFile(zw, fmt.Sprintf("OEBPS/chapter%d.xhtml", i+1), []byte(content)); err != nil {
			t.Fatalf("failed to write chapter: %v", err)
		}
	}

	if opts.IncludeNCX {
		if err := writeZipFile(zw, "OEBPS/toc.ncx", []byte(generateNCX(opts))); err != nil {
			t.Fatalf("failed to write toc.ncx: %v", err)
		}
	}

	return path
}

// GenerateCorruptEPUB writes a file that is not a valid zip archive.
func GenerateCorruptEPUB(t *testing.T, dir, filename string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}
	return path
}

func generateOPF(opts EPUBOptions, coverFilename string) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
`)

	if opts.Title != "" {
		buf.WriteString(fmt.Sprintf("    <dc:title id=\"title\">%s</dc:title>\n", escapeXML(opts.Title)))
	}
	for i, author := range opts.Authors {
		buf.WriteString(fmt.Sprintf("    <dc:creator id=\"creator%d\" opf:role=\"aut\">%s</dc:creator>\n", i, escapeXML(author)))
	}

	if opts.ISBN != "" {
		buf.WriteString(fmt.Sprintf("    <dc:identifier id=\"bookid\" opf:scheme=\"ISBN\">%s</dc:identifier>\n", escapeXML(opts.ISBN)))
	} else {
		buf.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:test-book-id</dc:identifier>\n")
	}
	if opts.Language != "" {
		buf.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", escapeXML(opts.Language)))
	}
	if opts.Publisher != "" {
		buf.WriteString(fmt.Sprintf("    <dc:publisher>%s</dc:publisher>\n", escapeXML(opts.Publisher)))
	}
	if opts.Date != "" {
		buf.WriteString(fmt.Sprintf("    <dc:date>%s</dc:date>\n", escapeXML(opts.Date)))
	}
	for _, subject := range opts.Subjects {
		buf.WriteString(fmt.Sprintf("    <dc:subject>%s</dc:subject>\n", escapeXML(subject)))
	}

	if opts.Cover == CoverMetaRef {
		buf.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}

	buf.WriteString("  </metadata>\n")

	buf.WriteString("  <manifest>\n")
	for i := range opts.Chapters {
		buf.WriteString(fmt.Sprintf("    <item id=\"chapter%d\" href=\"chapter%d.xhtml\" media-type=\"application/xhtml+xml\"/>\n", i+1, i+1))
	}
	if coverFilename != "" {
		properties := ""
		if opts.Cover == CoverProperty {
			properties = " properties=\"cover-image\""
		}
		buf.WriteString(fmt.Sprintf("    <item id=\"cover-image\" href=\"%s\" media-type=\"%s\"%s/>\n", coverFilename, opts.CoverMimeType, properties))
	}
	if opts.IncludeNCX {
		buf.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	}
	buf.WriteString("  </manifest>\n")

	if opts.IncludeNCX {
		buf.WriteString("  <spine toc=\"ncx\">\n")
	} else {
		buf.WriteString("  <spine>\n")
	}
	for i := range opts.Chapters {
		buf.WriteString(fmt.Sprintf("    <itemref idref=\"chapter%d\"/>\n", i+1))
	}
	buf.WriteString("  </spine>\n")

	buf.WriteString("</package>")

	return buf.String()
}

func generateNCX(opts EPUBOptions) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="test-book-id"/></head>
`)
	buf.WriteString(fmt.Sprintf("  <docTitle><text>%s</text></docTitle>\n", escapeXML(opts.Title)))
	buf.WriteString("  <navMap>\n")
	for i, ch := range opts.Chapters {
		buf.WriteString(fmt.Sprintf(`    <navPoint id="navpoint-%d" playOrder="%d">
      <navLabel><text>%s</text></navLabel>
      <content src="chapter%d.xhtml"/>
    </navPoint>
`, i+1, i+1, escapeXML(ch.Title), i+1))
	}
	buf.WriteString("  </navMap>\n</ncx>")

	return buf.String()
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func generateImage(t *testing.T, mimeType string) []byte {
	t.Helper()

	// A simple 100x100 solid color image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	blue := color.RGBA{0, 100, 200, 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, blue)
		}
	}

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}

	return buf.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
