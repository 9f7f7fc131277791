package epub

import (
	"archive/zip"
	"encoding/xml"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RebuildMetadata is the final metadata written into a rebuilt package. When
// CoverData is set the previous cover image is dropped and replaced.
type RebuildMetadata struct {
	Metadata
	CoverData      []byte
	CoverMediaType string
}

// Rebuild constructs a brand-new package from the original instead of
// patching it in place, so duplicated or malformed metadata blocks don't
// survive the write. Every content item is copied byte-for-byte except the
// previous cover (when a new one is supplied); the metadata block and the
// navigation structures are regenerated from scratch. The result is staged
// in a temporary file and atomically renamed over the original only after a
// complete successful write, so a failure at any step leaves the original
// untouched.
func Rebuild(srcPath string, meta *RebuildMetadata) error {
	book, err := Parse(srcPath)
	if err != nil {
		return err
	}

	toc := chapters(book)
	basePath := opfBasePath(book.OPFPath)

	// Paths regenerated rather than copied.
	excluded := map[string]bool{
		book.OPFPath: true,
		"mimetype":   true,
	}
	excludedIDs := map[string]bool{}
	if len(meta.CoverData) > 0 && book.CoverID != "" {
		cover := book.CoverItem()
		excluded[basePath+cover.Href] = true
		excludedIDs[cover.ID] = true
	}
	for _, item := range book.Items {
		if strings.Contains(item.Properties, "nav") || item.MediaType == "application/x-dtbncx+xml" {
			excluded[basePath+item.Href] = true
			excludedIDs[item.ID] = true
		}
	}

	copied := map[string]bool{}
	for _, file := range book.files {
		if !excluded[file.Name] {
			copied[file.Name] = true
		}
	}

	identifier := meta.ISBN
	scheme := "ISBN"
	if identifier == "" {
		identifier = "urn:uuid:" + uuid.NewString()
		scheme = "UUID"
	}

	tmpPath := srcPath + ".tmp"
	destFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		destFile.Close()
		os.Remove(tmpPath)
	}()

	destZip := zip.NewWriter(destFile)

	// The mimetype entry must be first and stored uncompressed.
	w, err := destZip.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.Write([]byte("application/epub+zip")); err != nil {
		return errors.WithStack(err)
	}

	for _, file := range book.files {
		if excluded[file.Name] {
			continue
		}
		w, err := destZip.CreateHeader(&zip.FileHeader{Name: file.Name, Method: file.Method})
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := w.Write(file.Data); err != nil {
			return errors.WithStack(err)
		}
	}

	coverHref := ""
	if len(meta.CoverData) > 0 {
		coverHref = uniqueName(copied, basePath, "cover"+coverExtension(meta.CoverMediaType))
		if err := writeEntry(destZip, basePath+coverHref, meta.CoverData); err != nil {
			return err
		}
	}

	navHref := uniqueName(copied, basePath, "nav.xhtml")
	if err := writeEntry(destZip, basePath+navHref, generateNavDocument(meta.Title, toc)); err != nil {
		return err
	}
	ncxHref := uniqueName(copied, basePath, "toc.ncx")
	if err := writeEntry(destZip, basePath+ncxHref, generateNCX(identifier, meta.Title, toc)); err != nil {
		return err
	}

	opf, err := buildOPF(book, &meta.Metadata, identifier, scheme, excludedIDs, coverHref, navHref, ncxHref)
	if err != nil {
		return err
	}
	if err := writeEntry(destZip, book.OPFPath, opf); err != nil {
		return err
	}

	if err := destZip.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := destFile.Close(); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.Rename(tmpPath, srcPath))
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}

// uniqueName avoids clobbering a copied content item that happens to share a
// name with a regenerated file.
func uniqueName(copied map[string]bool, basePath, name string) string {
	if !copied[basePath+name] {
		return name
	}
	ext := ""
	base := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		base, ext = name[:i], name[i:]
	}
	for n := 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n) + ext
		if !copied[basePath+candidate] {
			return candidate
		}
	}
}

func coverExtension(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// OPF structures for generation. These mirror the parse structures in
// opf.go but carry the namespace declarations and element names required to
// emit a valid package document.

type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Xmlns            string      `xml:"xmlns,attr"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         opfManifest `xml:"manifest"`
	Spine            opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	XMLName     xml.Name     `xml:"metadata"`
	XmlnsDC     string       `xml:"xmlns:dc,attr"`
	XmlnsOPF    string       `xml:"xmlns:opf,attr"`
	Titles      []opfTitle   `xml:"dc:title"`
	Creators    []opfCreator `xml:"dc:creator"`
	Identifiers []opfID      `xml:"dc:identifier"`
	Language    string       `xml:"dc:language,omitempty"`
	Publisher   string       `xml:"dc:publisher,omitempty"`
	Date        string       `xml:"dc:date,omitempty"`
	Description string       `xml:"dc:description,omitempty"`
	Subjects    []string     `xml:"dc:subject"`
	Meta        []opfMeta    `xml:"meta"`
}

type opfTitle struct {
	Text string `xml:",chardata"`
}

type opfCreator struct {
	Text string `xml:",chardata"`
	Role string `xml:"opf:role,attr,omitempty"`
}

type opfID struct {
	Text   string `xml:",chardata"`
	ID     string `xml:"id,attr,omitempty"`
	Scheme string `xml:"opf:scheme,attr,omitempty"`
}

type opfMeta struct {
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Property string `xml:"property,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type opfManifest struct {
	XMLName xml.Name          `xml:"manifest"`
	Items   []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type opfSpine struct {
	XMLName xml.Name       `xml:"spine"`
	Toc     string         `xml:"toc,attr,omitempty"`
	Items   []opfSpineItem `xml:"itemref"`
}

type opfSpineItem struct {
	IDRef string `xml:"idref,attr"`
}

func buildOPF(book *Book, meta *Metadata, identifier, scheme string, excludedIDs map[string]bool, coverHref, navHref, ncxHref string) ([]byte, error) {
	pkg := opfPackage{
		Xmlns:            "http://www.idpf.org/2007/opf",
		Version:          "3.0",
		UniqueIdentifier: "book-id",
	}
	pkg.Metadata = opfMetadata{
		XmlnsDC:     "http://purl.org/dc/elements/1.1/",
		XmlnsOPF:    "http://www.idpf.org/2007/opf",
		Titles:      []opfTitle{{Text: meta.Title}},
		Identifiers: []opfID{{Text: identifier, ID: "book-id", Scheme: scheme}},
		Language:    meta.Language,
		Publisher:   meta.Publisher,
		Date:        meta.PublishDate,
		Description: meta.Description,
		Subjects:    meta.Subjects,
	}
	for _, author := range meta.Authors {
		pkg.Metadata.Creators = append(pkg.Metadata.Creators, opfCreator{Text: author, Role: "aut"})
	}

	usedIDs := map[string]bool{}
	for _, item := range book.Items {
		if excludedIDs[item.ID] {
			continue
		}
		properties := stripProperty(item.Properties, "cover-image")
		pkg.Manifest.Items = append(pkg.Manifest.Items, opfManifestItem{
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: properties,
		})
		usedIDs[item.ID] = true
	}

	coverID := ""
	if coverHref != "" {
		coverID = uniqueID(usedIDs, "cover-image")
		pkg.Manifest.Items = append(pkg.Manifest.Items, opfManifestItem{
			ID:         coverID,
			Href:       coverHref,
			MediaType:  coverMediaTypeFor(coverHref),
			Properties: "cover-image",
		})
	} else if book.CoverID != "" && !excludedIDs[book.CoverID] {
		// No replacement supplied; re-flag the original cover.
		coverID = book.CoverID
		for i := range pkg.Manifest.Items {
			if pkg.Manifest.Items[i].ID == coverID {
				pkg.Manifest.Items[i].Properties = joinProperty(pkg.Manifest.Items[i].Properties, "cover-image")
			}
		}
	}
	if coverID != "" {
		pkg.Metadata.Meta = append(pkg.Metadata.Meta, opfMeta{Name: "cover", Content: coverID})
	}

	navID := uniqueID(usedIDs, "nav")
	pkg.Manifest.Items = append(pkg.Manifest.Items, opfManifestItem{
		ID:         navID,
		Href:       navHref,
		MediaType:  "application/xhtml+xml",
		Properties: "nav",
	})
	ncxID := uniqueID(usedIDs, "ncx")
	pkg.Manifest.Items = append(pkg.Manifest.Items, opfManifestItem{
		ID:        ncxID,
		Href:      ncxHref,
		MediaType: "application/x-dtbncx+xml",
	})

	pkg.Spine.Toc = ncxID
	for _, idref := range book.Spine {
		if excludedIDs[idref] {
			continue
		}
		pkg.Spine.Items = append(pkg.Spine.Items, opfSpineItem{IDRef: idref})
	}

	output, err := xml.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return append([]byte(xml.Header), output...), nil
}

func coverMediaTypeFor(href string) string {
	switch {
	case strings.HasSuffix(href, ".png"):
		return "image/png"
	case strings.HasSuffix(href, ".gif"):
		return "image/gif"
	case strings.HasSuffix(href, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func stripProperty(properties, remove string) string {
	fields := strings.Fields(properties)
	kept := fields[:0]
	for _, f := range fields {
		if f != remove {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func joinProperty(properties, add string) string {
	for _, f := range strings.Fields(properties) {
		if f == add {
			return properties
		}
	}
	if properties == "" {
		return add
	}
	return properties + " " + add
}

func uniqueID(used map[string]bool, id string) string {
	if !used[id] {
		used[id] = true
		return id
	}
	for n := 1; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}
