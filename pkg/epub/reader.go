package epub

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hondanabooks/hondana/pkg/htmlutil"
	"github.com/hondanabooks/hondana/pkg/identifiers"
	"github.com/hondanabooks/hondana/pkg/language"
	"github.com/pkg/errors"
)

const (
	// isbnScanDocuments is how many spine documents get scanned for an ISBN
	// when the metadata block declares no valid identifier.
	isbnScanDocuments = 5
	// languageSampleSize is how much extracted text is fed to language
	// detection when the metadata block declares no language.
	languageSampleSize = 3000
)

// Metadata is the set of fields read from (and written back to) a package's
// metadata block.
type Metadata struct {
	Title       string
	Authors     []string
	ISBN        string
	Language    string
	Publisher   string
	PublishDate string
	Description string
	Subjects    []string
}

// Item is one manifest entry with its content bytes.
type Item struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
	Data       []byte
}

// Book is the parsed representation of an EPUB: its metadata, every manifest
// item with content loaded, and the spine order. CoverID names the manifest
// item resolved as the cover, or is empty when no cover was found.
type Book struct {
	Path     string
	OPFPath  string
	Version  string
	Metadata Metadata
	Items    []Item
	Spine    []string
	CoverID  string

	// files holds every raw archive entry, including ones outside the
	// manifest like META-INF/container.xml, so a rebuild can carry them over.
	files []archiveFile
}

// Item returns the manifest item with the given ID, or nil.
func (b *Book) Item(id string) *Item {
	for i := range b.Items {
		if b.Items[i].ID == id {
			return &b.Items[i]
		}
	}
	return nil
}

// CoverItem returns the resolved cover item, or nil when none was found.
func (b *Book) CoverItem() *Item {
	if b.CoverID == "" {
		return nil
	}
	return b.Item(b.CoverID)
}

type archiveFile struct {
	Name   string
	Data   []byte
	Method uint16
}

func readArchive(path string) ([]archiveFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	zipReader, err := zip.NewReader(f, stats.Size())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	files := make([]archiveFile, 0, len(zipReader.File))
	for _, file := range zipReader.File {
		r, err := file.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		b, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		files = append(files, archiveFile{Name: file.Name, Data: b, Method: file.Method})
	}
	return files, nil
}

// Parse opens an EPUB and extracts its metadata and contents. When standard
// fields are absent it falls back to heuristics: a cover resolution chain,
// an ISBN scan over the first few spine documents, and language detection
// over a text sample. Fallbacks that find nothing leave the field empty;
// only structural corruption produces an error, always a *ParseError.
func Parse(path string) (*Book, error) {
	files, err := readArchive(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	opfPath := ""
	var pkg *Package
	for _, file := range files {
		if filepath.Ext(file.Name) == ".opf" {
			opfPath = file.Name
			pkg, err = parsePackage(file.Data)
			if err != nil {
				return nil, &ParseError{Path: path, Err: err}
			}
			break
		}
	}
	if pkg == nil {
		return nil, &ParseError{Path: path, Err: errors.New("no opf file found")}
	}

	basePath := opfBasePath(opfPath)
	byName := make(map[string]archiveFile, len(files))
	for _, file := range files {
		byName[file.Name] = file
	}

	book := &Book{
		Path:    path,
		OPFPath: opfPath,
		Version: pkg.Version,
		files:   files,
	}

	// Load manifest items. Entries missing from the archive are dropped
	// rather than failing the extraction.
	for _, item := range pkg.Manifest.Item {
		file, ok := byName[basePath+item.Href]
		if !ok {
			continue
		}
		book.Items = append(book.Items, Item{
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: item.Properties,
			Data:       file.Data,
		})
	}
	for _, ref := range pkg.Spine.Itemref {
		if book.Item(ref.Idref) != nil {
			book.Spine = append(book.Spine, ref.Idref)
		}
	}

	metaProperties, metaContent := metaMaps(pkg)
	book.Metadata = extractMetadata(pkg, metaProperties)
	book.CoverID = resolveCover(book, metaContent)

	if book.Metadata.ISBN == "" {
		book.Metadata.ISBN = scanForISBN(book)
	}
	if book.Metadata.Language == "" {
		if code, ok := language.Detect(textSample(book, languageSampleSize), language.DefaultConfidenceThreshold); ok {
			book.Metadata.Language = code
		}
	}

	return book, nil
}

func extractMetadata(pkg *Package, metaProperties map[string]map[string]string) Metadata {
	md := Metadata{
		Language:    strings.TrimSpace(pkg.Metadata.Language),
		Publisher:   strings.TrimSpace(pkg.Metadata.Publisher),
		PublishDate: strings.TrimSpace(pkg.Metadata.Date),
		Description: strings.TrimSpace(pkg.Metadata.Description),
	}

	if len(pkg.Metadata.Title) == 1 {
		md.Title = pkg.Metadata.Title[0].Text
	} else if len(pkg.Metadata.Title) > 1 {
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID] != nil && metaProperties[t.ID]["title-type"] == "main" {
				md.Title = t.Text
				break
			}
		}
		if md.Title == "" {
			md.Title = pkg.Metadata.Title[0].Text
		}
	}

	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" && metaProperties[creator.ID] != nil {
			role = metaProperties[creator.ID]["role"]
		}
		if role == "aut" || role == "" {
			md.Authors = append(md.Authors, strings.TrimSpace(creator.Text))
		}
	}

	// First declared identifier with a valid ISBN checksum wins.
	for _, id := range pkg.Metadata.Identifier {
		if identifiers.DetectType(id.Text) != identifiers.TypeUnknown {
			md.ISBN = identifiers.NormalizeISBN(id.Text)
			break
		}
	}

	for _, subject := range pkg.Metadata.Subject {
		if s := strings.TrimSpace(subject); s != "" {
			md.Subjects = append(md.Subjects, s)
		}
	}

	return md
}

// scanForISBN extracts text from the first few spine documents and looks for
// an ISBN with a valid checksum. Publishers usually print it on the
// copyright page, which sits early in the reading order.
func scanForISBN(book *Book) string {
	scanned := 0
	for _, id := range book.Spine {
		item := book.Item(id)
		if item == nil || !isDocument(item.MediaType) {
			continue
		}
		if isbn := identifiers.FindInText(htmlutil.ExtractText(string(item.Data))); isbn != "" {
			return isbn
		}
		scanned++
		if scanned >= isbnScanDocuments {
			break
		}
	}
	return ""
}

// textSample concatenates extracted text from spine documents up to limit
// bytes, for language detection.
func textSample(book *Book, limit int) string {
	var b strings.Builder
	for _, id := range book.Spine {
		item := book.Item(id)
		if item == nil || !isDocument(item.MediaType) {
			continue
		}
		b.WriteString(htmlutil.ExtractText(string(item.Data)))
		b.WriteByte(' ')
		if b.Len() >= limit {
			break
		}
	}
	sample := b.String()
	if len(sample) > limit {
		sample = sample[:limit]
	}
	return sample
}

func isDocument(mediaType string) bool {
	return mediaType == "application/xhtml+xml" || mediaType == "text/html"
}
