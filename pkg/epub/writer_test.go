package epub

import (
	"strings"
	"testing"

	"github.com/hondanabooks/hondana/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuild(t *testing.T) {
	newCover := []byte(strings.Repeat("\xff\xd8\xff\xe0 jpeg-ish bytes ", 64))

	t.Run("writes final metadata", func(t *testing.T) {
		path := testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{
			Title:   "Old Title",
			Authors: []string{"Old Author"},
		})

		err := Rebuild(path, &RebuildMetadata{
			Metadata: Metadata{
				Title:       "New Title",
				Authors:     []string{"First Author", "Second Author"},
				ISBN:        "9780134685991",
				Language:    "en",
				Publisher:   "New Publisher",
				PublishDate: "2021-03-01",
				Description: "A fresh description.",
				Subjects:    []string{"Fiction", "Drama"},
			},
		})
		require.NoError(t, err)

		book, err := Parse(path)
		require.NoError(t, err)
		assert.Equal(t, "New Title", book.Metadata.Title)
		assert.Equal(t, []string{"First Author", "Second Author"}, book.Metadata.Authors)
		assert.Equal(t, "9780134685991", book.Metadata.ISBN)
		assert.Equal(t, "en", book.Metadata.Language)
		assert.Equal(t, "New Publisher", book.Metadata.Publisher)
		assert.Equal(t, "2021-03-01", book.Metadata.PublishDate)
		assert.Equal(t, "A fresh description.", book.Metadata.Description)
		assert.Equal(t, []string{"Fiction", "Drama"}, book.Metadata.Subjects)
	})

	t.Run("round trip preserves content items and swaps the cover", func(t *testing.T) {
		path := testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{
			Title:   "Round Trip",
			Authors: []string{"An Author"},
			Cover:   testgen.CoverProperty,
			Chapters: []testgen.Chapter{
				{Title: "One", Body: "<p>First chapter body.</p>"},
				{Title: "Two", Body: "<p>Second chapter body.</p>"},
				{Title: "Three", Body: "<p>Third chapter body.</p>"},
			},
		})

		before, err := Parse(path)
		require.NoError(t, err)
		originalDocs := map[string][]byte{}
		for _, item := range before.Items {
			if isDocument(item.MediaType) {
				originalDocs[item.Href] = item.Data
			}
		}
		require.Len(t, originalDocs, 3)

		err = Rebuild(path, &RebuildMetadata{
			Metadata:       Metadata{Title: "Round Trip", Authors: []string{"An Author"}},
			CoverData:      newCover,
			CoverMediaType: "image/jpeg",
		})
		require.NoError(t, err)

		after, err := Parse(path)
		require.NoError(t, err)

		// Same documents, byte for byte, in the same spine order.
		rebuiltDocs := map[string][]byte{}
		for _, item := range after.Items {
			if isDocument(item.MediaType) && !strings.Contains(item.Properties, "nav") {
				rebuiltDocs[item.Href] = item.Data
			}
		}
		assert.Equal(t, originalDocs, rebuiltDocs)
		assert.Equal(t, before.Spine, after.Spine)

		// Exactly one cover, and it is the new one.
		cover := after.CoverItem()
		require.NotNil(t, cover)
		assert.Equal(t, newCover, cover.Data)
		covers := 0
		for _, item := range after.Items {
			if strings.Contains(item.Properties, "cover-image") {
				covers++
			}
		}
		assert.Equal(t, 1, covers)
	})

	t.Run("keeps original cover when no replacement is supplied", func(t *testing.T) {
		path := testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{
			Title: "Keep Cover",
			Cover: testgen.CoverProperty,
		})

		before, err := Parse(path)
		require.NoError(t, err)
		originalCover := before.CoverItem().Data

		err = Rebuild(path, &RebuildMetadata{Metadata: Metadata{Title: "Keep Cover"}})
		require.NoError(t, err)

		after, err := Parse(path)
		require.NoError(t, err)
		require.NotNil(t, after.CoverItem())
		assert.Equal(t, originalCover, after.CoverItem().Data)
	})

	t.Run("regenerates navigation from the old ncx", func(t *testing.T) {
		path := testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{
			Title:      "Nav Book",
			IncludeNCX: true,
			Chapters: []testgen.Chapter{
				{Title: "Prologue", Body: "<p>Before.</p>"},
				{Title: "Epilogue", Body: "<p>After.</p>"},
			},
		})

		err := Rebuild(path, &RebuildMetadata{Metadata: Metadata{Title: "Nav Book"}})
		require.NoError(t, err)

		after, err := Parse(path)
		require.NoError(t, err)

		var nav, ncx *Item
		for i := range after.Items {
			if strings.Contains(after.Items[i].Properties, "nav") {
				nav = &after.Items[i]
			}
			if after.Items[i].MediaType == "application/x-dtbncx+xml" {
				ncx = &after.Items[i]
			}
		}
		require.NotNil(t, nav)
		require.NotNil(t, ncx)
		assert.Contains(t, string(nav.Data), "Prologue")
		assert.Contains(t, string(nav.Data), "Epilogue")
		assert.Contains(t, string(ncx.Data), "Prologue")
	})

	t.Run("corrupt original leaves file untouched", func(t *testing.T) {
		path := testgen.GenerateCorruptEPUB(t, t.TempDir(), "broken.epub")

		err := Rebuild(path, &RebuildMetadata{Metadata: Metadata{Title: "Whatever"}})
		require.Error(t, err)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})
}
