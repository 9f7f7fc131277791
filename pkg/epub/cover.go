package epub

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// minCoverBytes filters out icons and decorations when brute-forcing a
// cover candidate.
const minCoverBytes = 10 * 1024

// resolveCover finds the manifest item acting as the cover image. It tries
// three strategies in order and stops at the first hit:
//
//  1. the item flagged with the cover-image property
//  2. the item referenced by the legacy meta[name=cover] entry
//  3. brute force over image items, preferring cover-like names
//
// Returns the item ID, or empty when no strategy found anything.
func resolveCover(book *Book, metaContent map[string]string) string {
	strategies := []func(*Book, map[string]string) string{
		coverByProperty,
		coverByMetaReference,
		coverByBruteForce,
	}
	for _, strategy := range strategies {
		if id := strategy(book, metaContent); id != "" {
			return id
		}
	}
	return ""
}

func coverByProperty(book *Book, _ map[string]string) string {
	for _, item := range book.Items {
		if strings.Contains(item.Properties, "cover-image") && isImage(&item) {
			return item.ID
		}
	}
	return ""
}

func coverByMetaReference(book *Book, metaContent map[string]string) string {
	ref := metaContent["cover"]
	if ref == "" {
		return ""
	}
	item := book.Item(ref)
	if item == nil || !isImage(item) {
		return ""
	}
	return item.ID
}

func coverByBruteForce(book *Book, _ map[string]string) string {
	fallback := ""
	for _, item := range book.Items {
		if !isImage(&item) {
			continue
		}
		if strings.Contains(strings.ToLower(item.Href), "cover") {
			return item.ID
		}
		if fallback == "" && len(item.Data) >= minCoverBytes {
			fallback = item.ID
		}
	}
	return fallback
}

// isImage trusts the declared media type but falls back to content sniffing
// when the manifest lies or leaves it blank.
func isImage(item *Item) bool {
	if strings.HasPrefix(item.MediaType, "image/") {
		return true
	}
	return strings.HasPrefix(mimetype.Detect(item.Data).String(), "image/")
}
