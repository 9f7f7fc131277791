package enrich

import "strings"

// genreMapping maps catalog tag keywords to the fixed genre list. Entries
// are ordered: the first genre whose keyword appears in a tag wins, so more
// specific genres sit above the generic ones they would otherwise lose to.
var genreMapping = []struct {
	Genre    string
	Keywords []string
}{
	{"Science-Fiction", []string{"science fiction", "science-fiction", "sci-fi"}},
	{"Fantasy", []string{"fantasy"}},
	{"Mystery", []string{"mystery", "detective", "crime"}},
	{"Romance", []string{"romance", "love stories"}},
	{"Thriller", []string{"thriller", "suspense"}},
	{"Biography", []string{"biography", "autobiography", "memoir"}},
	{"History", []string{"history", "historical"}},
	{"Philosophy", []string{"philosophy"}},
	{"Religion", []string{"religion", "theology"}},
	{"Science", []string{"science", "physics", "biology", "chemistry"}},
	{"Art", []string{"art", "painting", "photography"}},
	{"Poetry", []string{"poetry", "poems"}},
	{"Drama", []string{"drama", "plays"}},
	{"Children", []string{"children", "juvenile"}},
	{"Fiction", []string{"fiction", "novel"}},
}

// GenreFromTags maps a set of catalog tags to a genre, or returns empty if
// none of the tags match the table.
func GenreFromTags(tags []string) string {
	for _, entry := range genreMapping {
		for _, tag := range tags {
			lower := strings.ToLower(tag)
			for _, keyword := range entry.Keywords {
				if strings.Contains(lower, keyword) {
					return entry.Genre
				}
			}
		}
	}
	return ""
}
