package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SanitizeForFilename removes or replaces characters that are not safe for
// filenames.
func SanitizeForFilename(name string) string {
	// Replace smart quotes with plain ones.
	name = regexp.MustCompile(`[""]`).ReplaceAllString(name, `"`)
	name = regexp.MustCompile(`['']`).ReplaceAllString(name, `'`)

	// Strip characters that are invalid on some filesystem. Different
	// operating systems restrict different sets, so be conservative.
	invalidChars := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalidChars.ReplaceAllString(name, "")

	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")

	// Windows doesn't like trailing dots.
	name = strings.Trim(name, " .")

	if len(name) > 200 {
		name = name[:200]
		name = strings.Trim(name, " .")
	}

	return name
}

// SuggestedFilename builds the organized name for an enriched book:
// "year - authors - title.epub", dropping parts that are empty. The year is
// the first four-digit run in the publish date.
func SuggestedFilename(publishDate string, authors []string, title string) string {
	var parts []string

	if year := extractYear(publishDate); year != "" {
		parts = append(parts, year)
	}
	if len(authors) > 0 {
		names := make([]string, 0, len(authors))
		for _, a := range authors {
			if s := SanitizeForFilename(a); s != "" {
				names = append(names, s)
			}
		}
		if len(names) > 0 {
			parts = append(parts, strings.Join(names, ", "))
		}
	}
	if t := SanitizeForFilename(title); t != "" {
		parts = append(parts, t)
	}

	if len(parts) == 0 {
		return "Unknown.epub"
	}
	return strings.Join(parts, " - ") + ".epub"
}

var yearRegex = regexp.MustCompile(`\b(\d{4})\b`)

func extractYear(date string) string {
	return yearRegex.FindString(date)
}

// UniqueFilepath returns path, or path with a " (n)" counter inserted before
// the extension when the path already exists.
func UniqueFilepath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	nameWithoutExt := base[:len(base)-len(ext)]

	for i := 1; i < 1000; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", nameWithoutExt, i, ext))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}

	return path
}
