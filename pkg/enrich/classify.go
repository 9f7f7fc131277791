package enrich

import "strings"

// classifierKeywords backs the last-resort genre strategy: scan the selected
// summary for domain vocabulary and score each genre by occurrence count.
// Ordered so ties break toward the more specific genre.
var classifierKeywords = []struct {
	Genre    string
	Keywords []string
}{
	{"Science-Fiction", []string{"space", "future", "robot", "alien", "planet", "galaxy", "spaceship"}},
	{"Fantasy", []string{"magic", "dragon", "wizard", "sword", "kingdom", "quest"}},
	{"Mystery", []string{"detective", "murder", "crime", "investigation", "clue", "suspect"}},
	{"Romance", []string{"love", "romance", "passion", "marriage", "heart"}},
	{"Thriller", []string{"conspiracy", "assassin", "spy", "chase", "hostage"}},
	{"History", []string{"war", "empire", "revolution", "dynasty", "ancient"}},
	{"Biography", []string{"memoir", "childhood", "upbringing", "her life", "his life"}},
}

// ClassifyText guesses a genre from free text by counting keyword
// occurrences per genre; the highest-scoring genre with at least one hit
// wins. Returns empty when nothing scores, never a guess.
func ClassifyText(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)

	best := ""
	bestScore := 0
	for _, entry := range classifierKeywords {
		score := 0
		for _, keyword := range entry.Keywords {
			score += strings.Count(lower, keyword)
		}
		if score > bestScore {
			best = entry.Genre
			bestScore = score
		}
	}
	return best
}
