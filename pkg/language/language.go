package language

import "github.com/abadojack/whatlanggo"

// DefaultConfidenceThreshold is the minimum detection confidence required
// before a detected language is trusted.
const DefaultConfidenceThreshold = 0.8

// iso6391 maps whatlanggo's ISO 639-3 codes to the two-letter ISO 639-1
// codes used in dc:language elements, for the languages books commonly
// appear in. Languages without a 639-1 code fall back to the 639-3 code.
var iso6391 = map[string]string{
	"ara": "ar",
	"ces": "cs",
	"dan": "da",
	"deu": "de",
	"ell": "el",
	"eng": "en",
	"fin": "fi",
	"fra": "fr",
	"heb": "he",
	"hin": "hi",
	"hun": "hu",
	"ind": "id",
	"ita": "it",
	"jpn": "ja",
	"kor": "ko",
	"nld": "nl",
	"nob": "no",
	"pol": "pl",
	"por": "pt",
	"ron": "ro",
	"rus": "ru",
	"spa": "es",
	"swe": "sv",
	"tur": "tr",
	"ukr": "uk",
	"vie": "vi",
	"zho": "zh",
}

// Detect guesses the language of a text sample and returns its ISO 639-1
// code. It returns ok=false when the sample is too short or the detection
// confidence is below threshold.
func Detect(sample string, threshold float64) (string, bool) {
	if len(sample) < 20 {
		return "", false
	}

	info := whatlanggo.Detect(sample)
	if !info.IsReliable() || info.Confidence < threshold {
		return "", false
	}

	code := whatlanggo.LangToString(info.Lang)
	if short, ok := iso6391[code]; ok {
		return short, true
	}
	return code, true
}
