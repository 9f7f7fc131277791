package identifiers

import (
	"regexp"
	"strings"
	"unicode"
)

// Type represents the type of book identifier.
type Type string

const (
	TypeISBN10  Type = "isbn_10"
	TypeISBN13  Type = "isbn_13"
	TypeUnknown Type = ""
)

// isbnRegex matches ISBN-looking sequences in running text, with optional
// "ISBN" / "ISBN-13:" style prefixes and embedded hyphens or spaces.
var isbnRegex = regexp.MustCompile(`(?:ISBN(?:-1[03])?:?\s*)?(?:97[89][ -]?)?[0-9][0-9 -]{8,}[0-9Xx]`)

// DetectType determines whether a value is a valid ISBN-10 or ISBN-13.
func DetectType(value string) Type {
	normalized := NormalizeISBN(value)
	if len(normalized) == 13 && ValidateISBN13(normalized) {
		return TypeISBN13
	}
	if len(normalized) == 10 && ValidateISBN10(normalized) {
		return TypeISBN10
	}
	return TypeUnknown
}

// NormalizeISBN removes hyphens, spaces, and common prefixes from an ISBN.
func NormalizeISBN(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "ISBN-13:")
	value = strings.TrimPrefix(value, "ISBN-10:")
	value = strings.TrimPrefix(value, "ISBN:")
	value = strings.TrimPrefix(value, "ISBN")

	var result strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) || r == 'X' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// FindInText scans free-form text for ISBN-looking sequences and returns the
// first one with a valid checksum, normalized. ISBN-13 is preferred over
// ISBN-10 when both appear.
func FindInText(text string) string {
	isbn10 := ""
	for _, match := range isbnRegex.FindAllString(text, -1) {
		switch DetectType(match) {
		case TypeISBN13:
			return NormalizeISBN(match)
		case TypeISBN10:
			if isbn10 == "" {
				isbn10 = NormalizeISBN(match)
			}
		}
	}
	return isbn10
}

// ValidateISBN10 validates an ISBN-10 checksum.
// ISBN-10 uses modulo 11 with weights 10,9,8,7,6,5,4,3,2,1.
func ValidateISBN10(isbn string) bool {
	if len(isbn) != 10 {
		return false
	}

	var sum int
	for i, r := range isbn {
		var digit int
		if r == 'X' || r == 'x' {
			if i != 9 {
				return false // X only valid as last digit
			}
			digit = 10
		} else if unicode.IsDigit(r) {
			digit = int(r - '0')
		} else {
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

// ValidateISBN13 validates an ISBN-13 checksum.
// ISBN-13 uses alternating weights of 1 and 3.
func ValidateISBN13(isbn string) bool {
	if len(isbn) != 13 {
		return false
	}

	var sum int
	for i, r := range isbn {
		if !unicode.IsDigit(r) {
			return false
		}
		digit := int(r - '0')
		if i%2 == 0 {
			sum += digit
		} else {
			sum += digit * 3
		}
	}
	return sum%10 == 0
}
