package shared

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases value, strips diacritics and joins alphanumeric runs with dashes.
func Slugify(value string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), strings.ToLower(value))
	if err != nil {
		stripped = strings.ToLower(value)
	}
	return strings.Trim(slugSeparators.ReplaceAllString(stripped, "-"), "-")
}

// UniqueSlug returns Slugify(base), or the first "<slug>-N" for which taken reports false.
func UniqueSlug(base string, taken func(string) (bool, error)) (string, error) {
	root := Slugify(base)
	slug := root
	for n := 1; ; n++ {
		exists, err := taken(slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = root + "-" + strconv.Itoa(n)
	}
}
