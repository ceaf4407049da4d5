package query

import (
	"regexp"
	"strings"
)

// padded matches the structural tokens surrounded with spaces before
// splitting. Two-character operators come first in the alternation so their
// characters are not split apart.
var padded = regexp.MustCompile(`(>=|<=|!=|[=<>(),])`)

// Tokenize splits a query string into tokens. Structural characters are
// padded with spaces so they stand alone; everything else is split on
// whitespace, so quoted literals cannot contain spaces or pad characters.
func Tokenize(input string) []string {
	return strings.Fields(padded.ReplaceAllString(input, " $1 "))
}
