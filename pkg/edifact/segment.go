// Package edifact splits interchange lines into segments and interprets the
// segment tags the document builder understands.
package edifact

import (
	"errors"
	"strings"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

const (
	// ElementSeparator separates the element groups of a segment.
	ElementSeparator = '+'

	// ComponentSeparator separates the components inside a group.
	ComponentSeparator = ':'

	// SegmentTerminator ends a segment.
	SegmentTerminator = '\''

	// ReleaseCharacter makes the character after it literal.
	ReleaseCharacter = '?'
)

// ErrMissingElement is the cause of every structural segment error.
var ErrMissingElement = errors.New("edifact: missing element")

// RawSegment is one line decomposed into element groups and their components.
// Groups[0][0] is the tag.
type RawSegment struct {
	Raw    string
	Tag    string
	Groups [][]string
}

// Tokenize splits a segment line. A trailing unreleased terminator is
// dropped; released separators and terminators are kept as data with the
// release character removed.
func Tokenize(line string) RawSegment {
	trimmed := trimTerminator(line)

	var (
		groups    [][]string
		component []byte
		group     []string
	)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case c == ReleaseCharacter && i+1 < len(trimmed):
			i++
			component = append(component, trimmed[i])
		case c == ElementSeparator:
			groups = append(groups, append(group, string(component)))
			group, component = nil, component[:0]
		case c == ComponentSeparator:
			group = append(group, string(component))
			component = component[:0]
		default:
			component = append(component, c)
		}
	}
	groups = append(groups, append(group, string(component)))

	return RawSegment{Raw: trimmed, Tag: groups[0][0], Groups: groups}
}

// trimTerminator removes trailing terminators that are not released.
func trimTerminator(line string) string {
	for strings.HasSuffix(line, string(SegmentTerminator)) {
		releases := 0
		for i := len(line) - 2; i >= 0 && line[i] == ReleaseCharacter; i-- {
			releases++
		}
		if releases%2 == 1 {
			break
		}
		line = line[:len(line)-1]
	}
	return line
}

// Element returns component c of group g and whether it exists.
func (s RawSegment) Element(g, c int) (string, bool) {
	if g < 0 || g >= len(s.Groups) {
		return "", false
	}
	group := s.Groups[g]
	if c < 0 || c >= len(group) {
		return "", false
	}
	return group[c], true
}

// Optional returns component c of group g, or "" when it does not exist.
func (s RawSegment) Optional(g, c int) string {
	v, _ := s.Element(g, c)
	return v
}

// Required returns component c of group g or a structural error.
func (s RawSegment) Required(g, c int) (string, error) {
	v, ok := s.Element(g, c)
	if !ok {
		return "", ferrors.SegmentStructure(s.Tag, g, c, ErrMissingElement).
			WithContext("segment", s.Raw)
	}
	return v, nil
}

// HasGroup reports whether group g exists.
func (s RawSegment) HasGroup(g int) bool {
	return g >= 0 && g < len(s.Groups)
}

// Elements flattens the groups after the tag, joining components with the
// component separator.
func (s RawSegment) Elements() []string {
	if len(s.Groups) <= 1 {
		return nil
	}
	out := make([]string, 0, len(s.Groups)-1)
	for _, group := range s.Groups[1:] {
		out = append(out, strings.Join(group, string(ComponentSeparator)))
	}
	return out
}
