package edifact

import (
	"bufio"
	"io"
	"strings"
)

const maxLineSize = 16 * 1024 * 1024

// unaLength is the length of "UNA:+.? '" including its terminator.
const unaLength = 9

// Scanner reads segments from an interchange stream. Each physical line may
// hold one segment or several terminator-separated segments; blank pieces
// are skipped. A terminator preceded by the release character belongs to the
// segment's data.
type Scanner struct {
	lines   *bufio.Scanner
	pending []string
	current string
	line    int
	count   int64
}

// NewScanner creates a scanner over r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Scanner{lines: s}
}

// Scan advances to the next segment.
func (s *Scanner) Scan() bool {
	for len(s.pending) == 0 {
		if !s.lines.Scan() {
			return false
		}
		s.line++
		s.pending = split(s.lines.Text())
	}
	s.current = s.pending[0]
	s.pending = s.pending[1:]
	s.count++
	return true
}

// Text returns the current segment without its terminator.
func (s *Scanner) Text() string { return s.current }

// Line returns the physical line number of the current segment.
func (s *Scanner) Line() int { return s.line }

// Count returns the number of segments scanned so far.
func (s *Scanner) Count() int64 { return s.count }

// Err returns the first read error.
func (s *Scanner) Err() error { return s.lines.Err() }

// split cuts a line at every terminator that is not released. Released
// characters are kept escaped for Tokenize.
func split(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	var (
		out   []string
		start int
	)
	emit := func(piece string) {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}
	// The service string advice names the separators itself, so its nine
	// characters are taken verbatim.
	if strings.HasPrefix(trimmed, "UNA") && len(trimmed) >= unaLength {
		emit(trimmed[:unaLength-1])
		start = unaLength
	}
	for i := start; i < len(trimmed); i++ {
		switch trimmed[i] {
		case ReleaseCharacter:
			i++
		case SegmentTerminator:
			emit(trimmed[start:i])
			start = i + 1
		}
	}
	if start < len(trimmed) {
		emit(trimmed[start:])
	}
	return out
}
