// Package text provides the boundary-pattern segmentation used by the
// chunked Kokoro backend. Each segment is synthesized independently and
// the resulting waveforms are concatenated in input order.
package text

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSplitPattern splits text on blank-line style boundaries, matching
// the model pipeline's default chunking behavior.
const DefaultSplitPattern = `\n+`

// Segmenter splits input text into synthesis segments using a compiled
// boundary pattern.
type Segmenter struct {
	boundary   *regexp.Regexp
	whitespace *regexp.Regexp
}

// NewSegmenter compiles the given boundary pattern. An empty pattern
// selects DefaultSplitPattern.
func NewSegmenter(pattern string) (*Segmenter, error) {
	if pattern == "" {
		pattern = DefaultSplitPattern
	}

	boundary, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid split pattern %q: %w", pattern, err)
	}

	return &Segmenter{
		boundary:   boundary,
		whitespace: regexp.MustCompile(`\s+`),
	}, nil
}

// Segments splits text at the boundary pattern, collapses interior
// whitespace, and drops empty segments. Order follows the input text.
func (s *Segmenter) Segments(input string) []string {
	parts := s.boundary.Split(input, -1)
	segments := make([]string, 0, len(parts))

	for _, part := range parts {
		cleaned := strings.TrimSpace(s.whitespace.ReplaceAllString(part, " "))
		if cleaned == "" {
			continue
		}

		segments = append(segments, cleaned)
	}

	return segments
}
