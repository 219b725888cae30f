package manifest

import "strings"

// Playlist tags this tool cares about. Everything else is passed through
// untouched.
const (
	tagStreamInf = "#EXT-X-STREAM-INF"
	tagKey       = "#EXT-X-KEY"
)

// LineKind is the closed set of playlist line classifications.
type LineKind int

const (
	// LineBlank is an empty (or whitespace-only) line.
	LineBlank LineKind = iota
	// LineDirective is any comment or tag line other than the ones below,
	// including duration and timing metadata. Copied verbatim on rewrite.
	LineDirective
	// LineKey is an #EXT-X-KEY directive carrying an attribute list.
	LineKey
	// LineStreamInf is an #EXT-X-STREAM-INF variant directive; its URI is the
	// next non-blank line.
	LineStreamInf
	// LineURI is a bare reference line (a segment or variant URI).
	LineURI
)

// Line is one classified playlist line. Raw is the trimmed original text.
type Line struct {
	Kind LineKind
	Raw  string
}

// Classify tags a single playlist line. The same classification drives both
// the parsing pass and the rewrite pass, so the two can never disagree about
// what a line is.
func Classify(raw string) Line {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Line{Kind: LineBlank, Raw: trimmed}
	case strings.HasPrefix(trimmed, tagKey):
		return Line{Kind: LineKey, Raw: trimmed}
	case strings.HasPrefix(trimmed, tagStreamInf):
		return Line{Kind: LineStreamInf, Raw: trimmed}
	case strings.HasPrefix(trimmed, "#"):
		return Line{Kind: LineDirective, Raw: trimmed}
	default:
		return Line{Kind: LineURI, Raw: trimmed}
	}
}

// ClassifyAll splits a playlist into classified lines.
func ClassifyAll(text string) []Line {
	rawLines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	lines := make([]Line, 0, len(rawLines))
	for _, raw := range rawLines {
		lines = append(lines, Classify(raw))
	}
	return lines
}
