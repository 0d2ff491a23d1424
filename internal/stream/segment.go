// Package stream parses the line/overwrite output protocol of the external
// speech recognizer into discrete text segments.
package stream

import "strings"

// Marker tokens emitted by whisper-stream on its stdout. The start marker is
// console chrome and never reaches callers; the blank marker classifies a
// window of silence.
const (
	MarkerBlank = "[BLANK_AUDIO]"
	MarkerStart = "[Start speaking]"
)

// Segment is one recognized line of recognizer output. Final means the tool
// terminated the line with a newline; segments produced by Split are always
// final. Blank marks the silence marker rather than real speech.
type Segment struct {
	Text  string
	Final bool
	Blank bool
}

// Split turns one raw stdout chunk into ordered segments. Escape sequences
// are stripped, carriage-return sub-updates collapse to their last revision,
// blank lines and the start marker are dropped, and the blank-audio marker
// is classified rather than passed through as text.
func Split(raw string) []Segment {
	cleaned := StripANSI(raw)
	if cleaned == "" {
		return nil
	}

	var segments []Segment
	for _, line := range strings.Split(cleaned, "\n") {
		seg, ok := Classify(LastRevision(line))
		if !ok {
			continue
		}
		seg.Final = true
		segments = append(segments, seg)
	}
	return segments
}

// LastRevision returns the text after the final carriage return. The tool
// overwrites a pending line in place; only the last revision is meaningful.
func LastRevision(line string) string {
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		return line[i+1:]
	}
	return line
}

// Classify trims and classifies one revision of a line. It reports false for
// text that produces no segment: whitespace-only lines and the start marker.
func Classify(line string) (Segment, bool) {
	text := strings.TrimSpace(line)
	if text == "" || text == MarkerStart {
		return Segment{}, false
	}
	if text == MarkerBlank {
		return Segment{Text: text, Blank: true}, true
	}
	return Segment{Text: text}, true
}
