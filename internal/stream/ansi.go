package stream

import "regexp"

// ansiPattern matches CSI sequences (cursor movement, erase-line, color) and
// the other two-byte escapes whisper-stream emits when rewriting its output
// line in place.
var ansiPattern = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)|[@-Z\\-_])`)

// StripANSI removes terminal escape sequences and leaves every other byte
// unchanged. Stripping is idempotent.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
