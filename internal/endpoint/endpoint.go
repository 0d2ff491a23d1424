// Package endpoint decides when a streaming transcription has hit the end of
// the utterance, based on consecutive windows of silence.
package endpoint

// DefaultThreshold is the number of consecutive silent windows that ends an
// utterance when the caller does not configure one.
const DefaultThreshold = 2

// Detector counts consecutive silence observations and fires exactly once
// when the configured threshold is reached. Any observed speech resets the
// count. Detector is not safe for concurrent use; the session drives it from
// a single goroutine.
type Detector struct {
	threshold int
	blanks    int
	fired     bool
}

// NewDetector returns a detector that fires after threshold consecutive
// silent windows. A threshold below 1 falls back to DefaultThreshold.
func NewDetector(threshold int) *Detector {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// ObserveBlank records one silent window. It returns true on the single
// observation that crosses the threshold; later observations return false
// until speech resets the detector.
func (d *Detector) ObserveBlank() bool {
	if d.fired {
		return false
	}
	d.blanks++
	if d.blanks >= d.threshold {
		d.fired = true
		return true
	}
	return false
}

// ObserveSpeech resets the silence count. A detector that already fired is
// re-armed, so a later run of silence can fire again.
func (d *Detector) ObserveSpeech() {
	d.blanks = 0
	d.fired = false
}
