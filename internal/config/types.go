// Package config loads murmur's settings from its JSON config file, an
// optional .env file, and MURMUR_* environment overrides, in that order of
// precedence (environment wins).
package config

import "fmt"

// Config is the full runtime configuration.
type Config struct {
	// Model is a model name like "base.en", resolved under the data
	// directory, or an explicit path to a ggml model file.
	Model string `json:"model" env:"MURMUR_MODEL"`

	// Language is the spoken-language hint passed to the recognizer.
	Language string `json:"language" env:"MURMUR_LANGUAGE"`

	// MaxDurationSeconds is the hard session deadline, clamped to 1-120.
	MaxDurationSeconds int `json:"max_duration" env:"MURMUR_MAX_DURATION"`

	// SilenceThreshold is the number of consecutive silent windows that
	// ends an utterance.
	SilenceThreshold int `json:"silence_threshold" env:"MURMUR_SILENCE_THRESHOLD"`

	StreamBinary  string `json:"stream_binary" env:"MURMUR_STREAM_BINARY"`
	OneShotBinary string `json:"oneshot_binary" env:"MURMUR_ONESHOT_BINARY"`
	RecordBinary  string `json:"record_binary" env:"MURMUR_RECORD_BINARY"`

	Indicator IndicatorConfig `json:"indicator"`
}

// IndicatorConfig controls the status helper and audio cues.
type IndicatorConfig struct {
	Enable bool   `json:"enable" env:"MURMUR_INDICATOR"`
	Binary string `json:"binary" env:"MURMUR_INDICATOR_BINARY"`
	Sound  bool   `json:"sound" env:"MURMUR_SOUND"`
}

// Warning is a non-fatal problem found while loading configuration, such as
// a value that had to be clamped.
type Warning struct {
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("config: %s: %s", w.Field, w.Message)
}
