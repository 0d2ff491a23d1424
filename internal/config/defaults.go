package config

const (
	DefaultModel       = "base.en"
	DefaultLanguage    = "en"
	DefaultMaxDuration = 30

	// MaxDuration bounds in seconds.
	MinDurationSeconds = 1
	MaxDurationSeconds = 120
)

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Model:              DefaultModel,
		Language:           DefaultLanguage,
		MaxDurationSeconds: DefaultMaxDuration,
		SilenceThreshold:   2,
		Indicator: IndicatorConfig{
			Enable: true,
			Sound:  true,
		},
	}
}
