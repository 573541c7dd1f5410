package endpointing

import (
	"fmt"

	"github.com/jinzhu/copier"
)

// Strategy selects the endpointing decision policy.
type Strategy string

const (
	// StrategyInvorto is the adaptive default.
	StrategyInvorto Strategy = "invorto"
	// StrategyLiveKit is a conservative fixed-threshold policy.
	StrategyLiveKit Strategy = "livekit"
	// StrategyOff never signals end of turn; the caller ends turns
	// externally.
	StrategyOff Strategy = "off"
)

type Config struct {
	Strategy Strategy

	SampleRate int

	// SilenceEnergyFloor is the per-chunk mean-square energy below which
	// a chunk counts as silent.
	SilenceEnergyFloor float64

	// SilenceThresholdMs is the base silence threshold for the invorto
	// strategy before word-count and rate adjustments.
	SilenceThresholdMs int

	// MinWords is how many words a transcript needs before a sentence
	// terminator counts as completion.
	MinWords int

	// LiveKitSilenceMs is the fixed silence threshold for the livekit
	// strategy.
	LiveKitSilenceMs int

	// ConfidenceThreshold gates the livekit strategy's transcript-based
	// early exit.
	ConfidenceThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Strategy:            StrategyInvorto,
		SampleRate:          16000,
		SilenceEnergyFloor:  0.01,
		SilenceThresholdMs:  1500,
		MinWords:            3,
		LiveKitSilenceMs:    2000,
		ConfidenceThreshold: 0.8,
	}
}

type Option func(*Detector)

func WithConfig(config Config) Option {
	return func(d *Detector) {
		merged := DefaultConfig()
		if err := mergeConfig(&merged, config); err == nil {
			d.config = merged
		}
	}
}

func WithStrategy(strategy Strategy) Option {
	return func(d *Detector) { d.config.Strategy = strategy }
}

// WithConfigChangeCallback registers the consumer of configuration change
// notifications emitted by UpdateConfig.
func WithConfigChangeCallback(callback func(Config)) Option {
	return func(d *Detector) {
		if callback != nil {
			d.onConfigChange = callback
		}
	}
}

// UpdateConfig merges the non-zero fields of partial into the current
// configuration and emits a change notification.
func (d *Detector) UpdateConfig(partial Config) error {
	d.mu.Lock()

	merged := d.config
	if err := mergeConfig(&merged, partial); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to merge endpointing config: %w", err)
	}
	d.config = merged
	callback := d.onConfigChange
	d.mu.Unlock()

	callback(merged)
	return nil
}

// Config returns a copy of the current configuration.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

func mergeConfig(dst *Config, partial Config) error {
	return copier.CopyWithOption(dst, &partial, copier.Option{IgnoreEmpty: true})
}
