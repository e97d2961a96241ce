// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import "time"

// Config holds common configuration for respfut types.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// ChunkSize is the body fragment size used by [*Dispatcher].
	//
	// Set by [NewConfig] to 4096.
	ChunkSize int

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// ReapInterval is how often [*Reaper] probes a watched future.
	//
	// Set by [NewConfig] to one second.
	ReapInterval time.Duration

	// ResponseTimeout bounds waiting for a response and is also the
	// idle-liveness budget used by [*Future.HasExpired].
	//
	// Set by [NewConfig] to one minute.
	ResponseTimeout time.Duration

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		ChunkSize:       4096,
		ErrClassifier:   DefaultErrClassifier,
		ReapInterval:    time.Second,
		ResponseTimeout: time.Minute,
		TimeNow:         time.Now,
	}
}
