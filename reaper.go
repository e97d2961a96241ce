// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Expirable is the subset of [*Future] needed by the [*Reaper].
type Expirable interface {
	// HasExpired reports whether the future has gone silent for
	// longer than its budget.
	HasExpired() bool

	// Abort records terminal failure with the given cause.
	Abort(cause error)

	// SpanID identifies the transfer in structured logs.
	SpanID() string
}

var _ Expirable = &Future[string]{}

// NewReaper returns a new [*Reaper].
//
// The cfg argument contains the common configuration for respfut types.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewReaper(cfg *Config, logger SLogger) *Reaper {
	return &Reaper{
		ErrClassifier: cfg.ErrClassifier,
		Interval:      cfg.ReapInterval,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// Reaper sweeps futures that have gone silent.
//
// Each [*Reaper.Watch] call owns one goroutine that periodically probes
// [Expirable.HasExpired]. On expiry it aborts the future and closes the
// associated connection so that blocked I/O unwinds. There is no shared
// registry: every watch is independent and stops either when it fires
// or when its [Watchdog] is cancelled.
//
// Arm a watch right after dispatching a request:
//
//	fut.SetWatchdog(reaper.Watch(fut, conn))
//
// so that the future's terminal transition cancels the watch and no
// stale check fires after the result is known.
//
// All fields are safe to modify after construction but before the
// first call to [*Reaper.Watch].
type Reaper struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewReaper] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Interval is how often a watched future is probed.
	//
	// Set by [NewReaper] from [Config.ReapInterval].
	Interval time.Duration

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewReaper] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewReaper] from [Config.TimeNow].
	TimeNow func() time.Time
}

// Watch starts probing the given future for idle expiry and returns the
// [Watchdog] that stops the probe.
//
// The conn argument is the connection to close when the future expires,
// so that in-flight I/O fails promptly; pass nil when there is nothing
// to close. Closing relies on the [net.ErrClosed] pattern: closing an
// already-closed connection is harmless.
//
// The returned watchdog's Cancel stops the probe goroutine; the first
// call returns true.
func (r *Reaper) Watch(fut Expirable, conn io.Closer) Watchdog {
	stop := make(chan struct{})
	stopOnce := &sync.Once{}
	go r.probe(fut, conn, stop)
	return WatchdogFunc(func() bool {
		stopped := false
		stopOnce.Do(func() {
			close(stop)
			stopped = true
		})
		return stopped
	})
}

// probe is the per-watch goroutine body.
func (r *Reaper) probe(fut Expirable, conn io.Closer, stop <-chan struct{}) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return

		case <-ticker.C:
			if !fut.HasExpired() {
				continue
			}

			// The future went silent: record the timeout and unblock
			// any I/O stuck on the connection.
			err := fmt.Errorf("transfer went idle: %w", ErrTimeout)
			r.Logger.Info(
				"reaperExpired",
				slog.Any("err", err),
				slog.String("errClass", r.ErrClassifier.Classify(err)),
				slog.String("spanID", fut.SpanID()),
				slog.Time("t", r.TimeNow()),
			)
			fut.Abort(err)
			if conn != nil {
				conn.Close()
			}
			return
		}
	}
}
