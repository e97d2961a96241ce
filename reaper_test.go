// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExpirable is an [Expirable] with scripted expiry for testing.
type fakeExpirable struct {
	expired atomic.Bool

	mu     sync.Mutex
	aborts []error
}

var _ Expirable = &fakeExpirable{}

func (f *fakeExpirable) HasExpired() bool {
	return f.expired.Load()
}

func (f *fakeExpirable) Abort(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts = append(f.aborts, cause)
}

func (f *fakeExpirable) SpanID() string {
	return "test-span"
}

func (f *fakeExpirable) Aborts() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error{}, f.aborts...)
}

// NewReaper copies its configuration from the config.
func TestNewReaper(t *testing.T) {
	cfg := NewConfig()
	reaper := NewReaper(cfg, DefaultSLogger())

	require.NotNil(t, reaper)
	assert.Equal(t, cfg.ReapInterval, reaper.Interval)
}

// Watch aborts an expired future with a timeout cause and closes its
// connection, then stops probing.
func TestReaperExpiry(t *testing.T) {
	cfg := NewConfig()
	cfg.ReapInterval = 5 * time.Millisecond
	logger, records := newCapturingLogger()
	reaper := NewReaper(cfg, logger)

	closed := make(chan bool, 1)
	conn := &netstub.FuncConn{
		CloseFunc: func() error {
			closed <- true
			return nil
		},
	}

	fut := &fakeExpirable{}
	fut.expired.Store(true)
	reaper.Watch(fut, conn)

	waitClose := func() bool {
		return <-closed
	}
	assert.Eventually(t, waitClose, time.Second, 5*time.Millisecond)

	aborts := fut.Aborts()
	require.Len(t, aborts, 1)
	assert.ErrorIs(t, aborts[0], ErrTimeout)

	// The expiry was logged with the future's span ID.
	require.NotEmpty(t, *records)
	assert.Equal(t, "reaperExpired", (*records)[0].Message)
}

// Watch tolerates a nil connection.
func TestReaperExpiryNilConn(t *testing.T) {
	cfg := NewConfig()
	cfg.ReapInterval = 5 * time.Millisecond
	reaper := NewReaper(cfg, DefaultSLogger())

	fut := &fakeExpirable{}
	fut.expired.Store(true)
	reaper.Watch(fut, nil)

	expired := func() bool {
		return len(fut.Aborts()) > 0
	}
	assert.Eventually(t, expired, time.Second, 5*time.Millisecond)
}

// A future that keeps touching is never reaped.
func TestReaperLiveFuture(t *testing.T) {
	cfg := NewConfig()
	cfg.ReapInterval = 5 * time.Millisecond
	reaper := NewReaper(cfg, DefaultSLogger())

	fut := &fakeExpirable{} // never expires
	wd := reaper.Watch(fut, nil)
	defer wd.Cancel()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, fut.Aborts())
}

// Cancelling the watchdog stops the probe before it fires; the first
// cancel returns true and later cancels return false.
func TestReaperCancel(t *testing.T) {
	cfg := NewConfig()
	cfg.ReapInterval = 5 * time.Millisecond
	reaper := NewReaper(cfg, DefaultSLogger())

	fut := &fakeExpirable{}
	wd := reaper.Watch(fut, nil)

	assert.True(t, wd.Cancel())
	assert.False(t, wd.Cancel())

	// Expiring after cancellation must not abort.
	fut.expired.Store(true)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, fut.Aborts())
}

// End to end: a real future armed with a reaper watchdog gets aborted
// once it goes silent, and its terminal transition stops the probe.
func TestReaperWithFuture(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	timeNow := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	cfg := NewConfig()
	cfg.ReapInterval = 5 * time.Millisecond
	cfg.TimeNow = timeNow
	reaper := NewReaper(cfg, DefaultSLogger())

	handler := &recordingHandler{value: "X"}
	fut := NewFuture(cfg, nil, nil, Handler[string](handler), nil, 10*time.Millisecond, DefaultSLogger())
	fut.SetWatchdog(reaper.Watch(fut, nil))

	// Make the future silent beyond its budget.
	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()

	expired := func() bool {
		return fut.IsDone()
	}
	assert.Eventually(t, expired, time.Second, 5*time.Millisecond)

	_, err := fut.WaitTimeout(time.Second)
	require.ErrorIs(t, err, ErrTimeout)
	require.NotEmpty(t, handler.Failures())
	assert.ErrorIs(t, handler.Failures()[0], ErrTimeout)
}
