// SPDX-License-Identifier: GPL-3.0-or-later

// Package respfut provides asynchronous response futures for HTTP transfers.
//
// # Core Abstraction
//
// The package is built around a single type:
//
//	type Future[T any] struct { ... }
//
// A [*Future] is a per-request completion handle. The goroutine that issued
// a request holds the future and blocks on it; the goroutine performing the
// I/O drives it to exactly one terminal state: done, aborted, or cancelled.
// The future never interprets protocol bytes. It delegates materialization
// of the final value to a caller-supplied [Handler] and confines itself to
// the completion lifecycle plus a small set of cross-cutting flags that
// protocol-policy collaborators read and write.
//
// # Available Types
//
// Completion lifecycle:
//   - [Future]: the per-request result handle ([Future.Done], [Future.Abort],
//     [Future.Cancel], [Future.Wait], [Future.WaitTimeout])
//   - [Gate]: one-shot broadcast signal released at the first terminal
//     transition; usable on its own wherever a single-use latch is needed
//   - [Handler]: capability set invoked by whichever goroutine reaches a
//     terminal transition ([Handler.OnCompleted] produces the final value)
//   - [FuncHandler]: wraps functions as a [Handler] for ad-hoc behavior
//   - [BytesHandler]: stock handler accumulating the response body
//
// Transfer plumbing:
//   - [Request]: immutable request descriptor with a pre-buffered body
//   - [Dispatcher] and [Send]: perform one HTTP round trip per future and
//     drive the future to a terminal state, delivering the response and
//     each body fragment to the handler
//   - [BodyPart]: lazy, once-only snapshot of a body fragment
//   - [ConnTransport]: an [net/http.RoundTripper] over a single established
//     connection with ALPN-based h1/h2 selection
//
// Liveness:
//   - [Watchdog]: cancellable token for a scheduled timeout check
//   - [Reaper]: sweeps a future that has gone silent, aborting it and
//     closing its connection so blocked I/O unwinds
//
// # Completion Model
//
// A future starts pending and accepts exactly one terminal transition;
// concurrent [Future.Done], [Future.Abort], and [Future.Cancel] calls race
// and the first writer wins through a single atomic transition. A recorded
// failure takes priority over a later success attempt; a later failure
// after success is dropped. The ready signal is released exactly once, at
// the first terminal transition, and wakes every waiter.
//
// Each field that needs cross-goroutine visibility is an independent atomic
// cell rather than a share of one mutex: the hot path ([Future.Touch] on
// every received fragment, flag reads by policy code) must not contend with
// the rare terminal transition.
//
// # Observability
//
// All types support structured logging via [SLogger] (compatible with
// [log/slog]). By default logging is disabled; set the Logger field to a
// custom [*slog.Logger] to enable it. Error classification is configurable
// via [ErrClassifier].
//
// Futures emit terminal events (futureDone, futureAborted, futureCancelled)
// and the dispatcher emits a transferStart/transferDone span pair around
// each transfer. Completion events include t0 (start time), err, and
// errClass. Per-fragment events are emitted at [slog.LevelDebug]; all other
// events use [slog.LevelInfo].
//
// Each future carries a span ID generated with [NewSpanID] (a unique,
// time-ordered UUIDv7). All log entries from one transfer share the same
// spanID, enabling correlation across goroutines.
//
// # Timeout Philosophy
//
// Two timeout mechanisms coexist:
//
//   - The wait budget: [Future.WaitTimeout] bounds how long the caller
//     blocks. On expiry the future cancels itself, notifies the handler's
//     failure path, and returns [ErrTimeout].
//
//   - Idle liveness: collaborators call [Future.Touch] whenever forward
//     progress is observed; [Future.HasExpired] reports whether the future
//     has been silent longer than its budget. An external sweeper (see
//     [Reaper]) uses this probe to abort connections that have gone quiet,
//     so legitimate long transfers that keep touching are never reaped.
//
// # Design Boundaries
//
// This package intentionally stops at completion coordination. The
// following are out of scope and belong to higher-level packages:
//
//   - Connection pooling and reuse policy
//   - Redirect following and retry logic
//   - Authentication protocols
//   - TLS and handshake concerns
//
// The redirect counter, auth flag, and keep-alive flag on [*Future] exist
// so that such packages can record their decisions on the handle; the
// future itself enforces no invariant on them.
package respfut
