// SPDX-License-Identifier: GPL-3.0-or-later

package respfut_test

import (
	"fmt"
	"time"

	"github.com/bassosimone/respfut"
	"github.com/bassosimone/runtimex"
)

// This example shows the bridge between the push and the pull side of a
// future: one goroutine drives it to completion while another one blocks
// waiting for the materialized value.
func ExampleFuture() {
	// Create the shared configuration for respfut types.
	cfg := respfut.NewConfig()

	// The handler materializes the final value on completion.
	handler := &respfut.FuncHandler[string]{
		OnCompletedFunc: func() (string, error) {
			return "X", nil
		},
	}

	// Create the pending future with a one-minute budget.
	fut := respfut.NewFuture[string](
		cfg, nil, nil, handler, nil, time.Minute, respfut.DefaultSLogger())

	// The push side: some other goroutine completes the transfer.
	go fut.Done()

	// The pull side: block until the value is ready.
	value := runtimex.PanicOnError1(fut.Wait())
	fmt.Println(value)

	// Output:
	// X
}
