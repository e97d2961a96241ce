// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The FuncHandler zero value is a usable do-nothing handler.
func TestFuncHandlerZeroValue(t *testing.T) {
	handler := &FuncHandler[string]{}

	assert.NoError(t, handler.OnResponse(&http.Response{}))
	assert.NoError(t, handler.OnBodyPart(NewBodyPart(strings.NewReader("x"))))

	value, err := handler.OnCompleted()
	require.NoError(t, err)
	assert.Equal(t, "", value)

	// Must not panic with a nil failure func.
	handler.OnFailure(errors.New("discarded"))
}

// FuncHandler delegates each callback to the corresponding function.
func TestFuncHandlerDelegates(t *testing.T) {
	var (
		gotResponse *http.Response
		gotPart     []byte
		gotFailure  error
	)
	handler := &FuncHandler[string]{
		OnResponseFunc: func(resp *http.Response) error {
			gotResponse = resp
			return nil
		},
		OnBodyPartFunc: func(part *BodyPart) error {
			data, err := part.Bytes()
			gotPart = data
			return err
		},
		OnCompletedFunc: func() (string, error) {
			return "X", nil
		},
		OnFailureFunc: func(err error) {
			gotFailure = err
		},
	}

	resp := &http.Response{StatusCode: 200}
	require.NoError(t, handler.OnResponse(resp))
	assert.Same(t, resp, gotResponse)

	require.NoError(t, handler.OnBodyPart(NewBodyPart(strings.NewReader("frag"))))
	assert.Equal(t, []byte("frag"), gotPart)

	value, err := handler.OnCompleted()
	require.NoError(t, err)
	assert.Equal(t, "X", value)

	wantErr := errors.New("failure")
	handler.OnFailure(wantErr)
	assert.ErrorIs(t, gotFailure, wantErr)
}

// BytesHandler accumulates fragments and returns the concatenated body.
func TestBytesHandler(t *testing.T) {
	handler := &BytesHandler{}

	resp := &http.Response{StatusCode: 200}
	require.NoError(t, handler.OnResponse(resp))
	assert.Same(t, resp, handler.Response())

	require.NoError(t, handler.OnBodyPart(NewBodyPart(strings.NewReader("hello "))))
	require.NoError(t, handler.OnBodyPart(NewBodyPart(strings.NewReader("world"))))

	body, err := handler.OnCompleted()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), body)
}

// BytesHandler surfaces a fragment snapshot failure to the caller.
func TestBytesHandlerPartError(t *testing.T) {
	handler := &BytesHandler{}

	wantErr := errors.New("read error")
	err := handler.OnBodyPart(NewBodyPart(&failingReader{err: wantErr}))
	require.ErrorIs(t, err, wantErr)
}

// BytesHandler retains the last observed failure for inspection.
func TestBytesHandlerFailure(t *testing.T) {
	handler := &BytesHandler{}

	assert.NoError(t, handler.Failure())
	wantErr := errors.New("failure")
	handler.OnFailure(wantErr)
	assert.ErrorIs(t, handler.Failure(), wantErr)
}
