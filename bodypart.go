package respfut

import (
	"io"
	"sync/atomic"
)

// BodyPart is a lazy, once-only snapshot of a body fragment.
//
// The underlying source can be read meaningfully at most once. Bytes
// copies it into an owned buffer on first use and returns the same
// buffer thereafter; WriteTo streams the source directly to a sink
// without going through the snapshot. The two paths are independent:
// calling both is legal but the second one observes a drained source.
//
// A part delivered to [Handler.OnBodyPart] is only valid until the
// callback returns; take the snapshot before returning if the bytes
// are needed later.
//
// Construct using [NewBodyPart].
type BodyPart struct {
	// src is the fragment source, meaningfully readable once.
	src io.Reader

	// snap holds the snapshot once taken; first writer wins.
	snap atomic.Pointer[bodySnapshot]
}

// bodySnapshot is the result of draining the source, successful or not.
type bodySnapshot struct {
	data []byte
	err  error
}

// NewBodyPart returns a new [*BodyPart] reading from the given source.
func NewBodyPart(src io.Reader) *BodyPart {
	return &BodyPart{
		src:  src,
		snap: atomic.Pointer[bodySnapshot]{},
	}
}

// Bytes returns the fragment bytes, copying them out of the source on
// the first call and serving the cached snapshot on subsequent calls.
//
// A read failure is cached like a successful snapshot: retrying does not
// re-read the drained source, it returns the same error again.
func (p *BodyPart) Bytes() ([]byte, error) {
	if snap := p.snap.Load(); snap != nil {
		return snap.data, snap.err
	}
	data, err := io.ReadAll(p.src)
	p.snap.CompareAndSwap(nil, &bodySnapshot{data: data, err: err})
	snap := p.snap.Load()
	return snap.data, snap.err
}

// WriteTo streams the fragment directly to the sink, bypassing the
// snapshot, and returns the number of bytes written.
func (p *BodyPart) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, p.src)
}

var _ io.WriterTo = &BodyPart{}
