// Package boundbuf provides a bounded mutable byte sequence. Writes beyond
// the capacity fixed at construction are truncated, never grown, and the
// truncation is reported to the caller so size contracts stay explicit.
package boundbuf

// Buf is a bounded byte buffer.
type Buf struct {
	max int
	b   []byte
}

// New creates a buffer holding at most max bytes. max < 1 is coerced to 1.
func New(max int) *Buf {
	if max < 1 {
		max = 1
	}
	return &Buf{max: max, b: make([]byte, 0, max)}
}

// Set replaces the contents with p, truncating to the capacity.
// It reports whether truncation occurred.
func (b *Buf) Set(p []byte) bool {
	n := len(p)
	truncated := n > b.max
	if truncated {
		n = b.max
	}
	b.b = append(b.b[:0], p[:n]...)
	return truncated
}

// SetString replaces the contents with s, truncating to the capacity.
// It reports whether truncation occurred.
func (b *Buf) SetString(s string) bool {
	n := len(s)
	truncated := n > b.max
	if truncated {
		n = b.max
	}
	b.b = append(b.b[:0], s[:n]...)
	return truncated
}

// Bytes returns the current contents. The slice aliases the buffer and is
// valid until the next Set/SetString/Reset.
func (b *Buf) Bytes() []byte { return b.b }

// String returns a copy of the current contents.
func (b *Buf) String() string { return string(b.b) }

func (b *Buf) Len() int { return len(b.b) }
func (b *Buf) Cap() int { return b.max }

// Reset empties the buffer without releasing its storage.
func (b *Buf) Reset() { b.b = b.b[:0] }
