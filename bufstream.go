// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream

import (
	"io"

	"github.com/pkg/errors"
)

// bufGrowthRate is the minimum factor the buffer capacity grows by.
const bufGrowthRate = 1.2

// Buffer is a growable in-memory byte store with an explicit logical length
// and a read/write cursor. It is the storage primitive behind BufStream.
//
// A Buffer owns its storage exclusively until Detach transfers it out.
// It is not safe for concurrent use.
type Buffer struct {
	data   []byte // allocated storage; len(data) is the capacity
	length int    // logical used size, <= len(data)
	cursor int    // current read/write offset
}

// NewBuffer returns a Buffer holding a private copy of p.
// The caller's slice is never retained or mutated.
func NewBuffer(p []byte) *Buffer {
	data := make([]byte, len(p))
	copy(data, p)
	return &Buffer{data: data, length: len(p)}
}

// NewBufferSize returns an empty Buffer with the given initial capacity.
func NewBufferSize(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the logical length of the buffer.
func (b *Buffer) Len() int { return b.length }

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// ensure grows the storage so that at least n bytes fit at the cursor.
// Existing bytes in [0, length) are preserved, the added region is zeroed.
// Any slice previously returned by Detach or held into data is unaffected;
// growth allocates fresh storage.
func (b *Buffer) ensure(n int) {
	if len(b.data)-b.cursor >= n {
		return
	}
	newCap := int(float64(len(b.data)) * bufGrowthRate)
	if m := len(b.data) + n; newCap < m {
		newCap = m
	}
	if m := b.cursor + n; newCap < m {
		newCap = m
	}
	data := make([]byte, newCap)
	copy(data, b.data[:b.length])
	b.data = data
}

// Detach transfers the underlying storage, truncated to the logical length,
// out of the buffer. The buffer is reset to empty and will not touch the
// returned slice again; Detach is effectively single-use.
func (b *Buffer) Detach() []byte {
	p := b.data[:b.length:b.length]
	b.data = nil
	b.length = 0
	b.cursor = 0
	return p
}

// SeekOrigin is the reference point for Stream.Seek.
type SeekOrigin int

const (
	// SeekBegin seeks relative to the start of the stream.
	SeekBegin SeekOrigin = iota
	// SeekCurrent seeks relative to the current position.
	SeekCurrent
	// SeekEnd seeks backward from the end of the stream: the new position
	// is length - offset. Note that this differs from io.SeekEnd, which
	// adds the (usually negative) offset to the length. IOStream converts
	// between the two conventions.
	SeekEnd
)

// Stream is the capability contract a metadata codec consumes: an always
// seekable, readable and writable stream. No operation fails for in-range
// use; out-of-capacity writes grow the underlying storage and an
// out-of-range position is only observed on the next read or write.
type Stream interface {
	CanSeek() bool
	CanRead() bool
	CanWrite() bool

	// Length returns the current logical length.
	Length() int64
	// Position returns the current cursor.
	Position() int64

	// Read copies up to len(p) bytes at the cursor into p, advances the
	// cursor and returns the number of bytes copied; 0 means end of stream.
	Read(p []byte) int
	// Write copies p into the stream at the cursor, growing as needed,
	// and advances the cursor. The logical length becomes the maximum of
	// its old value and the new cursor; it never shrinks.
	Write(p []byte)
	// Seek moves the cursor. No bounds checking is performed.
	Seek(offset int64, origin SeekOrigin)
	// Flush is a no-op for memory-resident streams.
	Flush()
}

// BufStream is a Stream over a single Buffer.
type BufStream struct {
	buf *Buffer
}

// NewBufStream returns a BufStream seeded with a private copy of p.
func NewBufStream(p []byte) *BufStream {
	return &BufStream{buf: NewBuffer(p)}
}

// NewBufStreamSize returns an empty BufStream with the given initial capacity.
func NewBufStreamSize(capacity int) *BufStream {
	return &BufStream{buf: NewBufferSize(capacity)}
}

// CanSeek implements Stream.
func (s *BufStream) CanSeek() bool { return true }

// CanRead implements Stream.
func (s *BufStream) CanRead() bool { return true }

// CanWrite implements Stream.
func (s *BufStream) CanWrite() bool { return true }

// Length implements Stream.
func (s *BufStream) Length() int64 { return int64(s.buf.length) }

// Position implements Stream.
func (s *BufStream) Position() int64 { return int64(s.buf.cursor) }

// Read implements Stream. Reading at or past the logical length returns 0
// and leaves the cursor unchanged; so does reading at a cursor seeked
// before the start.
func (s *BufStream) Read(p []byte) int {
	b := s.buf
	if b.cursor < 0 || b.cursor >= b.length {
		return 0
	}
	n := copy(p, b.data[b.cursor:b.length])
	b.cursor += n
	return n
}

// Write implements Stream. A cursor seeked before the start is normalized
// to the start before writing.
func (s *BufStream) Write(p []byte) {
	b := s.buf
	if b.cursor < 0 {
		b.cursor = 0
	}
	b.ensure(len(p))
	copy(b.data[b.cursor:], p)
	b.cursor += len(p)
	if b.cursor > b.length {
		b.length = b.cursor
	}
}

// Seek implements Stream. See SeekEnd for the end-origin convention.
func (s *BufStream) Seek(offset int64, origin SeekOrigin) {
	b := s.buf
	switch origin {
	case SeekBegin:
		b.cursor = int(offset)
	case SeekCurrent:
		b.cursor += int(offset)
	case SeekEnd:
		b.cursor = b.length - int(offset)
	}
}

// Flush implements Stream.
func (s *BufStream) Flush() {}

// Detach returns the stream's bytes and resets the underlying buffer.
// The stream must not be expected to persist further writes into the
// returned slice.
func (s *BufStream) Detach() []byte {
	return s.buf.Detach()
}

// IOStream adapts a Stream to the standard io interfaces, so the stream can
// be handed to codec libraries expecting an io.ReadWriteSeeker. Read maps a
// zero-byte result to io.EOF, and Seek with io.SeekEnd converts the additive
// io convention to the stream's subtract-from-end convention.
func IOStream(s Stream) io.ReadWriteSeeker {
	return &ioStream{s: s}
}

type ioStream struct {
	s Stream
}

func (a *ioStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := a.s.Read(p)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (a *ioStream) Write(p []byte) (int, error) {
	a.s.Write(p)
	return len(p), nil
}

func (a *ioStream) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = a.s.Position() + offset
	case io.SeekEnd:
		pos = a.s.Length() + offset
	default:
		return 0, errors.Errorf("metastream: invalid whence %d", whence)
	}
	// io.Seeker requires rejecting a negative position without moving
	if pos < 0 {
		return 0, errors.Errorf("metastream: negative position %d", pos)
	}
	a.s.Seek(pos, SeekBegin)
	return pos, nil
}
