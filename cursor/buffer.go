package cursor

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/graphd/model"
)

// ErrDeadline is returned when serializing a cursor would exceed the
// request deadline. The caller may retry later; no state is lost.
var ErrDeadline = errors.New("cursor: deadline exceeded during freeze")

// Buffer accumulates a cursor rendering.
//
// A zero Buffer is ready to use. If Deadline is set, long-running freeze
// implementations poll Expired between subcomponents and abort with
// ErrDeadline once it passes.
type Buffer struct {
	sb strings.Builder

	// Deadline bounds how long a freeze may run. Zero means no deadline.
	Deadline time.Time
}

// Expired reports whether the freeze deadline has passed.
func (b *Buffer) Expired() bool {
	return !b.Deadline.IsZero() && time.Now().After(b.Deadline)
}

// WriteString appends raw text.
func (b *Buffer) WriteString(s string) {
	b.sb.WriteString(s)
}

// WriteChar appends a single separator or marker character. Not named
// WriteByte so the signature stays free of io.ByteWriter's error return,
// which no cursor renderer could act on.
func (b *Buffer) WriteChar(c byte) {
	b.sb.WriteByte(c)
}

// WriteUint appends a decimal unsigned integer.
func (b *Buffer) WriteUint(v uint64) {
	b.sb.WriteString(strconv.FormatUint(v, 10))
}

// WriteInt appends a decimal signed integer.
func (b *Buffer) WriteInt(v int64) {
	b.sb.WriteString(strconv.FormatInt(v, 10))
}

// WriteID appends an ID, rendering model.IDNone as "-".
func (b *Buffer) WriteID(id model.ID) {
	if id == model.IDNone {
		b.sb.WriteByte('-')
		return
	}
	b.WriteUint(uint64(id))
}

// Len returns the number of bytes rendered so far.
func (b *Buffer) Len() int {
	return b.sb.Len()
}

// String returns the rendered cursor.
func (b *Buffer) String() string {
	return b.sb.String()
}
