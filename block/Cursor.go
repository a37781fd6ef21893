/*
Copyright 2019-2024 the gifstream authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package block

// Cursor  A position tracking view over one caller supplied input chunk.
// The consumed count tells the caller how much of the chunk was used before
// a suspension, so it can refill and resume.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining  Number of unconsumed bytes left in the chunk.
func (this *Cursor) Remaining() int {
	return len(this.buf) - this.pos
}

// Consumed  Number of bytes consumed so far.
func (this *Cursor) Consumed() uint {
	return uint(this.pos)
}

// ReadByte  Consume and return the next byte. The second return value is
// false when the chunk is exhausted.
func (this *Cursor) ReadByte() (byte, bool) {
	if this.pos >= len(this.buf) {
		return 0, false
	}

	b := this.buf[this.pos]
	this.pos++
	return b, true
}

// ReadInto  Copy up to len(dst) bytes into dst, consuming them. Return the
// number of bytes copied.
func (this *Cursor) ReadInto(dst []byte) int {
	n := copy(dst, this.buf[this.pos:])
	this.pos += n
	return n
}

// View  Return up to n unconsumed bytes without consuming them.
func (this *Cursor) View(n int) []byte {
	if rem := this.Remaining(); n > rem {
		n = rem
	}

	return this.buf[this.pos : this.pos+n]
}

// Skip  Consume up to n bytes. Return the number actually skipped.
func (this *Cursor) Skip(n int) int {
	if rem := this.Remaining(); n > rem {
		n = rem
	}

	this.pos += n
	return n
}
