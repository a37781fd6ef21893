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

// SubBlockReader  Parses the length prefixed sub-block convention: one
// length byte in [1..255] followed by that many payload bytes, the chain
// terminated by a zero length byte. The reader is resumable mid sub-block:
// framing state survives across cursor refills.
type SubBlockReader struct {
	remaining int // payload bytes left in the current sub-block
	done      bool
	data      []byte // accumulated payload, ReadAll mode only
}

func NewSubBlockReader() *SubBlockReader {
	return &SubBlockReader{data: make([]byte, 0, 256)}
}

// Reset  Prepare for a new sub-block chain, discarding accumulated payload.
func (this *SubBlockReader) Reset() {
	this.remaining = 0
	this.done = false
	this.data = this.data[:0]
}

// Seed  Start the chain as if a length byte of n had already been consumed.
// Used for skipping unknown blocks whose introducer doubles as a length.
func (this *SubBlockReader) Seed(n int) {
	this.remaining = n
	this.done = n == 0
}

// Done  Return true once the chain terminator has been consumed.
func (this *SubBlockReader) Done() bool {
	return this.done
}

// Buffer  Return a view of the payload bytes available in cur without
// consuming them, reading length bytes as needed. An empty result means
// either the chain is done or the cursor is exhausted.
func (this *SubBlockReader) Buffer(cur *Cursor) []byte {
	for this.remaining == 0 && !this.done {
		b, ok := cur.ReadByte()

		if !ok {
			return nil
		}

		if b == 0 {
			this.done = true
			return nil
		}

		this.remaining = int(b)
	}

	if this.done {
		return nil
	}

	return cur.View(this.remaining)
}

// Consume  Mark n payload bytes returned by Buffer as consumed.
func (this *SubBlockReader) Consume(cur *Cursor, n int) {
	cur.Skip(n)
	this.remaining -= n
}

// ReadAll  Accumulate payload bytes from cur into the internal buffer.
// Return true once the whole chain, terminator included, was consumed.
func (this *SubBlockReader) ReadAll(cur *Cursor) bool {
	for {
		chunk := this.Buffer(cur)

		if len(chunk) == 0 {
			return this.done
		}

		this.data = append(this.data, chunk...)
		this.Consume(cur, len(chunk))
	}
}

// Data  The payload accumulated by ReadAll. Valid until the next Reset.
func (this *SubBlockReader) Data() []byte {
	return this.data
}
