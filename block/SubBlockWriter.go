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

const _MAX_SUB_BLOCK_SIZE = 255

// SubBlockWriter  The inverse of SubBlockReader: splits a flat payload into
// length prefixed sub-blocks of at most 255 bytes. Only whole sub-blocks are
// ever emitted, so a suspended writer never leaves a structurally invalid
// prefix behind.
type SubBlockWriter struct {
	buf [_MAX_SUB_BLOCK_SIZE]byte
	n   int
}

func NewSubBlockWriter() *SubBlockWriter {
	return &SubBlockWriter{}
}

// Reset  Discard any buffered partial sub-block.
func (this *SubBlockWriter) Reset() {
	this.n = 0
}

// Append  Add payload bytes, appending every completed sub-block to out.
// Returns the extended out slice.
func (this *SubBlockWriter) Append(out []byte, p []byte) []byte {
	for len(p) > 0 {
		n := copy(this.buf[this.n:], p)
		this.n += n
		p = p[n:]

		if this.n == _MAX_SUB_BLOCK_SIZE {
			out = append(out, byte(_MAX_SUB_BLOCK_SIZE))
			out = append(out, this.buf[:]...)
			this.n = 0
		}
	}

	return out
}

// Close  Flush the partial sub-block, if any, and append the chain
// terminator to out. Returns the extended out slice.
func (this *SubBlockWriter) Close(out []byte) []byte {
	if this.n > 0 {
		out = append(out, byte(this.n))
		out = append(out, this.buf[:this.n]...)
		this.n = 0
	}

	return append(out, 0)
}
