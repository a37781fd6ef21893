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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	cur := NewCursor([]byte{1, 2, 3, 4, 5})
	require.Equal(t, 5, cur.Remaining())

	b, ok := cur.ReadByte()
	require.True(t, ok)
	require.Equal(t, byte(1), b)

	require.Equal(t, []byte{2, 3}, cur.View(2))
	require.Equal(t, uint(1), cur.Consumed())

	dst := make([]byte, 3)
	require.Equal(t, 3, cur.ReadInto(dst))
	require.Equal(t, []byte{2, 3, 4}, dst)

	require.Equal(t, 1, cur.Skip(10))
	require.Equal(t, 0, cur.Remaining())

	_, ok = cur.ReadByte()
	require.False(t, ok)
}

// frame wraps a payload in the sub-block convention.
func frame(payload []byte) []byte {
	sw := NewSubBlockWriter()
	out := sw.Append(nil, payload)
	return sw.Close(out)
}

func TestSubBlockRoundTrip(t *testing.T) {
	for _, length := range []int{0, 1, 254, 255, 256, 1000} {
		payload := bytes.Repeat([]byte{0xAB}, length)
		wire := frame(payload)

		rd := NewSubBlockReader()
		cur := NewCursor(wire)
		require.True(t, rd.ReadAll(cur))
		require.Equal(t, payload, rd.Data())
		require.Equal(t, 0, cur.Remaining())
	}
}

func TestSubBlockReaderSplit(t *testing.T) {
	payload := make([]byte, 700)

	for i := range payload {
		payload[i] = byte(i)
	}

	wire := frame(payload)

	// Resumability must not depend on where the input splits
	for split := 0; split <= len(wire); split++ {
		rd := NewSubBlockReader()
		done := rd.ReadAll(NewCursor(wire[:split]))
		require.Equal(t, split == len(wire), done)
		require.True(t, rd.ReadAll(NewCursor(wire[split:])))
		require.Equal(t, payload, rd.Data())
	}
}

func TestSubBlockBufferConsume(t *testing.T) {
	payload := bytes.Repeat([]byte{7}, 300)
	wire := frame(payload)

	rd := NewSubBlockReader()
	cur := NewCursor(wire)
	total := 0

	for !rd.Done() {
		chunk := rd.Buffer(cur)

		if len(chunk) == 0 {
			break
		}

		// Consume in small pieces
		n := 11

		if n > len(chunk) {
			n = len(chunk)
		}

		total += n
		rd.Consume(cur, n)
	}

	require.True(t, rd.Done())
	require.Equal(t, len(payload), total)
}

func TestSubBlockSeed(t *testing.T) {
	// A seeded chain starts mid sub-block: 4 payload bytes, then a second
	// sub-block, then the terminator
	wire := []byte{10, 11, 12, 13, 2, 20, 21, 0}
	rd := NewSubBlockReader()
	rd.Seed(4)
	cur := NewCursor(wire)
	require.True(t, rd.ReadAll(cur))
	require.Equal(t, []byte{10, 11, 12, 13, 20, 21}, rd.Data())
	require.Equal(t, 0, cur.Remaining())
}

func TestSubBlockWriterBoundaries(t *testing.T) {
	sw := NewSubBlockWriter()
	out := sw.Append(nil, bytes.Repeat([]byte{1}, 255))
	require.Equal(t, 256, len(out))
	require.Equal(t, byte(255), out[0])

	// A partial block stays buffered until Close
	out = sw.Append(out, []byte{2, 3})
	require.Equal(t, 256, len(out))

	out = sw.Close(out)
	require.Equal(t, []byte{2, 2, 3, 0}, out[256:])
}
