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

package gifstream

const (
	ERR_FORMAT          = 1
	ERR_COMPRESSION     = 2
	ERR_PALETTE_INDEX   = 3
	ERR_MISSING_PALETTE = 4
	ERR_INVALID_PARAM   = 5
	ERR_STREAM_CLOSED   = 6
	ERR_WRITE_SINK      = 7
	ERR_UNKNOWN         = 127
)

// LzwDecoder  A streaming decompressor for the GIF image data sub-protocol.
// It consumes compressed bytes in arbitrary sized pieces and produces decoded
// index bytes, suspending itself when it runs out of input or output space.
type LzwDecoder interface {
	// Reset  Prepare the decoder for a new image with the given minimum
	// code size. Return an error if the code size is out of range.
	Reset(minCodeSize uint) error

	// Decode  Consume compressed bytes from src and write decoded bytes to
	// dst. Return the number of bytes consumed from src and the number of
	// bytes written to dst. Returning (0, 0) with a non-empty src means the
	// output buffer is full; with an empty src it means more input is needed.
	// Once the end code has been seen no more input is consumed, only
	// internally buffered output is delivered.
	Decode(src, dst []byte) (uint, uint, error)

	// Ended  Return true once the end code has been decoded and all
	// buffered output has been delivered.
	Ended() bool
}

// LzwEncoder  The mirror of LzwDecoder: consumes index bytes, produces
// compressed bytes. Finish must be called (possibly several times) to flush
// the end code and any partial bit group.
type LzwEncoder interface {
	// Reset  Prepare the encoder for a new image with the given minimum
	// code size. Return an error if the code size is out of range.
	Reset(minCodeSize uint) error

	// Encode  Consume index bytes from src and write compressed bytes to
	// dst. Return the number of bytes consumed and the number written.
	Encode(src, dst []byte) (uint, uint, error)

	// Finish  Emit the final code, the end code and remaining bits into
	// dst. Call repeatedly until Ended returns true.
	Finish(dst []byte) (uint, error)

	// Ended  Return true once the stream has been finished and fully
	// delivered.
	Ended() bool
}
