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

// Package lzw implements the variable width, LSB first LZW variant used by
// the GIF image data sub-protocol. Codes start at minCodeSize+1 bits and
// grow up to 12 bits as the table fills. The code 2^minCodeSize clears the
// table, the next code ends the stream. Both directions suspend and resume
// on arbitrary input/output boundaries, including mid codeword.
package lzw

import (
	"errors"
	"fmt"
)

const (
	_MAX_CODE_WIDTH = 12
	_MAX_CODES      = 1 << _MAX_CODE_WIDTH
	_MIN_CODE_SIZE  = 2
	_MAX_CODE_SIZE  = 11
	_HASH_SIZE      = 5003
	_HASH_SHIFT     = 4

	// Encode stops consuming input once this much output is waiting for the
	// caller, keeping the internal buffer bounded with tiny destinations.
	_PENDING_LIMIT = 32
)

var (
	errInvalidCode = errors.New("invalid LZW code")
)

// Decoder decompresses a GIF LZW code stream into index bytes. Implements
// the gifstream.LzwDecoder contract.
type Decoder struct {
	minCodeSize uint
	width       uint
	clearCode   int
	endCode     int
	nextCode    int // next free table slot
	prevCode    int // previous data code, -1 right after a clear
	bits        uint32
	nbits       uint
	prefix      [_MAX_CODES]uint16
	suffix      [_MAX_CODES]byte
	first       [_MAX_CODES]byte
	stack       [_MAX_CODES]byte
	pending     []byte // decoded bytes that did not fit the last dst
	ended       bool
}

// NewDecoder creates a decoder ready for an image with the given minimum
// code size.
func NewDecoder(minCodeSize uint) (*Decoder, error) {
	this := new(Decoder)

	if err := this.Reset(minCodeSize); err != nil {
		return nil, err
	}

	return this, nil
}

// Reset prepares the decoder for a new image. The code size must be in
// [2..11] so that the first code width fits in 12 bits.
func (this *Decoder) Reset(minCodeSize uint) error {
	if minCodeSize < _MIN_CODE_SIZE || minCodeSize > _MAX_CODE_SIZE {
		return fmt.Errorf("invalid minimum code size: %d", minCodeSize)
	}

	this.minCodeSize = minCodeSize
	this.clearCode = 1 << minCodeSize
	this.endCode = this.clearCode + 1

	for i := 0; i < this.clearCode; i++ {
		this.suffix[i] = byte(i)
		this.first[i] = byte(i)
	}

	this.clear()
	this.bits = 0
	this.nbits = 0
	this.pending = this.pending[:0]
	this.ended = false
	return nil
}

func (this *Decoder) clear() {
	this.width = this.minCodeSize + 1
	this.nextCode = this.endCode + 1
	this.prevCode = -1
}

// Ended returns true once the end code has been decoded and all buffered
// output delivered.
func (this *Decoder) Ended() bool {
	return this.ended && len(this.pending) == 0
}

// Decode consumes compressed bytes from src and writes decoded index bytes
// to dst. Either buffer may be partially used: the returned counts tell the
// caller how far each side got. No input is consumed after the end code.
func (this *Decoder) Decode(src, dst []byte) (uint, uint, error) {
	dstIdx := uint(copy(dst, this.pending))
	this.pending = this.pending[dstIdx:]
	srcIdx := uint(0)

	for dstIdx < uint(len(dst)) && !this.ended {
		for this.nbits < this.width {
			if srcIdx >= uint(len(src)) {
				return srcIdx, dstIdx, nil
			}

			this.bits |= uint32(src[srcIdx]) << this.nbits
			srcIdx++
			this.nbits += 8
		}

		code := int(this.bits & ((1 << this.width) - 1))
		this.bits >>= this.width
		this.nbits -= this.width

		if code == this.clearCode {
			this.clear()
			continue
		}

		if code == this.endCode {
			this.ended = true
			break
		}

		if this.prevCode < 0 {
			// The first data code after a clear must be a literal
			if code >= this.clearCode {
				return srcIdx, dstIdx, errInvalidCode
			}
		} else if code > this.nextCode {
			return srcIdx, dstIdx, errInvalidCode
		}

		// Register the entry completed by this code, then grow the width
		// once the next free slot no longer fits. This mirrors the encoder,
		// which grows before registering.
		if this.prevCode >= 0 && this.nextCode < _MAX_CODES {
			if code == this.nextCode {
				this.suffix[this.nextCode] = this.first[this.prevCode]
			} else {
				this.suffix[this.nextCode] = this.first[code]
			}

			this.prefix[this.nextCode] = uint16(this.prevCode)
			this.first[this.nextCode] = this.first[this.prevCode]
			this.nextCode++
		}

		if this.nextCode >= (1<<this.width) && this.width < _MAX_CODE_WIDTH {
			this.width++
		}

		// Expand the code's string back to front
		pos := _MAX_CODES
		c := code

		for c > this.endCode {
			pos--
			this.stack[pos] = this.suffix[c]
			c = int(this.prefix[c])
		}

		pos--
		this.stack[pos] = this.suffix[c]
		s := this.stack[pos:]
		n := copy(dst[dstIdx:], s)
		dstIdx += uint(n)

		if n < len(s) {
			// Output full mid string, keep the tail for the next call
			this.pending = append(this.pending, s[n:]...)
		}

		this.prevCode = code
	}

	return srcIdx, dstIdx, nil
}

// Encoder compresses index bytes into a GIF LZW code stream. Implements the
// gifstream.LzwEncoder contract. Strings are tracked in an open addressing
// hash table keyed by (prefix code, next byte), after GIFCOMPR.
type Encoder struct {
	minCodeSize uint
	width       uint
	clearCode   int
	endCode     int
	nextCode    int // next free table slot
	ent         int // current prefix code, -1 before the first pixel
	bits        uint32
	nbits       uint
	htab        [_HASH_SIZE]int
	codetab     [_HASH_SIZE]int
	pending     []byte // compressed bytes that did not fit the last dst
	started     bool
	finished    bool
}

// NewEncoder creates an encoder ready for an image with the given minimum
// code size.
func NewEncoder(minCodeSize uint) (*Encoder, error) {
	this := new(Encoder)

	if err := this.Reset(minCodeSize); err != nil {
		return nil, err
	}

	return this, nil
}

// Reset prepares the encoder for a new image. The code size must be in
// [2..11].
func (this *Encoder) Reset(minCodeSize uint) error {
	if minCodeSize < _MIN_CODE_SIZE || minCodeSize > _MAX_CODE_SIZE {
		return fmt.Errorf("invalid minimum code size: %d", minCodeSize)
	}

	this.minCodeSize = minCodeSize
	this.clearCode = 1 << minCodeSize
	this.endCode = this.clearCode + 1
	this.clear()
	this.ent = -1
	this.bits = 0
	this.nbits = 0
	this.pending = this.pending[:0]
	this.started = false
	this.finished = false
	return nil
}

func (this *Encoder) clear() {
	for i := range this.htab {
		this.htab[i] = -1
	}

	this.width = this.minCodeSize + 1
	this.nextCode = this.endCode + 1
}

// Ended returns true once Finish has completed and all buffered output has
// been delivered.
func (this *Encoder) Ended() bool {
	return this.finished && len(this.pending) == 0
}

func (this *Encoder) drain(dst []byte) uint {
	n := copy(dst, this.pending)
	this.pending = this.pending[n:]
	return uint(n)
}

func (this *Encoder) put(b byte, dst []byte, dstIdx *uint) {
	if len(this.pending) == 0 && *dstIdx < uint(len(dst)) {
		dst[*dstIdx] = b
		*dstIdx++
		return
	}

	this.pending = append(this.pending, b)
}

func (this *Encoder) writeCode(code int, dst []byte, dstIdx *uint) {
	this.bits |= uint32(code) << this.nbits
	this.nbits += this.width

	for this.nbits >= 8 {
		this.put(byte(this.bits), dst, dstIdx)
		this.bits >>= 8
		this.nbits -= 8
	}
}

// Encode consumes index bytes from src and writes compressed bytes to dst.
// It stops early when too much output is waiting for a too small dst; the
// returned counts tell the caller how far each side got.
func (this *Encoder) Encode(src, dst []byte) (uint, uint, error) {
	if this.finished {
		return 0, this.drain(dst), nil
	}

	dstIdx := this.drain(dst)
	srcIdx := uint(0)

	if !this.started && len(src) > 0 {
		this.started = true
		this.writeCode(this.clearCode, dst, &dstIdx)
	}

next:
	for srcIdx < uint(len(src)) {
		if len(this.pending) > _PENDING_LIMIT {
			break
		}

		c := int(src[srcIdx])
		srcIdx++

		if this.ent < 0 {
			this.ent = c
			continue
		}

		fcode := (c << _MAX_CODE_WIDTH) + this.ent
		i := (c << _HASH_SHIFT) ^ this.ent

		if this.htab[i] == fcode {
			this.ent = this.codetab[i]
			continue
		}

		if this.htab[i] >= 0 {
			// Secondary probing, after G. Knott
			disp := _HASH_SIZE - i

			if i == 0 {
				disp = 1
			}

			for {
				if i -= disp; i < 0 {
					i += _HASH_SIZE
				}

				if this.htab[i] == fcode {
					this.ent = this.codetab[i]
					continue next
				}

				if this.htab[i] < 0 {
					break
				}
			}
		}

		this.emit(this.ent, dst, &dstIdx)
		this.ent = c

		if this.nextCode < _MAX_CODES {
			this.codetab[i] = this.nextCode
			this.htab[i] = fcode
			this.nextCode++
		} else {
			// Table full: clear and start over
			this.writeCode(this.clearCode, dst, &dstIdx)
			this.clear()
		}
	}

	return srcIdx, dstIdx, nil
}

// emit writes a data code, then grows the width once the next free slot no
// longer fits. The growth check runs before the caller registers its new
// entry, which keeps the width in lockstep with the decoder.
func (this *Encoder) emit(code int, dst []byte, dstIdx *uint) {
	this.writeCode(code, dst, dstIdx)

	if this.nextCode >= (1<<this.width) && this.width < _MAX_CODE_WIDTH {
		this.width++
	}
}

// Finish emits the last prefix code, the end code and any partial bit
// group. Call repeatedly until Ended returns true; dst may fill up.
func (this *Encoder) Finish(dst []byte) (uint, error) {
	dstIdx := this.drain(dst)

	if this.finished {
		return dstIdx, nil
	}

	if !this.started {
		this.started = true
		this.writeCode(this.clearCode, dst, &dstIdx)
	}

	if this.ent >= 0 {
		this.emit(this.ent, dst, &dstIdx)
		this.ent = -1
	}

	this.writeCode(this.endCode, dst, &dstIdx)

	if this.nbits > 0 {
		this.put(byte(this.bits), dst, &dstIdx)
		this.bits = 0
		this.nbits = 0
	}

	this.finished = true
	return dstIdx, nil
}
