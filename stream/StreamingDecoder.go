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

// Package stream implements incremental GIF decoding and encoding. The
// decoder is push driven: callers feed arbitrary input chunks and receive
// structural events. The encoder is pull driven: callers queue frames and
// read the encoded byte stream back.
package stream

import (
	"encoding/binary"
	"fmt"

	"github.com/gifstream/gifstream-go"
	"github.com/gifstream/gifstream-go/block"
	"github.com/gifstream/gifstream-go/lzw"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Decoder states. Each state owns one structural element of the container
// and is re-entered until its input requirement is met.
const (
	_STATE_SIGNATURE = iota
	_STATE_SCREEN_DESC
	_STATE_GLOBAL_PALETTE
	_STATE_INTRODUCER
	_STATE_EXT_LABEL
	_STATE_EXT_PAYLOAD
	_STATE_IMAGE_DESC
	_STATE_LOCAL_PALETTE
	_STATE_MIN_CODE_SIZE
	_STATE_IMAGE_DATA
	_STATE_IMAGE_RAW

	_MAX_HOLD = gifstream.MAX_COLORS * gifstream.PALETTE_CHANNELS
)

// DecoderOptions  Tuning knobs for a StreamingDecoder. The zero value is a
// lenient decoder that fully decompresses frames.
type DecoderOptions struct {
	// CheckFrameConsistency rejects frames whose rectangle leaves the
	// logical screen, whose pixels index past the active color table or
	// which have no color table at all.
	CheckFrameConsistency bool

	// AllowUnknownBlocks skips over unrecognized block introducers by
	// reading them as a sub-block chain instead of failing.
	AllowUnknownBlocks bool

	// RawFrameData keeps image data compressed: frames carry LzwData and
	// MinCodeSize instead of a pixel plane.
	RawFrameData bool

	// RequireEndCode rejects image data that ends without the LZW end of
	// information code.
	RequireEndCode bool

	Logger log.Logger
}

// StreamingDecoder  An incremental GIF decoder. Feed it input chunks with
// Update; it consumes what it can, surfaces structural events as they
// complete and suspends when input runs out. All framing state survives
// across calls, including mid LZW codeword.
type StreamingDecoder struct {
	state      int
	opts       DecoderOptions
	logger     log.Logger
	hold       [_MAX_HOLD]byte // staging for fixed size fields and palettes
	holdLen    int
	paletteLen int
	sub        *block.SubBlockReader
	lzw        *lzw.Decoder
	scratch    []byte // sink for decoded pixels past the declared plane
	version    string
	screen     *gifstream.ScreenDescriptor
	frame      *gifstream.Frame
	pixelPos   int
	rowsSeen   int
	extLabel   byte
	skipping   bool
	gce        gifstream.GraphicControl
	loopCount  int
	hasLoop    bool
	offset     uint64
	done       bool
	err        error
}

// NewStreamingDecoder creates a decoder positioned before the signature.
// opts may be nil for defaults.
func NewStreamingDecoder(opts *DecoderOptions) *StreamingDecoder {
	this := new(StreamingDecoder)

	if opts != nil {
		this.opts = *opts
	}

	this.logger = this.opts.Logger

	if this.logger == nil {
		this.logger = log.NewNopLogger()
	}

	this.state = _STATE_SIGNATURE
	this.sub = block.NewSubBlockReader()
	return this
}

// Version  The signature version, "GIF87a" or "GIF89a", once decoded.
func (this *StreamingDecoder) Version() string {
	return this.version
}

// Screen  The logical screen descriptor, nil until decoded.
func (this *StreamingDecoder) Screen() *gifstream.ScreenDescriptor {
	return this.screen
}

// LoopCount  The NETSCAPE2.0 animation loop count. The second return value
// is false when no such extension was seen; a count of 0 means forever.
func (this *StreamingDecoder) LoopCount() (int, bool) {
	return this.loopCount, this.hasLoop
}

// Finished  Return true once the trailer has been decoded.
func (this *StreamingDecoder) Finished() bool {
	return this.done
}

// Err  The sticky fatal error, nil while the stream is healthy.
func (this *StreamingDecoder) Err() error {
	return this.err
}

// Offset  Total number of input bytes consumed so far.
func (this *StreamingDecoder) Offset() uint64 {
	return this.offset
}

// Update consumes bytes from src and returns how many were used, plus a
// structural event when one completed. A nil event with no error means more
// input is needed; re-feed the unconsumed tail along with fresh data. Once
// a failure is returned, all further calls return the same error.
func (this *StreamingDecoder) Update(src []byte) (uint, *gifstream.Event, error) {
	if this.err != nil {
		return 0, nil, this.err
	}

	if this.done {
		return 0, nil, nil
	}

	cur := block.NewCursor(src)
	evt, err := this.run(cur)
	consumed := cur.Consumed()
	this.offset += uint64(consumed)

	if err != nil {
		this.err = err
		return consumed, nil, err
	}

	return consumed, evt, nil
}

func (this *StreamingDecoder) fail(cur *block.Cursor, code int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return NewCodecError(msg, code, this.offset+uint64(cur.Consumed()))
}

// fill stages bytes into the hold buffer until need are available.
func (this *StreamingDecoder) fill(cur *block.Cursor, need int) bool {
	if this.holdLen < need {
		this.holdLen += cur.ReadInto(this.hold[this.holdLen:need])
	}

	return this.holdLen == need
}

func (this *StreamingDecoder) run(cur *block.Cursor) (*gifstream.Event, error) {
	for {
		switch this.state {
		case _STATE_SIGNATURE:
			if !this.fill(cur, 6) {
				return nil, nil
			}

			if !gifstream.IsGifSignature(this.hold[:6]) {
				return nil, this.fail(cur, gifstream.ERR_FORMAT, "malformed GIF header")
			}

			this.version = string(this.hold[:6])
			this.holdLen = 0
			this.state = _STATE_SCREEN_DESC
			return gifstream.NewHeaderEvent(this.version), nil

		case _STATE_SCREEN_DESC:
			if !this.fill(cur, 7) {
				return nil, nil
			}

			flags := this.hold[4]
			sd := &gifstream.ScreenDescriptor{
				Width:           binary.LittleEndian.Uint16(this.hold[0:2]),
				Height:          binary.LittleEndian.Uint16(this.hold[2:4]),
				Background:      this.hold[5],
				AspectRatio:     this.hold[6],
				ColorResolution: (flags & gifstream.COLOR_RESOLUTION_MASK) >> 4,
			}
			this.screen = sd
			this.holdLen = 0

			if flags&gifstream.FLAG_GLOBAL_TABLE != 0 {
				this.paletteLen = gifstream.PaletteColors(flags) * gifstream.PALETTE_CHANNELS
				this.state = _STATE_GLOBAL_PALETTE
			} else {
				if flags&gifstream.TABLE_SIZE_MASK != 0 {
					return nil, this.fail(cur, gifstream.ERR_FORMAT, "global color table size set without a global color table")
				}

				this.state = _STATE_INTRODUCER
			}

			return gifstream.NewScreenDescriptorEvent(sd), nil

		case _STATE_GLOBAL_PALETTE:
			if !this.fill(cur, this.paletteLen) {
				return nil, nil
			}

			pal := make([]byte, this.paletteLen)
			copy(pal, this.hold[:this.paletteLen])
			this.screen.GlobalPalette = pal
			this.holdLen = 0
			this.state = _STATE_INTRODUCER
			return gifstream.NewGlobalPaletteEvent(pal), nil

		case _STATE_INTRODUCER:
			b, ok := cur.ReadByte()

			if !ok {
				return nil, nil
			}

			switch b {
			case gifstream.BLOCK_EXTENSION:
				this.state = _STATE_EXT_LABEL

			case gifstream.BLOCK_IMAGE:
				this.state = _STATE_IMAGE_DESC

			case gifstream.BLOCK_TRAILER:
				this.done = true
				level.Debug(this.logger).Log("msg", "stream complete", "offset", this.offset+uint64(cur.Consumed()))
				return gifstream.NewTrailerEvent(), nil

			default:
				if !this.opts.AllowUnknownBlocks {
					return nil, this.fail(cur, gifstream.ERR_FORMAT, "unknown block type: %#x", b)
				}

				// The stray byte is read as the length of a sub-block
				// chain and the whole chain is dropped
				this.sub.Reset()
				this.sub.Seed(int(b))
				this.skipping = true
				this.state = _STATE_EXT_PAYLOAD
			}

		case _STATE_EXT_LABEL:
			b, ok := cur.ReadByte()

			if !ok {
				return nil, nil
			}

			this.extLabel = b
			this.skipping = false
			this.sub.Reset()
			this.state = _STATE_EXT_PAYLOAD

		case _STATE_EXT_PAYLOAD:
			if !this.sub.ReadAll(cur) {
				return nil, nil
			}

			this.state = _STATE_INTRODUCER

			if this.skipping {
				this.skipping = false
				continue
			}

			payload := append([]byte(nil), this.sub.Data()...)

			switch this.extLabel {
			case gifstream.EXT_GRAPHIC_CONTROL:
				if len(payload) < 4 {
					return nil, this.fail(cur, gifstream.ERR_FORMAT, "malformed graphic control extension")
				}

				flags := payload[0]
				this.gce = gifstream.GraphicControl{
					Disposal:         (flags & gifstream.GC_DISPOSAL_MASK) >> 2,
					UserInput:        flags&gifstream.GC_USER_INPUT != 0,
					Delay:            binary.LittleEndian.Uint16(payload[1:3]),
					HasTransparency:  flags&gifstream.GC_TRANSPARENT_SET != 0,
					TransparentIndex: payload[3],
				}

			case gifstream.EXT_APPLICATION:
				if len(payload) >= 14 && string(payload[0:11]) == "NETSCAPE2.0" && payload[11] == 1 {
					this.loopCount = int(payload[12]) | int(payload[13])<<8
					this.hasLoop = true
				}
			}

			return gifstream.NewExtensionEvent(this.extLabel, payload), nil

		case _STATE_IMAGE_DESC:
			if !this.fill(cur, 9) {
				return nil, nil
			}

			flags := this.hold[8]
			f := &gifstream.Frame{
				Left:       binary.LittleEndian.Uint16(this.hold[0:2]),
				Top:        binary.LittleEndian.Uint16(this.hold[2:4]),
				Width:      binary.LittleEndian.Uint16(this.hold[4:6]),
				Height:     binary.LittleEndian.Uint16(this.hold[6:8]),
				Interlaced: flags&gifstream.FLAG_INTERLACE != 0,
				Control:    this.gce,
			}

			// The graphic control state applies to this image only
			this.gce = gifstream.GraphicControl{}
			this.holdLen = 0

			if this.opts.CheckFrameConsistency {
				if int(f.Left)+int(f.Width) > int(this.screen.Width) ||
					int(f.Top)+int(f.Height) > int(this.screen.Height) {
					return nil, this.fail(cur, gifstream.ERR_FORMAT, "frame descriptor is out of bounds")
				}
			}

			this.frame = f

			if flags&gifstream.FLAG_LOCAL_TABLE != 0 {
				this.paletteLen = gifstream.PaletteColors(flags) * gifstream.PALETTE_CHANNELS
				this.state = _STATE_LOCAL_PALETTE
			} else {
				if flags&gifstream.TABLE_SIZE_MASK != 0 {
					return nil, this.fail(cur, gifstream.ERR_FORMAT, "local color table size set without a local color table")
				}

				this.state = _STATE_MIN_CODE_SIZE
			}

		case _STATE_LOCAL_PALETTE:
			if !this.fill(cur, this.paletteLen) {
				return nil, nil
			}

			pal := make([]byte, this.paletteLen)
			copy(pal, this.hold[:this.paletteLen])
			this.frame.Palette = pal
			this.holdLen = 0
			this.state = _STATE_MIN_CODE_SIZE

		case _STATE_MIN_CODE_SIZE:
			b, ok := cur.ReadByte()

			if !ok {
				return nil, nil
			}

			if b < 2 || b > 8 {
				return nil, this.fail(cur, gifstream.ERR_COMPRESSION, "invalid minimum code size: %d", b)
			}

			f := this.frame
			f.MinCodeSize = b
			this.sub.Reset()

			if this.opts.RawFrameData {
				this.state = _STATE_IMAGE_RAW
			} else {
				if this.lzw == nil {
					dec, err := lzw.NewDecoder(uint(b))

					if err != nil {
						return nil, this.fail(cur, gifstream.ERR_COMPRESSION, "%v", err)
					}

					this.lzw = dec
				} else if err := this.lzw.Reset(uint(b)); err != nil {
					return nil, this.fail(cur, gifstream.ERR_COMPRESSION, "%v", err)
				}

				f.Pixels = make([]byte, int(f.Width)*int(f.Height))
				this.pixelPos = 0
				this.rowsSeen = 0
				this.state = _STATE_IMAGE_DATA
			}

			return gifstream.NewFrameHeaderEvent(f), nil

		case _STATE_IMAGE_RAW:
			if !this.sub.ReadAll(cur) {
				return nil, nil
			}

			this.frame.LzwData = append([]byte(nil), this.sub.Data()...)
			this.state = _STATE_INTRODUCER
			return gifstream.NewFrameCompleteEvent(this.frame), nil

		case _STATE_IMAGE_DATA:
			for {
				chunk := this.sub.Buffer(cur)

				if len(chunk) == 0 {
					break
				}

				if this.lzw.Ended() {
					// Compressed data past the end code is dropped
					this.sub.Consume(cur, len(chunk))
					continue
				}

				consumed, _, err := this.decodePixels(chunk)

				if err != nil {
					return nil, this.fail(cur, gifstream.ERR_COMPRESSION, "%v", err)
				}

				this.sub.Consume(cur, int(consumed))
			}

			if this.sub.Done() {
				return this.finishFrame(cur)
			}

			// Input exhausted mid frame: report freshly completed rows
			if w := int(this.frame.Width); w > 0 && this.pixelPos/w > this.rowsSeen {
				rows := this.pixelPos / w
				n := rows - this.rowsSeen
				this.rowsSeen = rows
				return gifstream.NewFrameRowsEvent(n), nil
			}

			return nil, nil
		}
	}
}

// decodePixels feeds one compressed chunk to the LZW decoder. Output past
// the declared pixel plane is decoded into a scratch sink and dropped.
func (this *StreamingDecoder) decodePixels(chunk []byte) (uint, uint, error) {
	f := this.frame

	if this.pixelPos < len(f.Pixels) {
		consumed, produced, err := this.lzw.Decode(chunk, f.Pixels[this.pixelPos:])
		this.pixelPos += int(produced)
		return consumed, produced, err
	}

	if this.scratch == nil {
		this.scratch = make([]byte, 1024)
	}

	return this.lzw.Decode(chunk, this.scratch)
}

func (this *StreamingDecoder) finishFrame(cur *block.Cursor) (*gifstream.Event, error) {
	f := this.frame

	// Drain output the decoder buffered when the plane chunked oddly
	for {
		_, produced, err := this.decodePixels(nil)

		if err != nil {
			return nil, this.fail(cur, gifstream.ERR_COMPRESSION, "%v", err)
		}

		if produced == 0 {
			break
		}
	}

	if this.opts.RequireEndCode && !this.lzw.Ended() {
		return nil, this.fail(cur, gifstream.ERR_COMPRESSION, "image data ends without an end code")
	}

	if this.opts.CheckFrameConsistency {
		colors := f.NumColors()

		if colors == 0 && this.screen != nil {
			colors = this.screen.NumColors()
		}

		if colors == 0 {
			return nil, this.fail(cur, gifstream.ERR_MISSING_PALETTE, "frame has no color table")
		}

		if int(f.MaxPixel()) >= colors {
			return nil, this.fail(cur, gifstream.ERR_PALETTE_INDEX, "pixel index out of palette bounds")
		}
	}

	// An underfull plane keeps its zero initialized tail
	if f.Interlaced {
		f.Pixels = gifstream.Uninterlace(f.Pixels, int(f.Width), int(f.Height))
	}

	level.Debug(this.logger).Log("msg", "frame decoded", "width", f.Width, "height", f.Height,
		"interlaced", f.Interlaced, "offset", this.offset+uint64(cur.Consumed()))
	this.state = _STATE_INTRODUCER
	return gifstream.NewFrameCompleteEvent(f), nil
}
