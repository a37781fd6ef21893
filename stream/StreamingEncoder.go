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

package stream

import (
	"io"

	"github.com/gifstream/gifstream-go"
	"github.com/gifstream/gifstream-go/block"
	"github.com/gifstream/gifstream-go/lzw"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	// Close policies. Best effort finalizes an unfinished stream so the
	// trailer can still be read out; strict demands an explicit Finish and
	// a fully drained stream.
	CLOSE_BEST_EFFORT = 0
	CLOSE_STRICT      = 1

	// SetRepeat argument for looping forever.
	REPEAT_INFINITE = -1

	// Pixels compressed per Read step, bounds staging memory.
	_ENCODE_CHUNK = 8192
)

// EncoderOptions  Tuning knobs for a StreamingEncoder. The zero value uses
// the best effort close policy.
type EncoderOptions struct {
	ClosePolicy int
	Logger      log.Logger
}

// StreamingEncoder  An incremental GIF encoder. Callers queue frames with
// PushFrame and pull encoded bytes through Read or WriteTo; compression
// happens lazily as output is consumed, so memory stays bounded by one
// frame. The byte stream is complete once Finish was called and Read has
// returned io.EOF.
type StreamingEncoder struct {
	opts       EncoderOptions
	logger     log.Logger
	screen     *gifstream.ScreenDescriptor
	staged     []byte
	stagedPos  int
	produced   uint64 // bytes already handed to the reader
	queue      []*gifstream.Frame
	current    *gifstream.Frame
	plane      []byte // current frame's pixels in wire order
	planePos   int
	lzw        *lzw.Encoder
	sw         *block.SubBlockWriter
	frameCount int
	finishing  bool
	finished   bool
	closed     bool
	err        error
}

// NewStreamingEncoder creates an encoder for the given logical screen. The
// header, screen descriptor and global color table are staged immediately.
// opts may be nil for defaults.
func NewStreamingEncoder(screen *gifstream.ScreenDescriptor, opts *EncoderOptions) (*StreamingEncoder, error) {
	if screen == nil {
		return nil, NewCodecError("screen descriptor is nil", gifstream.ERR_INVALID_PARAM, 0)
	}

	if n := screen.NumColors(); screen.GlobalPalette != nil {
		if n < 1 || n > gifstream.MAX_COLORS || len(screen.GlobalPalette)%gifstream.PALETTE_CHANNELS != 0 {
			return nil, NewCodecError("invalid global color table size", gifstream.ERR_INVALID_PARAM, 0)
		}
	}

	this := new(StreamingEncoder)

	if opts != nil {
		this.opts = *opts
	}

	this.logger = this.opts.Logger

	if this.logger == nil {
		this.logger = log.NewNopLogger()
	}

	this.screen = screen
	this.sw = block.NewSubBlockWriter()
	this.stageHeader()
	return this, nil
}

func (this *StreamingEncoder) stage(b ...byte) {
	this.staged = append(this.staged, b...)
}

func (this *StreamingEncoder) stageU16(v uint16) {
	this.stage(byte(v), byte(v>>8))
}

// stageSubBlocks frames a complete payload as a length prefixed sub-block
// chain with terminator.
func (this *StreamingEncoder) stageSubBlocks(payload []byte) {
	for len(payload) > 0 {
		n := len(payload)

		if n > 255 {
			n = 255
		}

		this.stage(byte(n))
		this.stage(payload[:n]...)
		payload = payload[n:]
	}

	this.stage(0)
}

// stagePalette writes a color table zero padded to the declared power of
// two size. Returns the size exponent that was declared.
func (this *StreamingEncoder) stagePalette(pal []byte) byte {
	flag := gifstream.PaletteSizeFlag(len(pal) / gifstream.PALETTE_CHANNELS)
	full := gifstream.PaletteColors(flag) * gifstream.PALETTE_CHANNELS
	this.stage(pal...)

	for i := len(pal); i < full; i++ {
		this.stage(0)
	}

	return flag
}

func (this *StreamingEncoder) stageHeader() {
	this.stage([]byte(gifstream.SIGNATURE_89A)...)
	this.stageU16(this.screen.Width)
	this.stageU16(this.screen.Height)

	if this.screen.GlobalPalette == nil {
		this.stage(0, this.screen.Background, this.screen.AspectRatio)
		return
	}

	flag := gifstream.PaletteSizeFlag(this.screen.NumColors())
	flags := byte(gifstream.FLAG_GLOBAL_TABLE) | flag<<4 | flag
	this.stage(flags, this.screen.Background, this.screen.AspectRatio)
	this.stagePalette(this.screen.GlobalPalette)
}

// generated returns the number of output bytes produced so far, delivered
// or still staged.
func (this *StreamingEncoder) generated() uint64 {
	return this.produced + uint64(len(this.staged)-this.stagedPos)
}

func (this *StreamingEncoder) failf(code int, msg string) error {
	return NewCodecError(msg, code, this.generated())
}

// SetRepeat stages a NETSCAPE2.0 loop extension. count is the number of
// repetitions, REPEAT_INFINITE for forever; a count of 0 means play once
// and writes nothing. Must be called before the first frame is queued.
func (this *StreamingEncoder) SetRepeat(count int) error {
	if this.err != nil {
		return this.err
	}

	if this.closed || this.finishing {
		return this.failf(gifstream.ERR_STREAM_CLOSED, "stream already finished")
	}

	if this.frameCount > 0 {
		return this.failf(gifstream.ERR_INVALID_PARAM, "repeat must be set before the first frame")
	}

	if count == 0 {
		return nil
	}

	value := uint16(0)

	if count > 0 {
		if count > 0xFFFF {
			return this.failf(gifstream.ERR_INVALID_PARAM, "repeat count out of range")
		}

		value = uint16(count)
	} else if count != REPEAT_INFINITE {
		return this.failf(gifstream.ERR_INVALID_PARAM, "negative repeat count")
	}

	this.stage(gifstream.BLOCK_EXTENSION, gifstream.EXT_APPLICATION, 11)
	this.stage([]byte("NETSCAPE2.0")...)
	this.stage(3, 1)
	this.stageU16(value)
	this.stage(0)
	return nil
}

// PushComment stages a comment extension.
func (this *StreamingEncoder) PushComment(text string) error {
	return this.PushExtension(gifstream.EXT_COMMENT, []byte(text))
}

// PushExtension stages an arbitrary extension block.
func (this *StreamingEncoder) PushExtension(label byte, payload []byte) error {
	if this.err != nil {
		return this.err
	}

	if this.closed || this.finishing {
		return this.failf(gifstream.ERR_STREAM_CLOSED, "stream already finished")
	}

	this.stage(gifstream.BLOCK_EXTENSION, label)
	this.stageSubBlocks(payload)
	return nil
}

// PushFrame validates a frame and queues it for encoding. The frame is
// borrowed until its bytes have been read out. Validation is fail fast:
// nothing is staged when an error is returned.
func (this *StreamingEncoder) PushFrame(frame *gifstream.Frame) error {
	if this.err != nil {
		return this.err
	}

	if this.closed || this.finishing {
		return this.failf(gifstream.ERR_STREAM_CLOSED, "stream already finished")
	}

	if frame == nil || frame.Width == 0 || frame.Height == 0 {
		return this.failf(gifstream.ERR_INVALID_PARAM, "invalid frame dimensions")
	}

	if frame.Palette != nil {
		if n := frame.NumColors(); n < 1 || n > gifstream.MAX_COLORS ||
			len(frame.Palette)%gifstream.PALETTE_CHANNELS != 0 {
			return this.failf(gifstream.ERR_INVALID_PARAM, "invalid local color table size")
		}
	}

	if frame.LzwData != nil {
		// Pass-through of already compressed image data
		if frame.MinCodeSize < 2 || frame.MinCodeSize > 8 {
			return this.failf(gifstream.ERR_COMPRESSION, "invalid minimum code size")
		}
	} else {
		if len(frame.Pixels) != int(frame.Width)*int(frame.Height) {
			return this.failf(gifstream.ERR_INVALID_PARAM, "pixel plane does not match frame dimensions")
		}

		colors := frame.NumColors()

		if colors == 0 {
			colors = this.screen.NumColors()
		}

		if colors == 0 {
			return this.failf(gifstream.ERR_MISSING_PALETTE, "frame has no color table")
		}

		if int(frame.MaxPixel()) >= colors {
			return this.failf(gifstream.ERR_PALETTE_INDEX, "pixel index out of palette bounds")
		}
	}

	this.queue = append(this.queue, frame)
	this.frameCount++
	return nil
}

// Finish marks the end of the stream. The trailer is staged once all queued
// frames have been encoded; keep reading until io.EOF.
func (this *StreamingEncoder) Finish() error {
	if this.err != nil {
		return this.err
	}

	this.finishing = true
	return nil
}

// Close finalizes the encoder. Under CLOSE_BEST_EFFORT an unfinished
// stream is finished implicitly and stays readable until io.EOF. Under
// CLOSE_STRICT it is an error to close before Finish was called and all
// output was read out.
func (this *StreamingEncoder) Close() error {
	if this.err != nil {
		return this.err
	}

	if this.opts.ClosePolicy == CLOSE_STRICT {
		if !this.finishing || !this.drained() {
			return this.failf(gifstream.ERR_STREAM_CLOSED, "closed with unwritten data")
		}
	}

	this.finishing = true
	this.closed = true
	return nil
}

func (this *StreamingEncoder) drained() bool {
	return this.finished && this.stagedPos == len(this.staged) &&
		len(this.queue) == 0 && this.current == nil
}

// Read pulls encoded bytes. It returns io.EOF once the stream is finished
// and fully read. A (0, nil) result means the encoder is waiting for more
// frames or for Finish.
func (this *StreamingEncoder) Read(p []byte) (int, error) {
	if this.err != nil {
		return 0, this.err
	}

	n := 0

	for n < len(p) {
		if this.stagedPos < len(this.staged) {
			c := copy(p[n:], this.staged[this.stagedPos:])
			this.stagedPos += c
			this.produced += uint64(c)
			n += c
			continue
		}

		this.staged = this.staged[:0]
		this.stagedPos = 0

		if !this.step() {
			break
		}
	}

	if n == 0 && this.drained() {
		return 0, io.EOF
	}

	return n, nil
}

// WriteTo drains everything currently encodable into w. Implements
// io.WriterTo; with a finished stream it writes the complete remainder.
func (this *StreamingEncoder) WriteTo(w io.Writer) (int64, error) {
	if this.err != nil {
		return 0, this.err
	}

	total := int64(0)

	for {
		if this.stagedPos < len(this.staged) {
			c, err := w.Write(this.staged[this.stagedPos:])
			this.stagedPos += c
			this.produced += uint64(c)
			total += int64(c)

			if err != nil {
				this.err = NewCodecError(err.Error(), gifstream.ERR_WRITE_SINK, this.produced)
				return total, this.err
			}

			continue
		}

		this.staged = this.staged[:0]
		this.stagedPos = 0

		if !this.step() {
			return total, nil
		}
	}
}

// step advances encoding by one bounded unit of work, staging its output.
// Returns false when there is nothing left to do right now.
func (this *StreamingEncoder) step() bool {
	if this.current != nil {
		this.continueFrame()
		return true
	}

	if len(this.queue) > 0 {
		f := this.queue[0]
		this.queue = this.queue[1:]
		this.beginFrame(f)
		return true
	}

	if this.finishing && !this.finished {
		this.stage(gifstream.BLOCK_TRAILER)
		this.finished = true
		level.Debug(this.logger).Log("msg", "stream complete", "frames", this.frameCount)
		return true
	}

	return false
}

// minCodeSize derives the initial LZW code size from the pixel data: wide
// enough for every index in use, never below 2.
func minCodeSize(maxPixel byte) byte {
	s := gifstream.PaletteSizeFlag(int(maxPixel)+1) + 1

	if s < 2 {
		return 2
	}

	return s
}

func (this *StreamingEncoder) beginFrame(f *gifstream.Frame) {
	// Graphic control is written for every frame
	ctl := f.Control
	flags := ctl.Disposal << 2

	if ctl.UserInput {
		flags |= gifstream.GC_USER_INPUT
	}

	if ctl.HasTransparency {
		flags |= gifstream.GC_TRANSPARENT_SET
	}

	this.stage(gifstream.BLOCK_EXTENSION, gifstream.EXT_GRAPHIC_CONTROL, 4, flags)
	this.stageU16(ctl.Delay)
	this.stage(ctl.TransparentIndex, 0)

	this.stage(gifstream.BLOCK_IMAGE)
	this.stageU16(f.Left)
	this.stageU16(f.Top)
	this.stageU16(f.Width)
	this.stageU16(f.Height)

	descFlags := byte(0)

	if f.Interlaced {
		descFlags |= gifstream.FLAG_INTERLACE
	}

	if f.Palette != nil {
		descFlags |= gifstream.FLAG_LOCAL_TABLE
		descFlags |= gifstream.PaletteSizeFlag(f.NumColors())
	}

	this.stage(descFlags)

	if f.Palette != nil {
		this.stagePalette(f.Palette)
	}

	if f.LzwData != nil {
		this.stage(f.MinCodeSize)
		this.stageSubBlocks(f.LzwData)
		level.Debug(this.logger).Log("msg", "frame copied", "width", f.Width, "height", f.Height)
		return
	}

	mcs := minCodeSize(f.MaxPixel())
	this.stage(mcs)

	if this.lzw == nil {
		this.lzw, _ = lzw.NewEncoder(uint(mcs))
	} else {
		this.lzw.Reset(uint(mcs))
	}

	this.plane = f.Pixels

	if f.Interlaced {
		this.plane = gifstream.Interlace(f.Pixels, int(f.Width), int(f.Height))
	}

	this.planePos = 0
	this.sw.Reset()
	this.current = f
}

func (this *StreamingEncoder) continueFrame() {
	var buf [1024]byte
	end := this.planePos + _ENCODE_CHUNK

	if end > len(this.plane) {
		end = len(this.plane)
	}

	for this.planePos < end {
		consumed, produced, _ := this.lzw.Encode(this.plane[this.planePos:end], buf[:])
		this.planePos += int(consumed)
		this.staged = this.sw.Append(this.staged, buf[:produced])
	}

	if this.planePos < len(this.plane) {
		return
	}

	for !this.lzw.Ended() {
		produced, _ := this.lzw.Finish(buf[:])
		this.staged = this.sw.Append(this.staged, buf[:produced])
	}

	this.staged = this.sw.Close(this.staged)
	level.Debug(this.logger).Log("msg", "frame encoded", "width", this.current.Width,
		"height", this.current.Height, "interlaced", this.current.Interlaced)
	this.current = nil
	this.plane = nil
}
