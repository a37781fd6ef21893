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
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"io"
	"testing"

	gifstream "github.com/gifstream/gifstream-go"
	"github.com/stretchr/testify/require"
)

var testPalette = []byte{
	0x00, 0x00, 0x00,
	0xFF, 0x00, 0x00,
	0x00, 0xFF, 0x00,
	0x00, 0x00, 0xFF,
}

func makePixels(width, height, colors int) []byte {
	pix := make([]byte, width*height)

	for i := range pix {
		pix[i] = byte((i*7 + i/width) % colors)
	}

	return pix
}

func makeAnim() *Animation {
	local := make([]byte, 8*gifstream.PALETTE_CHANNELS)

	for i := range local {
		local[i] = byte(17 * i)
	}

	return &Animation{
		Screen: &gifstream.ScreenDescriptor{
			Width:         16,
			Height:        12,
			GlobalPalette: testPalette,
		},
		Frames: []*gifstream.Frame{
			{
				Width:  16,
				Height: 12,
				Pixels: makePixels(16, 12, 4),
			},
			{
				Left:    2,
				Top:     3,
				Width:   8,
				Height:  6,
				Palette: local,
				Pixels:  makePixels(8, 6, 8),
				Control: gifstream.GraphicControl{
					Disposal:         gifstream.DISPOSAL_BACKGROUND,
					Delay:            25,
					HasTransparency:  true,
					TransparentIndex: 7,
				},
			},
		},
		LoopCount: 0,
		HasLoop:   true,
		Comments:  []string{"made with gifstream"},
	}
}

func encodeAnim(t *testing.T, a *Animation) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, a, nil))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	a := makeAnim()
	data := encodeAnim(t, a)
	require.Equal(t, "GIF89a", string(data[0:6]))
	require.Equal(t, byte(gifstream.BLOCK_TRAILER), data[len(data)-1])

	res, err := ReadAll(bytes.NewReader(data), nil)
	require.NoError(t, err)
	require.Equal(t, "GIF89a", res.Version)
	require.Equal(t, a.Screen.Width, res.Screen.Width)
	require.Equal(t, a.Screen.Height, res.Screen.Height)
	require.Equal(t, a.Screen.GlobalPalette, res.Screen.GlobalPalette)
	require.True(t, res.HasLoop)
	require.Equal(t, 0, res.LoopCount)
	require.Equal(t, a.Comments, res.Comments)
	require.Len(t, res.Frames, len(a.Frames))

	for i, f := range a.Frames {
		r := res.Frames[i]
		require.Equal(t, f.Left, r.Left)
		require.Equal(t, f.Top, r.Top)
		require.Equal(t, f.Width, r.Width)
		require.Equal(t, f.Height, r.Height)
		require.Equal(t, f.Palette, r.Palette)
		require.Equal(t, f.Pixels, r.Pixels)
		require.Equal(t, f.Control, r.Control)
	}
}

// decodeChunks feeds the stream in fixed size chunks and collects events.
func decodeChunks(t *testing.T, data []byte, chunk int, opts *DecoderOptions) ([]*gifstream.Event, *StreamingDecoder) {
	t.Helper()
	dec := NewStreamingDecoder(opts)
	var events []*gifstream.Event
	pos := 0

	for !dec.Finished() {
		end := pos + chunk

		if end > len(data) {
			end = len(data)
		}

		consumed, evt, err := dec.Update(data[pos:end])
		require.NoError(t, err)
		pos += int(consumed)

		if evt != nil {
			events = append(events, evt)
		}

		if consumed == 0 && evt == nil && pos == len(data) {
			break
		}
	}

	return events, dec
}

func eventTypes(events []*gifstream.Event) []int {
	var types []int

	for _, e := range events {
		if e.Type() == gifstream.EVT_FRAME_ROWS {
			continue
		}

		types = append(types, e.Type())
	}

	return types
}

func framesOf(events []*gifstream.Event) []*gifstream.Frame {
	var frames []*gifstream.Frame

	for _, e := range events {
		if e.Type() == gifstream.EVT_FRAME_COMPLETE {
			frames = append(frames, e.Frame())
		}
	}

	return frames
}

func TestChunkIndependence(t *testing.T) {
	data := encodeAnim(t, makeAnim())
	whole, dec := decodeChunks(t, data, len(data), nil)
	require.True(t, dec.Finished())

	for _, chunk := range []int{1, 7, 100} {
		events, dec := decodeChunks(t, data, chunk, nil)
		require.True(t, dec.Finished(), "chunk size %d", chunk)
		require.Equal(t, eventTypes(whole), eventTypes(events), "chunk size %d", chunk)

		ref := framesOf(whole)
		got := framesOf(events)
		require.Len(t, got, len(ref))

		for i := range ref {
			require.Equal(t, ref[i].Pixels, got[i].Pixels, "chunk size %d, frame %d", chunk, i)
		}
	}
}

func TestFrameRowEvents(t *testing.T) {
	data := encodeAnim(t, makeAnim())
	events, _ := decodeChunks(t, data, 3, nil)
	rows := 0

	for _, e := range events {
		if e.Type() == gifstream.EVT_FRAME_ROWS {
			rows += e.Count()
		}
	}

	// Byte sized chunks force suspensions inside image data, so some rows
	// must be reported incrementally
	require.Greater(t, rows, 0)
}

func TestInterlacedRoundTrip(t *testing.T) {
	pix := make([]byte, 8*8)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			pix[y*8+x] = byte(y % 4)
		}
	}

	a := &Animation{
		Screen: &gifstream.ScreenDescriptor{Width: 8, Height: 8, GlobalPalette: testPalette},
		Frames: []*gifstream.Frame{
			{Width: 8, Height: 8, Interlaced: true, Pixels: pix},
		},
	}
	data := encodeAnim(t, a)

	res, err := ReadAll(bytes.NewReader(data), nil)
	require.NoError(t, err)
	require.True(t, res.Frames[0].Interlaced)
	require.Equal(t, pix, res.Frames[0].Pixels)

	// The standard library must agree on the row ordering
	g, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, pix, g.Image[0].Pix)
}

func TestStdlibDecodesOurOutput(t *testing.T) {
	a := makeAnim()
	data := encodeAnim(t, a)

	g, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, g.Image, len(a.Frames))
	require.Equal(t, 0, g.LoopCount)

	for i, f := range a.Frames {
		require.Equal(t, f.Pixels, g.Image[i].Pix, "frame %d", i)
		require.Equal(t, int(f.Control.Delay), g.Delay[i], "frame %d", i)
	}
}

func TestDecodeStdlibOutput(t *testing.T) {
	pal := color.Palette{
		color.RGBA{A: 0xFF},
		color.RGBA{R: 0xFF, A: 0xFF},
		color.RGBA{G: 0xFF, A: 0xFF},
		color.RGBA{B: 0xFF, A: 0xFF},
	}
	g := &gif.GIF{LoopCount: 0}

	for i := 0; i < 3; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 10, 10), pal)

		for p := range img.Pix {
			img.Pix[p] = byte((p + i) % 4)
		}

		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, 10)
	}

	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))

	res, err := ReadAll(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	require.Len(t, res.Frames, 3)

	for i, img := range g.Image {
		require.Equal(t, img.Pix, res.Frames[i].Pixels, "frame %d", i)
		require.Equal(t, uint16(10), res.Frames[i].Control.Delay, "frame %d", i)
	}
}

func TestPushFrameValidation(t *testing.T) {
	screen := &gifstream.ScreenDescriptor{Width: 4, Height: 4, GlobalPalette: testPalette}
	enc, err := NewStreamingEncoder(screen, nil)
	require.NoError(t, err)

	// Pixel index beyond the active palette
	err = enc.PushFrame(&gifstream.Frame{
		Width: 2, Height: 2, Pixels: []byte{0, 1, 2, 9},
	})
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_PALETTE_INDEX, err.(*CodecError).ErrorCode())

	// Plane size mismatch
	err = enc.PushFrame(&gifstream.Frame{Width: 2, Height: 2, Pixels: []byte{0, 1}})
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_INVALID_PARAM, err.(*CodecError).ErrorCode())

	// No palette anywhere
	bare, err := NewStreamingEncoder(&gifstream.ScreenDescriptor{Width: 4, Height: 4}, nil)
	require.NoError(t, err)
	err = bare.PushFrame(&gifstream.Frame{Width: 2, Height: 2, Pixels: []byte{0, 0, 0, 0}})
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_MISSING_PALETTE, err.(*CodecError).ErrorCode())
}

func TestRepeatAfterFrame(t *testing.T) {
	a := makeAnim()
	screen := a.Screen
	enc, err := NewStreamingEncoder(screen, nil)
	require.NoError(t, err)
	require.NoError(t, enc.PushFrame(a.Frames[0]))

	err = enc.SetRepeat(REPEAT_INFINITE)
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_INVALID_PARAM, err.(*CodecError).ErrorCode())
}

func TestFiniteRepeat(t *testing.T) {
	a := makeAnim()
	a.LoopCount = 5
	data := encodeAnim(t, a)

	res, err := ReadAll(bytes.NewReader(data), nil)
	require.NoError(t, err)
	require.True(t, res.HasLoop)
	require.Equal(t, 5, res.LoopCount)
}

func TestMalformedHeader(t *testing.T) {
	dec := NewStreamingDecoder(nil)
	_, _, err := dec.Update([]byte("GIF79a\x01\x00\x01\x00"))
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_FORMAT, err.(*CodecError).ErrorCode())

	// The failure is sticky
	_, _, err2 := dec.Update([]byte{0})
	require.Equal(t, err, err2)
}

func TestTableSizeWithoutTable(t *testing.T) {
	// Screen descriptor with size bits set but no global table flag
	data := []byte{'G', 'I', 'F', '8', '9', 'a', 2, 0, 2, 0, 0x03, 0, 0}
	dec := NewStreamingDecoder(nil)
	consumed, evt, err := dec.Update(data)
	require.NoError(t, err)
	require.Equal(t, gifstream.EVT_HEADER, evt.Type())

	_, _, err = dec.Update(data[consumed:])
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_FORMAT, err.(*CodecError).ErrorCode())
}

func TestTruncatedStream(t *testing.T) {
	data := encodeAnim(t, makeAnim())
	dec := NewStreamingDecoder(nil)

	// Everything except the trailer byte
	part := data[:len(data)-1]
	pos := 0

	for pos < len(part) {
		consumed, _, err := dec.Update(part[pos:])
		require.NoError(t, err)
		pos += int(consumed)

		if consumed == 0 {
			break
		}
	}

	// A truncated stream suspends, it does not fail
	require.False(t, dec.Finished())
	require.NoError(t, dec.Err())
	consumed, evt, err := dec.Update(nil)
	require.NoError(t, err)
	require.Nil(t, evt)
	require.Equal(t, uint(0), consumed)

	// The missing byte completes the stream
	consumed, evt, err = dec.Update(data[len(data)-1:])
	require.NoError(t, err)
	require.Equal(t, uint(1), consumed)
	require.Equal(t, gifstream.EVT_TRAILER, evt.Type())
	require.True(t, dec.Finished())
}

func TestTruncatedMidImage(t *testing.T) {
	data := encodeAnim(t, makeAnim())
	dec := NewStreamingDecoder(nil)
	part := data[:len(data)-10]
	pos := 0

	for pos < len(part) {
		consumed, _, err := dec.Update(part[pos:])
		require.NoError(t, err)
		pos += int(consumed)

		if consumed == 0 {
			break
		}
	}

	require.False(t, dec.Finished())
	require.NoError(t, dec.Err())
}

func TestUnknownBlock(t *testing.T) {
	data := encodeAnim(t, makeAnim())
	require.Equal(t, byte(gifstream.BLOCK_TRAILER), data[len(data)-1])

	// Splice an unrecognized block before the trailer: its introducer
	// doubles as a sub-block length
	spliced := append([]byte{}, data[:len(data)-1]...)
	spliced = append(spliced, 0x04, 1, 2, 3, 4, 0x00, gifstream.BLOCK_TRAILER)

	_, err := ReadAll(bytes.NewReader(spliced), nil)
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_FORMAT, err.(*CodecError).ErrorCode())

	res, err := ReadAll(bytes.NewReader(spliced), &DecoderOptions{AllowUnknownBlocks: true})
	require.NoError(t, err)
	require.Len(t, res.Frames, 2)
}

func TestFrameConsistency(t *testing.T) {
	a := makeAnim()
	a.Frames[1].Left = 12 // 12+8 > screen width 16
	data := encodeAnim(t, a)

	_, err := ReadAll(bytes.NewReader(data), nil)
	require.NoError(t, err)

	_, err = ReadAll(bytes.NewReader(data), &DecoderOptions{CheckFrameConsistency: true})
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_FORMAT, err.(*CodecError).ErrorCode())
}

func TestRawPassThrough(t *testing.T) {
	data := encodeAnim(t, makeAnim())

	raw, err := ReadAll(bytes.NewReader(data), &DecoderOptions{RawFrameData: true})
	require.NoError(t, err)

	for _, f := range raw.Frames {
		require.Nil(t, f.Pixels)
		require.NotEmpty(t, f.LzwData)
		require.GreaterOrEqual(t, f.MinCodeSize, byte(2))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, raw, nil))

	// Re-encoding raw frames must reproduce the pixels exactly
	ref, err := ReadAll(bytes.NewReader(data), nil)
	require.NoError(t, err)
	res, err := ReadAll(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	require.Len(t, res.Frames, len(ref.Frames))

	for i := range ref.Frames {
		require.Equal(t, ref.Frames[i].Pixels, res.Frames[i].Pixels)
	}
}

func TestClosePolicy(t *testing.T) {
	a := makeAnim()

	strict, err := NewStreamingEncoder(a.Screen, &EncoderOptions{ClosePolicy: CLOSE_STRICT})
	require.NoError(t, err)
	require.NoError(t, strict.PushFrame(a.Frames[0]))
	err = strict.Close()
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_STREAM_CLOSED, err.(*CodecError).ErrorCode())

	lax, err := NewStreamingEncoder(a.Screen, nil)
	require.NoError(t, err)
	require.NoError(t, lax.PushFrame(a.Frames[0]))
	require.NoError(t, lax.Close())

	// Best effort close finishes the stream implicitly
	var buf bytes.Buffer
	_, err = lax.WriteTo(&buf)
	require.NoError(t, err)
	res, err := ReadAll(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	require.Len(t, res.Frames, 1)

	// Queueing after close is rejected
	err = lax.PushFrame(a.Frames[0])
	require.Error(t, err)
	require.Equal(t, gifstream.ERR_STREAM_CLOSED, err.(*CodecError).ErrorCode())
}

func TestPalettePadding(t *testing.T) {
	// 6 colors declare an 8 entry table, zero padded on the wire
	pal := make([]byte, 6*gifstream.PALETTE_CHANNELS)

	for i := range pal {
		pal[i] = byte(40 * i)
	}

	a := &Animation{
		Screen: &gifstream.ScreenDescriptor{Width: 3, Height: 2, GlobalPalette: pal},
		Frames: []*gifstream.Frame{
			{Width: 3, Height: 2, Pixels: []byte{0, 1, 2, 3, 4, 5}},
		},
	}
	data := encodeAnim(t, a)

	res, err := ReadAll(bytes.NewReader(data), nil)
	require.NoError(t, err)
	require.Equal(t, 8, res.Screen.NumColors())
	require.Equal(t, pal, res.Screen.GlobalPalette[:len(pal)])
	require.Equal(t, a.Frames[0].Pixels, res.Frames[0].Pixels)
}

func TestSmallFrame(t *testing.T) {
	// A 4x2 black and white single frame stream, byte level landmarks
	// included
	pix := []byte{0, 1, 0, 1, 1, 0, 1, 0}
	a := &Animation{
		Screen: &gifstream.ScreenDescriptor{
			Width:         4,
			Height:        2,
			GlobalPalette: []byte{0, 0, 0, 255, 255, 255},
		},
		Frames: []*gifstream.Frame{{
			Width:   4,
			Height:  2,
			Pixels:  pix,
			Control: gifstream.GraphicControl{Delay: 10},
		}},
	}
	data := encodeAnim(t, a)

	require.Equal(t, "GIF89a", string(data[0:6]))
	require.Equal(t, byte(4), data[6]) // width, low byte
	require.Equal(t, byte(2), data[8]) // height, low byte
	require.Equal(t, byte(gifstream.BLOCK_TRAILER), data[len(data)-1])

	res, err := ReadAll(bytes.NewReader(data), &DecoderOptions{
		CheckFrameConsistency: true,
		RequireEndCode:        true,
	})
	require.NoError(t, err)
	f := res.Frames[0]
	require.Equal(t, pix, f.Pixels)
	require.Equal(t, uint16(10), f.Control.Delay)
	require.Equal(t, byte(gifstream.DISPOSAL_NONE), f.Control.Disposal)
}

func TestEncoderReadChunks(t *testing.T) {
	a := makeAnim()
	ref := encodeAnim(t, a)

	enc, err := NewStreamingEncoder(a.Screen, nil)
	require.NoError(t, err)
	require.NoError(t, enc.SetRepeat(REPEAT_INFINITE))
	require.NoError(t, enc.PushComment(a.Comments[0]))

	for _, f := range a.Frames {
		require.NoError(t, enc.PushFrame(f))
	}

	require.NoError(t, enc.Finish())

	// Pulling through Read one byte at a time yields the same stream as
	// WriteTo
	var out []byte
	buf := make([]byte, 1)

	for {
		n, err := enc.Read(buf)

		if n > 0 {
			out = append(out, buf[:n]...)
		}

		if err != nil {
			require.Equal(t, io.EOF, err)
			break
		}
	}

	require.Equal(t, ref, out)
	require.NoError(t, enc.Close())
}
