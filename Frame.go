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

// ScreenDescriptor  The logical screen of a GIF stream: canvas size, the
// optional global color table and the remaining descriptor fields. Read once
// at stream start, written once at stream start.
type ScreenDescriptor struct {
	Width           uint16
	Height          uint16
	GlobalPalette   []byte // RGB triples, nil when no global table is declared
	Background      byte   // index into the global table
	AspectRatio     byte
	ColorResolution byte // bits per primary color minus one, informational
}

// NumColors  Return the number of entries in the global color table, 0 when
// there is none.
func (this *ScreenDescriptor) NumColors() int {
	return len(this.GlobalPalette) / PALETTE_CHANNELS
}

// GraphicControl  The state carried by a graphic control extension. It
// applies to exactly the next image block and reverts to defaults afterwards.
type GraphicControl struct {
	Disposal         byte
	UserInput        bool
	Delay            uint16 // centiseconds
	HasTransparency  bool
	TransparentIndex byte
}

// Frame  One image block of a GIF stream. On decode the pixel plane holds
// one index byte per pixel in row major order, interlace already undone.
// A frame with no local palette refers to the stream's global table.
type Frame struct {
	Left       uint16
	Top        uint16
	Width      uint16
	Height     uint16
	Interlaced bool
	Palette    []byte // local color table RGB triples, nil to use the global table
	Pixels     []byte // index plane, row major

	// Raw compressed image data, only populated by a decoder configured
	// for LZW pass-through. MinCodeSize accompanies it.
	LzwData     []byte
	MinCodeSize byte

	Control GraphicControl
}

// NumColors  Return the number of entries in the local color table, 0 when
// the frame refers to the global table.
func (this *Frame) NumColors() int {
	return len(this.Palette) / PALETTE_CHANNELS
}

// MaxPixel  Return the highest index value present in the pixel plane.
func (this *Frame) MaxPixel() byte {
	max := byte(0)

	for _, p := range this.Pixels {
		if p > max {
			max = p
		}
	}

	return max
}
