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

// Wire format constants for the GIF87a/GIF89a container.
// See http://www.w3.org/Graphics/GIF/spec-gif89a.txt

const (
	SIGNATURE_87A = "GIF87a"
	SIGNATURE_89A = "GIF89a"

	// Block introducers
	BLOCK_EXTENSION = 0x21
	BLOCK_IMAGE     = 0x2C
	BLOCK_TRAILER   = 0x3B

	// Extension labels
	EXT_PLAIN_TEXT      = 0x01
	EXT_GRAPHIC_CONTROL = 0xF9
	EXT_COMMENT         = 0xFE
	EXT_APPLICATION     = 0xFF

	// Disposal methods
	DISPOSAL_NONE       = 0
	DISPOSAL_KEEP       = 1
	DISPOSAL_BACKGROUND = 2
	DISPOSAL_PREVIOUS   = 3

	// Logical screen descriptor packed fields
	FLAG_GLOBAL_TABLE     = 0x80
	COLOR_RESOLUTION_MASK = 0x70
	SORT_FLAG             = 0x08
	TABLE_SIZE_MASK       = 0x07

	// Image descriptor packed fields
	FLAG_LOCAL_TABLE = 0x80
	FLAG_INTERLACE   = 0x40

	// Graphic control packed fields
	GC_TRANSPARENT_SET = 0x01
	GC_USER_INPUT      = 0x02
	GC_DISPOSAL_MASK   = 0x1C

	// A color table holds RGB triples
	PALETTE_CHANNELS = 3

	MAX_COLORS = 256
)

// IsGifSignature  Return true if buf starts with a recognized GIF signature.
func IsGifSignature(buf []byte) bool {
	if len(buf) < 6 {
		return false
	}

	s := string(buf[0:6])
	return s == SIGNATURE_87A || s == SIGNATURE_89A
}

// PaletteSizeFlag  Return the size exponent n such that 2^(n+1) is the
// smallest valid color table size holding numColors entries.
func PaletteSizeFlag(numColors int) byte {
	n := byte(0)

	for numColors > 2 {
		numColors = (numColors + 1) >> 1
		n++
	}

	if n > 7 {
		return 7
	}

	return n
}

// PaletteColors  Return the number of color table entries declared by the
// size exponent n, always a power of two in [2..256].
func PaletteColors(n byte) int {
	return 2 << (n & TABLE_SIZE_MASK)
}

// InterlacePass one pass of the four pass interlace row ordering.
type InterlacePass struct {
	Start int
	Skip  int
}

// Interlacing  The four pass row ordering of interlaced images: every 8th
// row from 0, every 8th from 4, every 4th from 2, every 2nd from 1.
var Interlacing = [4]InterlacePass{
	{Start: 0, Skip: 8},
	{Start: 4, Skip: 8},
	{Start: 2, Skip: 4},
	{Start: 1, Skip: 2},
}

// Uninterlace  Reorder rows stored in interlace pass order into row major
// order. Returns a new plane of the same size.
func Uninterlace(pix []byte, width, height int) []byte {
	res := make([]byte, width*height)
	offset := 0

	for _, pass := range Interlacing {
		for y := pass.Start; y < height; y += pass.Skip {
			copy(res[y*width:(y+1)*width], pix[offset:offset+width])
			offset += width
		}
	}

	return res
}

// Interlace  The inverse of Uninterlace: reorder a row major plane into
// interlace pass order for encoding.
func Interlace(pix []byte, width, height int) []byte {
	res := make([]byte, width*height)
	offset := 0

	for _, pass := range Interlacing {
		for y := pass.Start; y < height; y += pass.Skip {
			copy(res[offset:offset+width], pix[y*width:(y+1)*width])
			offset += width
		}
	}

	return res
}
