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

import (
	"fmt"
)

const (
	EVT_HEADER            = 0
	EVT_SCREEN_DESCRIPTOR = 1
	EVT_GLOBAL_PALETTE    = 2
	EVT_EXTENSION         = 3
	EVT_FRAME_HEADER      = 4
	EVT_FRAME_ROWS        = 5
	EVT_FRAME_COMPLETE    = 6
	EVT_TRAILER           = 7
)

// Event  One structural element recognized by the streaming decoder.
// Exactly one event is emitted per element, in stream order.
type Event struct {
	eventType int
	version   string
	screen    *ScreenDescriptor
	palette   []byte
	label     byte
	payload   []byte
	frame     *Frame
	count     int
}

func NewHeaderEvent(version string) *Event {
	return &Event{eventType: EVT_HEADER, version: version}
}

func NewScreenDescriptorEvent(screen *ScreenDescriptor) *Event {
	return &Event{eventType: EVT_SCREEN_DESCRIPTOR, screen: screen}
}

func NewGlobalPaletteEvent(palette []byte) *Event {
	return &Event{eventType: EVT_GLOBAL_PALETTE, palette: palette}
}

func NewExtensionEvent(label byte, payload []byte) *Event {
	return &Event{eventType: EVT_EXTENSION, label: label, payload: payload}
}

func NewFrameHeaderEvent(frame *Frame) *Event {
	return &Event{eventType: EVT_FRAME_HEADER, frame: frame}
}

func NewFrameRowsEvent(count int) *Event {
	return &Event{eventType: EVT_FRAME_ROWS, count: count}
}

func NewFrameCompleteEvent(frame *Frame) *Event {
	return &Event{eventType: EVT_FRAME_COMPLETE, frame: frame}
}

func NewTrailerEvent() *Event {
	return &Event{eventType: EVT_TRAILER}
}

func (this *Event) Type() int {
	return this.eventType
}

// Version  The signature, "GIF87a" or "GIF89a". Valid for EVT_HEADER.
func (this *Event) Version() string {
	return this.version
}

// Screen  Valid for EVT_SCREEN_DESCRIPTOR.
func (this *Event) Screen() *ScreenDescriptor {
	return this.screen
}

// Palette  Global color table RGB triples. Valid for EVT_GLOBAL_PALETTE.
func (this *Event) Palette() []byte {
	return this.palette
}

// Label  The extension label. Valid for EVT_EXTENSION.
func (this *Event) Label() byte {
	return this.label
}

// Payload  The concatenated extension sub-block payloads, owned by the
// caller. Valid for EVT_EXTENSION.
func (this *Event) Payload() []byte {
	return this.payload
}

// Frame  Valid for EVT_FRAME_HEADER (no pixel data yet) and
// EVT_FRAME_COMPLETE (full pixel plane, owned by the caller thereafter).
func (this *Event) Frame() *Frame {
	return this.frame
}

// Count  Number of newly completed pixel rows. Valid for EVT_FRAME_ROWS.
func (this *Event) Count() int {
	return this.count
}

func (this *Event) String() string {
	switch this.eventType {
	case EVT_HEADER:
		return fmt.Sprintf("{ \"type\":\"HEADER\", \"version\":\"%s\" }", this.version)

	case EVT_SCREEN_DESCRIPTOR:
		return fmt.Sprintf("{ \"type\":\"SCREEN_DESCRIPTOR\", \"width\":%d, \"height\":%d }",
			this.screen.Width, this.screen.Height)

	case EVT_GLOBAL_PALETTE:
		return fmt.Sprintf("{ \"type\":\"GLOBAL_PALETTE\", \"colors\":%d }",
			len(this.palette)/PALETTE_CHANNELS)

	case EVT_EXTENSION:
		return fmt.Sprintf("{ \"type\":\"EXTENSION\", \"label\":%#.2x, \"size\":%d }",
			this.label, len(this.payload))

	case EVT_FRAME_HEADER:
		return fmt.Sprintf("{ \"type\":\"FRAME_HEADER\", \"left\":%d, \"top\":%d, \"width\":%d, \"height\":%d }",
			this.frame.Left, this.frame.Top, this.frame.Width, this.frame.Height)

	case EVT_FRAME_ROWS:
		return fmt.Sprintf("{ \"type\":\"FRAME_ROWS\", \"count\":%d }", this.count)

	case EVT_FRAME_COMPLETE:
		return fmt.Sprintf("{ \"type\":\"FRAME_COMPLETE\", \"pixels\":%d }", len(this.frame.Pixels))

	case EVT_TRAILER:
		return "{ \"type\":\"TRAILER\" }"

	default:
		return "{ \"type\":\"UNKNOWN\" }"
	}
}
