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
	"github.com/pkg/errors"
)

// Animation  A fully decoded GIF stream: the convenience counterpart to the
// incremental interfaces.
type Animation struct {
	Version   string
	Screen    *gifstream.ScreenDescriptor
	Frames    []*gifstream.Frame
	LoopCount int // NETSCAPE2.0 repetitions, 0 means forever
	HasLoop   bool
	Comments  []string
}

// ReadAll decodes a complete GIF stream from r. opts may be nil.
func ReadAll(r io.Reader, opts *DecoderOptions) (*Animation, error) {
	dec := NewStreamingDecoder(opts)
	a := &Animation{}
	buf := make([]byte, 4096)

	for {
		n, rerr := r.Read(buf)
		chunk := buf[:n]

		for {
			consumed, evt, err := dec.Update(chunk)

			if err != nil {
				return nil, err
			}

			chunk = chunk[consumed:]

			if evt != nil {
				switch evt.Type() {
				case gifstream.EVT_FRAME_COMPLETE:
					a.Frames = append(a.Frames, evt.Frame())

				case gifstream.EVT_EXTENSION:
					if evt.Label() == gifstream.EXT_COMMENT {
						a.Comments = append(a.Comments, string(evt.Payload()))
					}
				}
			}

			if consumed == 0 && evt == nil {
				break
			}
		}

		if dec.Finished() {
			break
		}

		if rerr == io.EOF {
			return nil, NewCodecError("unexpected end of stream", gifstream.ERR_FORMAT, dec.Offset())
		}

		if rerr != nil {
			return nil, errors.Wrap(rerr, "read stream")
		}
	}

	a.Version = dec.Version()
	a.Screen = dec.Screen()
	a.LoopCount, a.HasLoop = dec.LoopCount()
	return a, nil
}

// WriteAll encodes a complete animation to w. opts may be nil.
func WriteAll(w io.Writer, a *Animation, opts *EncoderOptions) error {
	enc, err := NewStreamingEncoder(a.Screen, opts)

	if err != nil {
		return err
	}

	if a.HasLoop {
		count := a.LoopCount

		if count == 0 {
			count = REPEAT_INFINITE
		}

		if err := enc.SetRepeat(count); err != nil {
			return err
		}
	}

	for _, c := range a.Comments {
		if err := enc.PushComment(c); err != nil {
			return err
		}
	}

	for _, f := range a.Frames {
		if err := enc.PushFrame(f); err != nil {
			return err
		}
	}

	if err := enc.Finish(); err != nil {
		return err
	}

	if _, err := enc.WriteTo(w); err != nil {
		return err
	}

	return enc.Close()
}
