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

package main

import (
	"fmt"
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"
	humanize "github.com/dustin/go-humanize"
	gifstream "github.com/gifstream/gifstream-go"
	"github.com/gifstream/gifstream-go/stream"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

var (
	app     = kingpin.New("gifstream", "Streaming GIF codec tool.")
	verbose = app.Flag("verbose", "Enable debug logging.").Short('v').Bool()

	infoCmd    = app.Command("info", "Print the structure of a GIF file.")
	infoFile   = infoCmd.Arg("file", "Input GIF file.").Required().String()
	infoStrict = infoCmd.Flag("strict", "Enable frame consistency checks.").Bool()

	recodeCmd = app.Command("recode", "Decode a GIF file and encode it again.")
	recodeSrc = recodeCmd.Arg("src", "Input GIF file.").Required().String()
	recodeDst = recodeCmd.Arg("dst", "Output GIF file.").Required().String()
	recodeRaw = recodeCmd.Flag("raw", "Copy compressed image data without recompressing.").Bool()
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

	if *verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	var err error

	switch cmd {
	case infoCmd.FullCommand():
		err = runInfo(logger)

	case recodeCmd.FullCommand():
		err = runRecode(logger)
	}

	if err != nil {
		level.Error(logger).Log("err", err)

		if ce, ok := errors.Cause(err).(*stream.CodecError); ok {
			os.Exit(ce.ErrorCode())
		}

		os.Exit(gifstream.ERR_UNKNOWN)
	}
}

func disposalName(d byte) string {
	switch d {
	case gifstream.DISPOSAL_KEEP:
		return "keep"
	case gifstream.DISPOSAL_BACKGROUND:
		return "background"
	case gifstream.DISPOSAL_PREVIOUS:
		return "previous"
	default:
		return "none"
	}
}

func readFile(path string, opts *stream.DecoderOptions) (*stream.Animation, int64, error) {
	f, err := os.Open(path)

	if err != nil {
		return nil, 0, errors.Wrap(err, "open input")
	}

	defer f.Close()
	st, err := f.Stat()

	if err != nil {
		return nil, 0, errors.Wrap(err, "stat input")
	}

	a, err := stream.ReadAll(f, opts)

	if err != nil {
		return nil, 0, err
	}

	return a, st.Size(), nil
}

func runInfo(logger log.Logger) error {
	opts := &stream.DecoderOptions{
		CheckFrameConsistency: *infoStrict,
		Logger:                logger,
	}
	a, size, err := readFile(*infoFile, opts)

	if err != nil {
		return err
	}

	fmt.Printf("%s: %s, %dx%d, %s\n", *infoFile, a.Version, a.Screen.Width,
		a.Screen.Height, humanize.Bytes(uint64(size)))

	if n := a.Screen.NumColors(); n > 0 {
		fmt.Printf("global palette: %d colors, background index %d\n", n, a.Screen.Background)
	} else {
		fmt.Println("global palette: none")
	}

	if a.HasLoop {
		if a.LoopCount == 0 {
			fmt.Println("loop: forever")
		} else {
			fmt.Printf("loop: %d times\n", a.LoopCount)
		}
	}

	for _, c := range a.Comments {
		fmt.Printf("comment: %q\n", c)
	}

	for i, f := range a.Frames {
		fmt.Printf("frame %3d: %dx%d at (%d,%d)", i, f.Width, f.Height, f.Left, f.Top)

		if n := f.NumColors(); n > 0 {
			fmt.Printf(", %d local colors", n)
		}

		if f.Interlaced {
			fmt.Print(", interlaced")
		}

		if f.Control.Delay > 0 {
			fmt.Printf(", delay %dms", int(f.Control.Delay)*10)
		}

		if f.Control.HasTransparency {
			fmt.Printf(", transparent index %d", f.Control.TransparentIndex)
		}

		fmt.Printf(", disposal %s\n", disposalName(f.Control.Disposal))
	}

	fmt.Printf("%s pixels in %d frames\n",
		humanize.Comma(int64(a.Screen.Width)*int64(a.Screen.Height)*int64(len(a.Frames))),
		len(a.Frames))
	return nil
}

func runRecode(logger log.Logger) error {
	opts := &stream.DecoderOptions{
		RawFrameData: *recodeRaw,
		Logger:       logger,
	}
	a, srcSize, err := readFile(*recodeSrc, opts)

	if err != nil {
		return err
	}

	out, err := os.Create(*recodeDst)

	if err != nil {
		return errors.Wrap(err, "create output")
	}

	defer out.Close()
	eopts := &stream.EncoderOptions{ClosePolicy: stream.CLOSE_STRICT, Logger: logger}

	if err := stream.WriteAll(out, a, eopts); err != nil {
		return err
	}

	st, err := out.Stat()

	if err != nil {
		return errors.Wrap(err, "stat output")
	}

	fmt.Printf("%s (%s) -> %s (%s), ratio %.2f\n", *recodeSrc, humanize.Bytes(uint64(srcSize)),
		*recodeDst, humanize.Bytes(uint64(st.Size())), float64(st.Size())/float64(srcSize))
	return nil
}
