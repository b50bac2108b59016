// body-tracker - track people using a depth sensor
//  Copyright (C) 2025, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// bodylog-tool prints the contents of a body log and exports frames from
// it as PNG images.
package main

import (
	"fmt"
	"image/png"
	"io"
	"log"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/pkg/errors"

	"github.com/TheCacophonyProject/body-tracker/bodylog"
	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/headers"
	"github.com/TheCacophonyProject/body-tracker/sensor"
)

var version = "<not set>"

type Args struct {
	File   string `arg:"positional,required" help:"body log to read"`
	Frame  int    `arg:"-f,--frame" help:"frame to export (counting from 0)"`
	Out    string `arg:"-o,--out" help:"write the selected frame to this PNG file instead of printing the log"`
	Joints bool   `arg:"-j,--joints" help:"print every joint"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	arg.MustParse(&args)
	return args
}

func main() {
	log.SetFlags(0)
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if args.Out != "" {
		return export(args.File, args.Frame, args.Out)
	}
	return dump(os.Stdout, args.File, args.Joints)
}

func dump(out io.Writer, filename string, joints bool) error {
	h, err := bodylog.ReadHeader(filename)
	if err != nil {
		log.Printf("no session header: %v", err)
	} else {
		printHeader(out, h)
	}

	r, err := bodylog.Open(filename)
	if err != nil {
		return err
	}
	defer r.Close()

	rec := frame.NewRecord(frame.DefaultCapacity())
	count := 0
	for {
		err := r.ReadRecord(rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", count)
		}
		fmt.Fprintf(out, "frame %d: %.1fms %dx%d bodies=%d\n",
			count, rec.TimestampMs, rec.DepthWidth, rec.DepthHeight, rec.BodyCount)
		for _, b := range rec.ValidBodies() {
			fmt.Fprintf(out, "  body %d: %d joints\n", b.ID, b.JointCount)
			if !joints {
				continue
			}
			for i, j := range b.ValidJoints() {
				fmt.Fprintf(out, "    %-15s (%.0f, %.0f, %.0f) %s\n",
					sensor.JointID(i), j.Position.X, j.Position.Y, j.Position.Z, j.Confidence)
			}
		}
		count++
	}
	fmt.Fprintf(out, "%d frames\n", count)
	return nil
}

func printHeader(out io.Writer, h *headers.HeaderInfo) {
	fmt.Fprintf(out, "session: %s\n", h.SessionID)
	fmt.Fprintf(out, "started: %s\n", h.Started.Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(out, "device: %s (%d)\n", h.DeviceName, h.DeviceID)
	fmt.Fprintf(out, "serial: %s\n", h.Serial)
	fmt.Fprintf(out, "depth mode: %s at %d fps, max depth %dmm\n", h.DepthMode, h.FPS, h.MaxDepth)
	fmt.Fprintf(out, "joints per body: %d\n", h.JointsPerBody)
	fmt.Fprintf(out, "compression: %s\n", h.Compression)
}

func export(filename string, n int, outName string) error {
	if n < 0 {
		return errors.New("frame can't be negative")
	}
	r, err := bodylog.Open(filename)
	if err != nil {
		return err
	}
	defer r.Close()

	rec := frame.NewRecord(frame.DefaultCapacity())
	for i := 0; i <= n; i++ {
		if err := r.ReadRecord(rec); err != nil {
			if err == io.EOF {
				return errors.Errorf("log only has %d frames", i)
			}
			return errors.Wrapf(err, "frame %d", i)
		}
	}

	f, err := os.Create(outName)
	if err != nil {
		return err
	}
	if err := png.Encode(f, rec.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
