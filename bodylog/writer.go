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

// Package bodylog writes and reads the binary body log. Each tracked frame
// is appended as one record holding only the valid part of the frame:
//
//	float32  timestamp (ms)
//	int32    depth width
//	int32    depth height
//	int32    depth size (width*height*3)
//	uint64   body count
//	body count times:
//	    uint32 body id
//	    uint32 joint count
//	    joint count times (40 bytes each):
//	        float32 x, y, z
//	        float32 u, v (NaN if the joint could not be projected)
//	        float32 qw, qx, qy, qz
//	        uint32  confidence
//	byte[depth size] packed depth image
//
// All values are little endian. There is no file header; a record is
// found purely from the length fields of the one before it.
package bodylog

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/TheCacophonyProject/body-tracker/frame"
)

const (
	RecordHeaderSize = 24
	BodyHeaderSize   = 8
	JointSize        = 40
)

var order = binary.LittleEndian

// Writer appends records to a stream. A Writer whose stream is nil, has
// been closed or has failed a write silently ignores further frames.
type Writer struct {
	w       io.Writer
	closer  io.Closer
	name    string
	scratch []byte
	broken  bool
	closed  bool
	frames  int
}

// NewWriter returns a Writer for w. If w is also an io.Closer it is closed
// by Close.
func NewWriter(w io.Writer) *Writer {
	bw := &Writer{
		w:       w,
		scratch: make([]byte, 0, RecordHeaderSize+BodyHeaderSize+32*JointSize),
	}
	if c, ok := w.(io.Closer); ok {
		bw.closer = c
	}
	return bw
}

// Name returns the file name for writers made by Create.
func (w *Writer) Name() string {
	return w.name
}

// Frames returns the number of records written.
func (w *Writer) Frames() int {
	return w.frames
}

// Writable reports whether frames will still be written.
func (w *Writer) Writable() bool {
	return w != nil && w.w != nil && !w.closed && !w.broken
}

// LogFrame appends r to the stream. Only the valid bodies, joints and depth
// bytes are written. The first failed write is returned; the stream is
// treated as unwritable after that.
func (w *Writer) LogFrame(r *frame.Record) error {
	if !w.Writable() {
		return nil
	}
	if err := r.Validate(); err != nil {
		return errors.Wrap(err, "not logging invalid record")
	}

	w.scratch = AppendRecord(w.scratch[:0], r)
	if _, err := w.w.Write(w.scratch); err != nil {
		w.broken = true
		return errors.Wrap(err, "writing body log")
	}
	if _, err := w.w.Write(r.ValidDepth()); err != nil {
		w.broken = true
		return errors.Wrap(err, "writing body log")
	}
	w.frames++
	return nil
}

// Close closes the underlying stream. Only the first call has any effect.
func (w *Writer) Close() error {
	if w == nil || w.closed {
		return nil
	}
	w.closed = true
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// AppendRecord appends the encoded header and bodies of r to buf. The depth
// bytes are not included; they follow directly after in the stream.
func AppendRecord(buf []byte, r *frame.Record) []byte {
	buf = order.AppendUint32(buf, math.Float32bits(r.TimestampMs))
	buf = order.AppendUint32(buf, uint32(r.DepthWidth))
	buf = order.AppendUint32(buf, uint32(r.DepthHeight))
	buf = order.AppendUint32(buf, uint32(r.DepthSize))
	buf = order.AppendUint64(buf, r.BodyCount)
	for i := range r.ValidBodies() {
		buf = appendBody(buf, &r.Bodies[i])
	}
	return buf
}

func appendBody(buf []byte, b *frame.Body) []byte {
	buf = order.AppendUint32(buf, b.ID)
	buf = order.AppendUint32(buf, uint32(b.JointCount))
	for i := range b.ValidJoints() {
		j := &b.Joints[i]
		u, v := float32(math.NaN()), float32(math.NaN())
		if j.Projected {
			u, v = float32(j.Position2D.X), float32(j.Position2D.Y)
		}
		buf = appendFloats(buf,
			float32(j.Position.X), float32(j.Position.Y), float32(j.Position.Z),
			u, v,
			float32(j.Orientation.Real), float32(j.Orientation.Imag),
			float32(j.Orientation.Jmag), float32(j.Orientation.Kmag),
		)
		buf = order.AppendUint32(buf, uint32(j.Confidence))
	}
	return buf
}

func appendFloats(buf []byte, fs ...float32) []byte {
	for _, f := range fs {
		buf = order.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// RecordSize returns the number of bytes r takes in the stream.
func RecordSize(r *frame.Record) int {
	n := RecordHeaderSize + int(r.DepthSize)
	for i := range r.ValidBodies() {
		n += BodyHeaderSize + r.Bodies[i].JointCount*JointSize
	}
	return n
}
