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

package bodylog

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/sensor"
)

var (
	ErrCapacityExceeded = errors.New("bodylog: record does not fit in destination")
	ErrCorrupt          = errors.New("bodylog: corrupt record")
)

// Reader reads records written by Writer. After an error other than
// io.EOF the position in the stream is undefined.
type Reader struct {
	r       io.Reader
	closer  io.Closer
	header  [RecordHeaderSize]byte
	scratch []byte
}

func NewReader(r io.Reader) *Reader {
	rd := &Reader{r: r}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// ReadRecord reads the next record into dst. It returns io.EOF when the
// stream ends cleanly between records and io.ErrUnexpectedEOF when it ends
// part way through one.
func (rd *Reader) ReadRecord(dst *frame.Record) error {
	if _, err := io.ReadFull(rd.r, rd.header[:]); err != nil {
		return err
	}
	ts := math.Float32frombits(order.Uint32(rd.header[0:]))
	width := int32(order.Uint32(rd.header[4:]))
	height := int32(order.Uint32(rd.header[8:]))
	size := int32(order.Uint32(rd.header[12:]))
	bodyCount := order.Uint64(rd.header[16:])

	if width < 0 || height < 0 || int64(size) != int64(width)*int64(height)*3 {
		return errors.Wrapf(ErrCorrupt, "depth size %d for %dx%d", size, width, height)
	}
	if bodyCount > uint64(len(dst.Bodies)) {
		return errors.Wrapf(ErrCapacityExceeded, "%d bodies", bodyCount)
	}
	if int(size) > len(dst.Depth) {
		return errors.Wrapf(ErrCapacityExceeded, "%d depth bytes", size)
	}

	for i := 0; i < int(bodyCount); i++ {
		if err := rd.readBody(&dst.Bodies[i]); err != nil {
			return err
		}
	}
	if err := rd.readFull(dst.Depth[:size]); err != nil {
		return err
	}

	dst.TimestampMs = ts
	dst.DepthWidth = width
	dst.DepthHeight = height
	dst.DepthSize = size
	dst.BodyCount = bodyCount
	return nil
}

func (rd *Reader) readBody(b *frame.Body) error {
	var hdr [BodyHeaderSize]byte
	if err := rd.readFull(hdr[:]); err != nil {
		return err
	}
	id := order.Uint32(hdr[0:])
	jointCount := int(order.Uint32(hdr[4:]))
	if jointCount < 0 || jointCount > len(b.Joints) {
		return errors.Wrapf(ErrCapacityExceeded, "%d joints", jointCount)
	}

	n := jointCount * JointSize
	if cap(rd.scratch) < n {
		rd.scratch = make([]byte, n)
	}
	buf := rd.scratch[:n]
	if err := rd.readFull(buf); err != nil {
		return err
	}
	for i := 0; i < jointCount; i++ {
		decodeJoint(buf[i*JointSize:], &b.Joints[i])
	}
	b.ID = id
	b.JointCount = jointCount
	return nil
}

func decodeJoint(buf []byte, j *frame.Joint) {
	f := func(i int) float64 {
		return float64(math.Float32frombits(order.Uint32(buf[i*4:])))
	}
	j.Position = r3.Vec{X: f(0), Y: f(1), Z: f(2)}
	u, v := f(3), f(4)
	j.Projected = !math.IsNaN(u) && !math.IsNaN(v)
	if j.Projected {
		j.Position2D = r2.Vec{X: u, Y: v}
	} else {
		j.Position2D = r2.Vec{}
	}
	j.Orientation = quat.Number{Real: f(5), Imag: f(6), Jmag: f(7), Kmag: f(8)}
	j.Confidence = sensor.Confidence(order.Uint32(buf[36:]))
}

// readFull reads mid-record, where running out of data is never a clean
// end of stream.
func (rd *Reader) readFull(buf []byte) error {
	_, err := io.ReadFull(rd.r, buf)
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (rd *Reader) Close() error {
	if rd.closer == nil {
		return nil
	}
	return rd.closer.Close()
}
