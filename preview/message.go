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

package preview

import "github.com/TheCacophonyProject/body-tracker/frame"

// Message is one frame as sent to preview clients.
type Message struct {
	Seq         uint64  `cbor:"seq"`
	TimestampMs float32 `cbor:"ts"`
	Width       int32   `cbor:"w"`
	Height      int32   `cbor:"h"`
	Depth       []byte  `cbor:"depth,omitempty"`
	Bodies      []Body  `cbor:"bodies"`
}

type Body struct {
	ID     uint32  `cbor:"id"`
	Joints []Joint `cbor:"joints"`
}

// Joint positions are in millimetres. Pixel is only set for joints that
// land on the depth image.
type Joint struct {
	Position   [3]float32  `cbor:"p"`
	Pixel      *[2]float32 `cbor:"px,omitempty"`
	Confidence uint32      `cbor:"c"`
}

// From fills m from rec, reusing m's slices.
func (m *Message) From(rec *frame.Record, includeDepth bool) {
	m.Seq = rec.Seq
	m.TimestampMs = rec.TimestampMs
	m.Width = rec.DepthWidth
	m.Height = rec.DepthHeight
	m.Depth = m.Depth[:0]
	if includeDepth {
		m.Depth = append(m.Depth, rec.ValidDepth()...)
	}

	bodies := rec.ValidBodies()
	if cap(m.Bodies) < len(bodies) {
		m.Bodies = make([]Body, len(bodies))
	}
	m.Bodies = m.Bodies[:len(bodies)]
	for i := range bodies {
		src := &bodies[i]
		dst := &m.Bodies[i]
		dst.ID = src.ID
		joints := src.ValidJoints()
		if cap(dst.Joints) < len(joints) {
			dst.Joints = make([]Joint, len(joints))
		}
		dst.Joints = dst.Joints[:len(joints)]
		for j := range joints {
			dst.Joints[j] = toJoint(&joints[j])
		}
	}
}

func toJoint(j *frame.Joint) Joint {
	out := Joint{
		Position:   [3]float32{float32(j.Position.X), float32(j.Position.Y), float32(j.Position.Z)},
		Confidence: uint32(j.Confidence),
	}
	if j.Projected {
		out.Pixel = &[2]float32{float32(j.Position2D.X), float32(j.Position2D.Y)}
	}
	return out
}
