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

package frame

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/TheCacophonyProject/body-tracker/sensor"
)

// Joint is one skeletal landmark of a body.
type Joint struct {
	// Position is in millimetres, in depth camera space.
	Position r3.Vec
	// Position2D is Position projected onto the depth image. Only
	// meaningful when Projected is set.
	Position2D  r2.Vec
	Projected   bool
	Orientation quat.Number
	Confidence  sensor.Confidence
}

// Body is one tracked person. Joints is allocated once; JointCount marks
// how many of them are valid.
type Body struct {
	ID         uint32
	JointCount int
	Joints     []Joint
}

func NewBody(maxJoints int) Body {
	return Body{Joints: make([]Joint, maxJoints)}
}

func (b *Body) ValidJoints() []Joint {
	return b.Joints[:b.JointCount]
}

// CopyFrom overwrites b with a tracked skeleton, projecting each joint onto
// the depth image with cal.
func (b *Body) CopyFrom(s *sensor.Skeleton, cal sensor.Calibration) {
	n := len(s.Joints)
	if n > len(b.Joints) {
		n = len(b.Joints)
	}
	b.ID = s.ID
	for i := 0; i < n; i++ {
		src := &s.Joints[i]
		j := &b.Joints[i]
		j.Position = src.Position
		j.Orientation = src.Orientation
		j.Confidence = src.Confidence
		j.Position2D, j.Projected = cal.Project(src.Position)
	}
	b.JointCount = n
}

func (b *Body) copyBody(src *Body) {
	b.ID = src.ID
	b.JointCount = copy(b.Joints, src.ValidJoints())
}
