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
	"image"
	"image/color"
)

const jointMarkSize = 2

// Image converts the packed depth image to greyscale and marks each
// projected joint with a white square.
func (r *Record) Image() *image.Gray {
	w, h := int(r.DepthWidth), int(r.DepthHeight)
	g := image.NewGray(image.Rect(0, 0, w, h))
	depth := r.ValidDepth()
	for i := range g.Pix {
		g.Pix[i] = depth[i*3]
	}
	for _, b := range r.ValidBodies() {
		for _, j := range b.ValidJoints() {
			if j.Projected {
				markJoint(g, int(j.Position2D.X+0.5), int(j.Position2D.Y+0.5))
			}
		}
	}
	return g
}

func markJoint(g *image.Gray, cx, cy int) {
	for y := cy - jointMarkSize; y <= cy+jointMarkSize; y++ {
		for x := cx - jointMarkSize; x <= cx+jointMarkSize; x++ {
			if (image.Point{X: x, Y: y}).In(g.Rect) {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
}
