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

package recorder

import "github.com/TheCacophonyProject/body-tracker/sensor"

// Camera describes the depth camera to the CPTV writer.
type Camera struct {
	Width  int
	Height int
	Rate   int
}

func NewCamera(c sensor.DeviceConfig) (Camera, error) {
	w, h, err := c.DepthMode.Resolution()
	if err != nil {
		return Camera{}, err
	}
	return Camera{Width: w, Height: h, Rate: int(c.FPS)}, nil
}

func (c Camera) ResX() int { return c.Width }
func (c Camera) ResY() int { return c.Height }
func (c Camera) FPS() int  { return c.Rate }
