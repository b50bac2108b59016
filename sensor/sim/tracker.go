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

package sim

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/TheCacophonyProject/body-tracker/sensor"
)

// pose is a standing person relative to their pelvis, in mm with y down.
var pose = [sensor.JointCount]r3.Vec{
	sensor.JointPelvis:        {X: 0, Y: 0, Z: 0},
	sensor.JointSpineNavel:    {X: 0, Y: -180, Z: 0},
	sensor.JointSpineChest:    {X: 0, Y: -380, Z: 0},
	sensor.JointNeck:          {X: 0, Y: -560, Z: 0},
	sensor.JointClavicleLeft:  {X: -40, Y: -520, Z: 0},
	sensor.JointShoulderLeft:  {X: -180, Y: -500, Z: 0},
	sensor.JointElbowLeft:     {X: -210, Y: -230, Z: 0},
	sensor.JointWristLeft:     {X: -220, Y: 20, Z: 0},
	sensor.JointHandLeft:      {X: -220, Y: 80, Z: 0},
	sensor.JointHandTipLeft:   {X: -220, Y: 150, Z: 0},
	sensor.JointThumbLeft:     {X: -190, Y: 100, Z: -30},
	sensor.JointClavicleRight: {X: 40, Y: -520, Z: 0},
	sensor.JointShoulderRight: {X: 180, Y: -500, Z: 0},
	sensor.JointElbowRight:    {X: 210, Y: -230, Z: 0},
	sensor.JointWristRight:    {X: 220, Y: 20, Z: 0},
	sensor.JointHandRight:     {X: 220, Y: 80, Z: 0},
	sensor.JointHandTipRight:  {X: 220, Y: 150, Z: 0},
	sensor.JointThumbRight:    {X: 190, Y: 100, Z: -30},
	sensor.JointHipLeft:       {X: -90, Y: 20, Z: 0},
	sensor.JointKneeLeft:      {X: -95, Y: 450, Z: 0},
	sensor.JointAnkleLeft:     {X: -95, Y: 850, Z: 0},
	sensor.JointFootLeft:      {X: -95, Y: 900, Z: -120},
	sensor.JointHipRight:      {X: 90, Y: 20, Z: 0},
	sensor.JointKneeRight:     {X: 95, Y: 450, Z: 0},
	sensor.JointAnkleRight:    {X: 95, Y: 850, Z: 0},
	sensor.JointFootRight:     {X: 95, Y: 900, Z: -120},
	sensor.JointHead:          {X: 0, Y: -680, Z: 0},
	sensor.JointNose:          {X: 0, Y: -670, Z: -90},
	sensor.JointEyeLeft:       {X: -30, Y: -710, Z: -75},
	sensor.JointEarLeft:       {X: -75, Y: -690, Z: 0},
	sensor.JointEyeRight:      {X: 30, Y: -710, Z: -75},
	sensor.JointEarRight:      {X: 75, Y: -690, Z: 0},
}

// bodyHalfWidth and bodyDepth size the block drawn for each person in the
// depth image.
const (
	bodyHalfWidth = 250
	bodyDepth     = 200
)

// Tracker queues captures and produces a result once Latency more captures
// have been queued behind it.
type Tracker struct {
	device *Device
	cal    *Pinhole
	maxLen int

	mu     sync.Mutex
	queue  []*Capture
	closed bool
}

func (t *Tracker) Enqueue(c sensor.Capture, timeout time.Duration) error {
	capture, ok := c.(*Capture)
	if !ok {
		return errors.New("sim: capture is not from a simulated device")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("sim: tracker closed")
	}
	if len(t.queue) >= t.maxLen {
		// Nothing can pop while the caller is blocked here.
		return sensor.ErrTimeout
	}
	t.queue = append(t.queue, &Capture{index: capture.index, timestamp: capture.timestamp})
	return nil
}

func (t *Tracker) PopResult(timeout time.Duration, errorOnTimeout bool) (sensor.TrackedFrame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errors.New("sim: tracker closed")
	}
	if len(t.queue) < t.maxLen {
		if errorOnTimeout {
			return nil, sensor.ErrTimeout
		}
		return nil, nil
	}
	c := t.queue[0]
	t.queue = append(t.queue[:0], t.queue[1:]...)
	return &TrackedFrame{
		tracker:   t,
		index:     c.index,
		timestamp: c.timestamp,
		bodies:    t.device.conf.Bodies,
	}, nil
}

func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.queue = nil
	return nil
}

// TrackedFrame is the simulated result for one capture.
type TrackedFrame struct {
	tracker   *Tracker
	index     int
	timestamp time.Duration
	bodies    int
	released  bool
}

func (f *TrackedFrame) NumBodies() int {
	return f.bodies
}

// Skeleton places body i at its position for the frame's time.
func (f *TrackedFrame) Skeleton(i int, s *sensor.Skeleton) error {
	if f.released {
		return errors.New("sim: frame released")
	}
	if i < 0 || i >= f.bodies {
		return errors.Errorf("sim: no body %d", i)
	}
	pelvis, heading := f.bodyPosition(i)
	orientation := quat.Number{Real: math.Cos(heading / 2), Jmag: math.Sin(heading / 2)}

	s.ID = uint32(i + 1)
	for j := range s.Joints {
		s.Joints[j] = sensor.SkeletonJoint{
			Position:    r3.Add(pelvis, pose[j]),
			Orientation: orientation,
			Confidence:  sensor.ConfidenceMedium,
		}
	}
	return nil
}

// bodyPosition returns where body i is, walking along an ellipse, and the
// direction it faces.
func (f *TrackedFrame) bodyPosition(i int) (r3.Vec, float64) {
	t := f.timestamp.Seconds()
	phase := float64(i) * 2 * math.Pi / float64(f.bodies)
	wall := float64(f.tracker.device.conf.Wall)
	angle := 0.3*t + phase
	pelvis := r3.Vec{
		X: 1200 * math.Sin(angle),
		Y: 150,
		Z: wall*0.6 + wall*0.2*math.Cos(angle),
	}
	return pelvis, angle
}

// DepthImage draws the wall with a block for each person in front of it.
func (f *TrackedFrame) DepthImage() (*sensor.DepthImage, error) {
	if f.released {
		return nil, errors.New("sim: frame released")
	}
	cal := f.tracker.cal
	w, h := cal.Width, cal.Height
	img := &sensor.DepthImage{
		Width:           w,
		Height:          h,
		Samples:         make([]uint16, w*h),
		DeviceTimestamp: f.timestamp,
	}
	wall := f.tracker.device.conf.Wall
	for i := range img.Samples {
		img.Samples[i] = wall
	}
	// No return from the top row.
	for x := 0; x < w; x++ {
		img.Samples[x] = 0
	}

	for i := 0; i < f.bodies; i++ {
		var s sensor.Skeleton
		if err := f.Skeleton(i, &s); err != nil {
			return nil, err
		}
		f.drawBody(img, &s)
	}
	return img, nil
}

func (f *TrackedFrame) drawBody(img *sensor.DepthImage, s *sensor.Skeleton) {
	cal := f.tracker.cal
	pelvis := s.Joints[sensor.JointPelvis].Position
	top := r3.Add(s.Joints[sensor.JointHead].Position, r3.Vec{X: -bodyHalfWidth, Y: -100})
	bottom := r3.Add(s.Joints[sensor.JointFootLeft].Position, r3.Vec{X: bodyHalfWidth})
	top.Z, bottom.Z = pelvis.Z, pelvis.Z

	p0, _ := cal.Project(top)
	p1, _ := cal.Project(bottom)
	x0, y0 := clamp(int(p0.X), 0, img.Width), clamp(int(p0.Y), 0, img.Height)
	x1, y1 := clamp(int(p1.X), 0, img.Width), clamp(int(p1.Y), 0, img.Height)
	if pelvis.Z-bodyDepth <= 0 {
		return
	}
	d := uint16(pelvis.Z - bodyDepth)
	for y := y0; y < y1; y++ {
		row := img.Samples[y*img.Width : (y+1)*img.Width]
		for x := x0; x < x1; x++ {
			if row[x] == 0 || d < row[x] {
				row[x] = d
			}
		}
	}
}

func (f *TrackedFrame) Release() {
	f.released = true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
