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

// Package sim is a simulated depth sensor and body tracker. People walk
// back and forth in front of a flat wall.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/TheCacophonyProject/body-tracker/sensor"
)

var errClosed = errors.New("sim: device closed")

type Config struct {
	Serial string
	// Bodies is the number of people walking about.
	Bodies int
	// Wall is the distance (mm) to the background.
	Wall uint16
	// Latency is the number of captures queued in the tracker before
	// results come out.
	Latency int
	// Realtime paces captures to the configured frame rate. Otherwise
	// captures are returned straight away with simulated timestamps.
	Realtime bool
}

func DefaultConfig() Config {
	return Config{
		Serial:   "SIM000001",
		Bodies:   2,
		Wall:     4000,
		Latency:  1,
		Realtime: true,
	}
}

// Open returns an OpenFunc for simulated devices. Every index opens a new
// device.
func Open(conf Config) sensor.OpenFunc {
	return func(index int) (sensor.Device, error) {
		if index < 0 {
			return nil, errors.Errorf("sim: no device %d", index)
		}
		return &Device{
			conf:    conf,
			nowFunc: time.Now,
			sleep:   time.Sleep,
		}, nil
	}
}

// Device is a simulated depth sensor.
type Device struct {
	conf    Config
	nowFunc func() time.Time
	sleep   func(time.Duration)

	mu      sync.Mutex
	started bool
	closed  bool
	camera  sensor.DeviceConfig
	width   int
	height  int
	period  time.Duration
	next    time.Time
	count   int
}

func (d *Device) StartCameras(c sensor.DeviceConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	w, h, err := c.DepthMode.Resolution()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	if d.started {
		return errors.New("sim: cameras already started")
	}
	d.started = true
	d.camera = c
	d.width, d.height = w, h
	d.period = time.Second / time.Duration(c.FPS)
	d.next = d.nowFunc()
	return nil
}

func (d *Device) Calibration() (sensor.Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, errors.New("sim: cameras not started")
	}
	return newPinhole(d.width, d.height, d.camera.DepthMode), nil
}

func (d *Device) NewTracker(cal sensor.Calibration, c sensor.TrackerConfig) (sensor.Tracker, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, ok := cal.(*Pinhole)
	if !ok {
		return nil, errors.New("sim: calibration is not from a simulated device")
	}
	return &Tracker{
		device: d,
		cal:    p,
		maxLen: d.conf.Latency + 1,
	}, nil
}

// Capture waits for the next frame time when running in real time.
func (d *Device) Capture(timeout time.Duration) (sensor.Capture, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errClosed
	}
	if !d.started {
		d.mu.Unlock()
		return nil, errors.New("sim: cameras not started")
	}
	n := d.count
	wait := time.Duration(0)
	if d.conf.Realtime {
		wait = d.next.Sub(d.nowFunc())
	}
	if timeout >= 0 && wait > timeout {
		d.mu.Unlock()
		d.sleep(timeout)
		return nil, sensor.ErrTimeout
	}
	d.count++
	d.next = d.next.Add(d.period)
	period := d.period
	d.mu.Unlock()

	if wait > 0 {
		d.sleep(wait)
	}
	return &Capture{
		index:     n,
		timestamp: time.Duration(n) * period,
	}, nil
}

func (d *Device) SerialNumber() string {
	return d.conf.Serial
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	d.closed = true
	return nil
}

// Capture is a simulated capture, identified by its index.
type Capture struct {
	index     int
	timestamp time.Duration
	released  bool
}

func (c *Capture) Release() {
	c.released = true
}

// Pinhole is a calibration for an ideal pinhole camera.
type Pinhole struct {
	Width, Height int
	Fx, Fy        float64
	Cx, Cy        float64
}

func newPinhole(w, h int, mode sensor.DepthMode) *Pinhole {
	hfov, vfov := 75.0, 65.0
	if mode == sensor.DepthWFOV2x2Binned || mode == sensor.DepthWFOVUnbinned {
		hfov, vfov = 120.0, 120.0
	}
	return &Pinhole{
		Width:  w,
		Height: h,
		Fx:     float64(w) / 2 / math.Tan(hfov/2*math.Pi/180),
		Fy:     float64(h) / 2 / math.Tan(vfov/2*math.Pi/180),
		Cx:     float64(w) / 2,
		Cy:     float64(h) / 2,
	}
}

func (p *Pinhole) Project(v r3.Vec) (r2.Vec, bool) {
	if v.Z <= 0 {
		return r2.Vec{}, false
	}
	pix := r2.Vec{
		X: p.Cx + p.Fx*v.X/v.Z,
		Y: p.Cy + p.Fy*v.Y/v.Z,
	}
	ok := pix.X >= 0 && pix.Y >= 0 && pix.X < float64(p.Width) && pix.Y < float64(p.Height)
	return pix, ok
}
