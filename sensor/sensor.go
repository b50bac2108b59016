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

// Package sensor describes the parts of a depth sensor and body tracking
// SDK that body-tracker consumes. Implementations live in sub-packages.
package sensor

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Forever can be passed as a timeout to wait without limit.
const Forever time.Duration = -1

// JointCount is the number of joints in a tracked skeleton.
const JointCount = 32

// ErrTimeout is returned when an operation did not complete within its
// timeout.
var ErrTimeout = errors.New("sensor: timed out")

// OpenFunc opens the device with the given index.
type OpenFunc func(index int) (Device, error)

// Device is an opened depth sensor.
type Device interface {
	StartCameras(DeviceConfig) error
	Calibration() (Calibration, error)
	NewTracker(Calibration, TrackerConfig) (Tracker, error)

	// Capture blocks until the next capture is available or timeout
	// elapses, in which case ErrTimeout is returned.
	Capture(timeout time.Duration) (Capture, error)

	SerialNumber() string

	// Close stops the cameras and releases the device.
	Close() error
}

// Capture is one synchronised set of sensor images. The caller must
// release it.
type Capture interface {
	Release()
}

// Tracker turns captures into tracked frames.
type Tracker interface {
	Enqueue(c Capture, timeout time.Duration) error

	// PopResult returns the next tracked frame. When no frame is ready
	// within timeout, PopResult returns ErrTimeout if errorOnTimeout is
	// set, otherwise a nil frame and nil error.
	PopResult(timeout time.Duration, errorOnTimeout bool) (TrackedFrame, error)

	Close() error
}

// TrackedFrame is the tracker output for one capture. Data returned from
// it is only valid until Release is called.
type TrackedFrame interface {
	NumBodies() int
	Skeleton(i int, s *Skeleton) error
	DepthImage() (*DepthImage, error)
	Release()
}

// Calibration maps depth camera space to the depth image.
type Calibration interface {
	// Project converts a point in millimetres to depth image pixel
	// coordinates. ok is false if the point does not land on the image.
	Project(p r3.Vec) (pix r2.Vec, ok bool)
}

// DepthImage holds 16 bit depth samples in millimetres, row major. 0 means
// no return.
type DepthImage struct {
	Width           int
	Height          int
	Samples         []uint16
	DeviceTimestamp time.Duration
}

// Confidence is the tracking confidence of a joint.
type Confidence uint32

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceNone:
		return "none"
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	}
	return "unknown"
}

// SkeletonJoint is a joint as reported by the tracker.
type SkeletonJoint struct {
	Position    r3.Vec
	Orientation quat.Number
	Confidence  Confidence
}

// Skeleton is one tracked body.
type Skeleton struct {
	ID     uint32
	Joints [JointCount]SkeletonJoint
}
