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

package worker

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/TheCacophonyProject/body-tracker/sensor"
)

// State is the lifecycle stage of a Worker.
type State int32

const (
	Idle State = iota
	DeviceOpening
	Streaming
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DeviceOpening:
		return "opening device"
	case Streaming:
		return "streaming"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ErrDeviceOpen matches a FaultError raised while the device was being
// opened and configured.
var ErrDeviceOpen = errors.New("worker: unable to open device")

// FaultError is returned by Run when acquisition stopped because of an
// error rather than because it was asked to.
type FaultError struct {
	State State
	Err   error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("body tracking failed while %s: %v", e.State, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

func (e *FaultError) Cause() error {
	return e.Err
}

func (e *FaultError) Is(target error) bool {
	return target == ErrDeviceOpen && e.State == DeviceOpening
}

// Config controls how the device is opened and how frames are converted.
type Config struct {
	DeviceIndex int
	Device      sensor.DeviceConfig
	Tracker     sensor.TrackerConfig

	// MaxDepth is the depth (mm) packed as full brightness.
	MaxDepth uint16

	// CaptureTimeout bounds the wait for each capture, so that
	// cancellation is noticed even if the device stops producing
	// frames. Zero waits forever.
	CaptureTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Device:         sensor.DefaultDeviceConfig(),
		Tracker:        sensor.DefaultTrackerConfig(),
		MaxDepth:       5000,
		CaptureTimeout: time.Second,
	}
}

func (c Config) Validate() error {
	if c.DeviceIndex < 0 {
		return errors.New("device index should not be negative")
	}
	if c.MaxDepth == 0 {
		return errors.New("max-depth should be positive")
	}
	if c.CaptureTimeout < 0 {
		return errors.New("capture-timeout should not be negative")
	}
	if err := c.Device.Validate(); err != nil {
		return err
	}
	return c.Tracker.Validate()
}
