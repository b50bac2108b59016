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

// Package k4a binds the Azure Kinect sensor SDK (libk4a) and body tracking
// SDK (libk4abt). The binding is only built with the k4a build tag; the
// mode tables here are shared with the rest of the package.
package k4a

import (
	"fmt"
	"math"
	"time"

	"github.com/TheCacophonyProject/body-tracker/sensor"
)

// Values of the SDK enums, in the order libk4a and libk4abt declare them.
const (
	depthModeOff = iota
	depthModeNFOV2x2Binned
	depthModeNFOVUnbinned
	depthModeWFOV2x2Binned
	depthModeWFOVUnbinned
)

const (
	colorResolutionOff = iota
	colorResolution720P
	colorResolution1080P
)

const (
	fps5 = iota
	fps15
	fps30
)

const (
	syncStandalone = iota
	syncMaster
	syncSubordinate
)

const (
	orientationDefault = iota
	orientationClockwise90
	orientationCounterClockwise90
	orientationFlip180
)

const (
	processingGPU = iota
	processingCPU
	processingCUDA
)

// deviceModes is DeviceConfig in SDK values.
type deviceModes struct {
	depth int
	color int
	fps   int
	sync  int
}

func toDeviceModes(c sensor.DeviceConfig) (deviceModes, error) {
	var m deviceModes
	if err := c.Validate(); err != nil {
		return m, err
	}
	switch c.DepthMode {
	case sensor.DepthOff:
		m.depth = depthModeOff
	case sensor.DepthNFOV2x2Binned:
		m.depth = depthModeNFOV2x2Binned
	case sensor.DepthNFOVUnbinned:
		m.depth = depthModeNFOVUnbinned
	case sensor.DepthWFOV2x2Binned:
		m.depth = depthModeWFOV2x2Binned
	case sensor.DepthWFOVUnbinned:
		m.depth = depthModeWFOVUnbinned
	default:
		return m, fmt.Errorf("unsupported depth mode %q", string(c.DepthMode))
	}
	switch c.ColorResolution {
	case sensor.ColorOff, "":
		m.color = colorResolutionOff
	case sensor.Color720P:
		m.color = colorResolution720P
	case sensor.Color1080P:
		m.color = colorResolution1080P
	default:
		return m, fmt.Errorf("unsupported color resolution %q", string(c.ColorResolution))
	}
	switch c.FPS {
	case sensor.FPS5:
		m.fps = fps5
	case sensor.FPS15:
		m.fps = fps15
	case sensor.FPS30:
		m.fps = fps30
	}
	switch c.SyncMode {
	case sensor.SyncStandalone:
		m.sync = syncStandalone
	case sensor.SyncMaster:
		m.sync = syncMaster
	case sensor.SyncSubordinate:
		m.sync = syncSubordinate
	}
	return m, nil
}

// trackerModes is TrackerConfig in SDK values.
type trackerModes struct {
	orientation int
	processing  int
	gpuDeviceID int
}

func toTrackerModes(c sensor.TrackerConfig) (trackerModes, error) {
	var m trackerModes
	if err := c.Validate(); err != nil {
		return m, err
	}
	switch c.SensorOrientation {
	case sensor.OrientationDefault:
		m.orientation = orientationDefault
	case sensor.OrientationClockwise90:
		m.orientation = orientationClockwise90
	case sensor.OrientationCounterCW90:
		m.orientation = orientationCounterClockwise90
	case sensor.OrientationFlip180:
		m.orientation = orientationFlip180
	}
	switch c.ProcessingMode {
	case sensor.ProcessingGPU:
		m.processing = processingGPU
	case sensor.ProcessingCPU:
		m.processing = processingCPU
	case sensor.ProcessingCUDA:
		m.processing = processingCUDA
	}
	m.gpuDeviceID = c.GPUDeviceID
	return m, nil
}

// timeoutMs converts a timeout to the SDK's int32 milliseconds, where -1
// waits forever.
func timeoutMs(d time.Duration) int32 {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(ms)
}
