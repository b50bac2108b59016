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

package sensor

import "fmt"

type FPS int

const (
	FPS5  FPS = 5
	FPS15 FPS = 15
	FPS30 FPS = 30
)

type ColorResolution string

const (
	ColorOff   ColorResolution = "off"
	Color720P  ColorResolution = "720p"
	Color1080P ColorResolution = "1080p"
)

type DepthMode string

const (
	DepthOff           DepthMode = "off"
	DepthNFOV2x2Binned DepthMode = "nfov-2x2-binned"
	DepthNFOVUnbinned  DepthMode = "nfov-unbinned"
	DepthWFOV2x2Binned DepthMode = "wfov-2x2-binned"
	DepthWFOVUnbinned  DepthMode = "wfov-unbinned"
)

// Resolution returns the depth image size produced in this mode.
func (m DepthMode) Resolution() (width, height int, err error) {
	switch m {
	case DepthNFOV2x2Binned:
		return 320, 288, nil
	case DepthNFOVUnbinned:
		return 640, 576, nil
	case DepthWFOV2x2Binned:
		return 512, 512, nil
	case DepthWFOVUnbinned:
		return 1024, 1024, nil
	}
	return 0, 0, fmt.Errorf("no depth resolution for mode %q", string(m))
}

type SyncMode string

const (
	SyncStandalone  SyncMode = "standalone"
	SyncMaster      SyncMode = "master"
	SyncSubordinate SyncMode = "subordinate"
)

// DeviceConfig is used to start the device cameras.
type DeviceConfig struct {
	FPS             FPS             `yaml:"fps"`
	ColorResolution ColorResolution `yaml:"color-resolution"`
	DepthMode       DepthMode       `yaml:"depth-mode"`
	SyncMode        SyncMode        `yaml:"sync-mode"`
}

// DefaultDeviceConfig is the camera set up used for body tracking.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		FPS:             FPS30,
		ColorResolution: ColorOff,
		DepthMode:       DepthNFOVUnbinned,
		SyncMode:        SyncStandalone,
	}
}

func (c DeviceConfig) Validate() error {
	switch c.FPS {
	case FPS5, FPS15, FPS30:
	default:
		return fmt.Errorf("invalid fps: %d", c.FPS)
	}
	if _, _, err := c.DepthMode.Resolution(); err != nil {
		return err
	}
	if c.DepthMode == DepthWFOVUnbinned && c.FPS == FPS30 {
		return fmt.Errorf("depth mode %s does not support %d fps", c.DepthMode, c.FPS)
	}
	switch c.SyncMode {
	case SyncStandalone, SyncMaster, SyncSubordinate:
	default:
		return fmt.Errorf("invalid sync mode: %q", string(c.SyncMode))
	}
	return nil
}

type ProcessingMode string

const (
	ProcessingGPU  ProcessingMode = "gpu"
	ProcessingCPU  ProcessingMode = "cpu"
	ProcessingCUDA ProcessingMode = "cuda"
)

type SensorOrientation string

const (
	OrientationDefault     SensorOrientation = "default"
	OrientationClockwise90 SensorOrientation = "clockwise-90"
	OrientationCounterCW90 SensorOrientation = "counter-clockwise-90"
	OrientationFlip180     SensorOrientation = "flip-180"
)

// TrackerConfig is used to create a body tracker.
type TrackerConfig struct {
	ProcessingMode    ProcessingMode    `yaml:"processing-mode"`
	SensorOrientation SensorOrientation `yaml:"sensor-orientation"`
	GPUDeviceID       int               `yaml:"gpu-device-id"`
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		ProcessingMode:    ProcessingCUDA,
		SensorOrientation: OrientationDefault,
	}
}

func (c TrackerConfig) Validate() error {
	switch c.ProcessingMode {
	case ProcessingGPU, ProcessingCPU, ProcessingCUDA:
	default:
		return fmt.Errorf("invalid processing mode: %q", string(c.ProcessingMode))
	}
	switch c.SensorOrientation {
	case OrientationDefault, OrientationClockwise90, OrientationCounterCW90, OrientationFlip180:
	default:
		return fmt.Errorf("invalid sensor orientation: %q", string(c.SensorOrientation))
	}
	return nil
}
