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

package k4a

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/body-tracker/sensor"
)

func TestDeviceModes(t *testing.T) {
	m, err := toDeviceModes(sensor.DefaultDeviceConfig())
	require.NoError(t, err)
	assert.Equal(t, deviceModes{
		depth: depthModeNFOVUnbinned,
		color: colorResolutionOff,
		fps:   fps30,
		sync:  syncStandalone,
	}, m)

	c := sensor.DefaultDeviceConfig()
	c.DepthMode = sensor.DepthWFOV2x2Binned
	c.FPS = sensor.FPS15
	c.SyncMode = sensor.SyncSubordinate
	c.ColorResolution = sensor.Color720P
	m, err = toDeviceModes(c)
	require.NoError(t, err)
	assert.Equal(t, deviceModes{
		depth: depthModeWFOV2x2Binned,
		color: colorResolution720P,
		fps:   fps15,
		sync:  syncSubordinate,
	}, m)
}

func TestDeviceModesInvalid(t *testing.T) {
	c := sensor.DefaultDeviceConfig()
	c.ColorResolution = "4k"
	_, err := toDeviceModes(c)
	assert.Error(t, err)

	c = sensor.DefaultDeviceConfig()
	c.FPS = 60
	_, err = toDeviceModes(c)
	assert.Error(t, err)
}

func TestTrackerModes(t *testing.T) {
	m, err := toTrackerModes(sensor.DefaultTrackerConfig())
	require.NoError(t, err)
	assert.Equal(t, trackerModes{orientation: orientationDefault, processing: processingCUDA}, m)

	m, err = toTrackerModes(sensor.TrackerConfig{
		ProcessingMode:    sensor.ProcessingCPU,
		SensorOrientation: sensor.OrientationFlip180,
		GPUDeviceID:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, trackerModes{orientation: orientationFlip180, processing: processingCPU, gpuDeviceID: 2}, m)

	_, err = toTrackerModes(sensor.TrackerConfig{ProcessingMode: "fpga", SensorOrientation: sensor.OrientationDefault})
	assert.Error(t, err)
}

func TestTimeoutMs(t *testing.T) {
	assert.Equal(t, int32(-1), timeoutMs(sensor.Forever))
	assert.Equal(t, int32(0), timeoutMs(0))
	assert.Equal(t, int32(1500), timeoutMs(1500*time.Millisecond))
	assert.Equal(t, int32(2147483647), timeoutMs(1000*time.Hour))
}
