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

package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/TheCacophonyProject/body-tracker/bodylog"
	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/headers"
	"github.com/TheCacophonyProject/body-tracker/sensor"
)

func writeTestLog(t *testing.T, frames int) string {
	w, err := bodylog.Create(t.TempDir(), bodylog.Options{
		Compression: bodylog.LZ4,
		Header:      headers.HeaderInfo{DeviceName: "hallway", Serial: "000042", FPS: 30},
	})
	require.NoError(t, err)

	rec := frame.NewRecord(frame.Capacity{DepthBytes: 4 * 2 * 3, Bodies: 1, Joints: 2})
	rec.DepthWidth = 4
	rec.DepthHeight = 2
	rec.DepthSize = 4 * 2 * 3
	for i := 0; i < frames; i++ {
		rec.TimestampMs = float32(i) * 33.3
		for j := range rec.ValidDepth() {
			rec.Depth[j] = byte(i * 10)
		}
		rec.BodyCount = uint64(i % 2)
		b := &rec.Bodies[0]
		b.ID = 7
		b.JointCount = 2
		b.Joints[0].Position = r3.Vec{X: 10, Y: 20, Z: 1500}
		b.Joints[0].Confidence = sensor.ConfidenceMedium
		require.NoError(t, w.LogFrame(rec))
	}
	require.NoError(t, w.Close())
	return w.Name()
}

func TestDump(t *testing.T) {
	name := writeTestLog(t, 3)
	var out bytes.Buffer
	require.NoError(t, dump(&out, name, true))

	s := out.String()
	assert.Contains(t, s, "device: hallway (0)\n")
	assert.Contains(t, s, "serial: 000042\n")
	assert.Contains(t, s, "compression: lz4\n")
	assert.Contains(t, s, "frame 0: 0.0ms 4x2 bodies=0\n")
	assert.Contains(t, s, "frame 1: 33.3ms 4x2 bodies=1\n  body 7: 2 joints\n")
	assert.Contains(t, s, "(10, 20, 1500) medium\n")
	assert.Contains(t, s, "3 frames\n")
}

func TestDumpWithoutJoints(t *testing.T) {
	name := writeTestLog(t, 2)
	var out bytes.Buffer
	require.NoError(t, dump(&out, name, false))
	assert.NotContains(t, out.String(), "medium")
}

func TestExport(t *testing.T) {
	name := writeTestLog(t, 3)
	outName := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, export(name, 2, outName))

	f, err := os.Open(outName)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(20), r>>8)
}

func TestExportPastEnd(t *testing.T) {
	name := writeTestLog(t, 2)
	err := export(name, 5, filepath.Join(t.TempDir(), "frame.png"))
	assert.EqualError(t, err, "log only has 2 frames")
	assert.Error(t, export(name, -1, "unused.png"))
}
