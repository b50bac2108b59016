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

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cptv "github.com/TheCacophonyProject/go-cptv"
	"github.com/TheCacophonyProject/go-cptv/cptvframe"
)

func TestRecordingNames(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 890000000, time.UTC)
	temp := newRecordingTempName(now)
	assert.Equal(t, "20250304.050607.890.cptv.temp", temp)
	assert.Equal(t, "20250304.050607.890.cptv", recordingFinalName(temp))
	assert.Equal(t, "/a/b.cptv", recordingFinalName("/a/b.cptv"))
}

func TestDeleteTempFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.cptv.temp", "b.cptv.temp", "c.cptv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, DeleteTempFiles(dir))

	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "c.cptv")}, matches)
}

func TestCheckCanRecord(t *testing.T) {
	conf := DefaultConfig()
	conf.OutputDir = t.TempDir()

	conf.MinDiskSpaceMB = 0
	assert.NoError(t, NewCPTVFileRecorder(&conf, testCamera, cptv.Header{}).CheckCanRecord())

	conf.MinDiskSpaceMB = math.MaxUint64 / 1024 / 1024
	assert.Error(t, NewCPTVFileRecorder(&conf, testCamera, cptv.Header{}).CheckCanRecord())

	conf.OutputDir = filepath.Join(conf.OutputDir, "missing")
	assert.Error(t, NewCPTVFileRecorder(&conf, testCamera, cptv.Header{}).CheckCanRecord())
}

func TestCPTVFileRecorder(t *testing.T) {
	conf := DefaultConfig()
	conf.OutputDir = t.TempDir()
	header := cptv.Header{DeviceName: "test", FPS: testCamera.FPS(), Brand: Brand, Model: Model}
	rec := NewCPTVFileRecorder(&conf, testCamera, header)

	assert.Error(t, rec.WriteFrame(cptvframe.NewFrame(testCamera)))
	assert.NoError(t, rec.StopRecording())

	require.NoError(t, rec.StartRecording())
	assert.Error(t, rec.StartRecording())
	temps, _ := filepath.Glob(filepath.Join(conf.OutputDir, "*.cptv.temp"))
	assert.Len(t, temps, 1)

	f := cptvframe.NewFrame(testCamera)
	for i := 0; i < 5; i++ {
		f.Pix[1][2] = uint16(1000 + i)
		f.Status.FrameCount = i + 1
		require.NoError(t, rec.WriteFrame(f))
	}
	require.NoError(t, rec.StopRecording())

	temps, _ = filepath.Glob(filepath.Join(conf.OutputDir, "*.cptv.temp"))
	assert.Empty(t, temps)
	finals, _ := filepath.Glob(filepath.Join(conf.OutputDir, "*.cptv"))
	require.Len(t, finals, 1)
	info, err := os.Stat(finals[0])
	require.NoError(t, err)
	assert.True(t, info.Size() > 0)
}

func TestCPTVFileRecorderStopRemovesFile(t *testing.T) {
	conf := DefaultConfig()
	conf.OutputDir = t.TempDir()
	rec := NewCPTVFileRecorder(&conf, testCamera, cptv.Header{})

	require.NoError(t, rec.StartRecording())
	rec.Stop()
	matches, _ := filepath.Glob(filepath.Join(conf.OutputDir, "*"))
	assert.Empty(t, matches)
}
