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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	config "github.com/TheCacophonyProject/go-config"
	cptv "github.com/TheCacophonyProject/go-cptv"
	"github.com/TheCacophonyProject/go-cptv/cptvframe"
)

const (
	cptvTempExt = "cptv.temp"
	Brand       = "microsoft"
	Model       = "azure-kinect"
)

// NewHeader builds the CPTV header from the shared device config. The
// recorder settings are stored in the header's motion config field.
func NewHeader(c *config.Config, conf *RecorderConfig, camera Camera) (cptv.Header, error) {
	device := config.Device{}
	if err := c.Unmarshal(config.DeviceKey, &device); err != nil {
		return cptv.Header{}, err
	}
	location := config.DefaultWindowLocation()
	if err := c.Unmarshal(config.LocationKey, &location); err != nil {
		return cptv.Header{}, err
	}
	confYAML, err := yaml.Marshal(conf)
	if err != nil {
		return cptv.Header{}, errors.Wrap(err, "failed to convert recorder config to YAML")
	}

	header := cptv.Header{
		DeviceName:   device.Name,
		PreviewSecs:  conf.PreviewSecs,
		MotionConfig: string(confYAML),
		Latitude:     location.Latitude,
		Longitude:    location.Longitude,
		LocTimestamp: location.Timestamp,
		Altitude:     location.Altitude,
		Accuracy:     location.Accuracy,
		FPS:          camera.FPS(),
		Brand:        Brand,
		Model:        Model,
	}
	if device.ID > 0 {
		header.DeviceID = device.ID
	}
	return header, nil
}

func NewCPTVFileRecorder(conf *RecorderConfig, camera Camera, header cptv.Header) *CPTVFileRecorder {
	return &CPTVFileRecorder{
		outputDir:    conf.OutputDir,
		header:       header,
		minDiskSpace: conf.MinDiskSpaceMB,
		camera:       camera,
	}
}

type CPTVFileRecorder struct {
	outputDir    string
	header       cptv.Header
	minDiskSpace uint64
	camera       Camera
	writer       *cptv.FileWriter
}

func (fw *CPTVFileRecorder) CheckCanRecord() error {
	enoughSpace, err := checkDiskSpace(fw.minDiskSpace, fw.outputDir)
	if err != nil {
		return fmt.Errorf("problem with checking disk space: %v", err)
	} else if !enoughSpace {
		return errors.New("bodies detected but not enough free disk space to start recording")
	}
	return nil
}

func (fw *CPTVFileRecorder) StartRecording() error {
	if fw.writer != nil {
		return errors.New("already recording")
	}
	filename := filepath.Join(fw.outputDir, newRecordingTempName(time.Now()))
	log.Printf("recording started: %s", filename)

	writer, err := cptv.NewFileWriter(filename, fw.camera)
	if err != nil {
		return err
	}

	if err = writer.WriteHeader(fw.header); err != nil {
		writer.Close()
		os.Remove(filename)
		return err
	}

	fw.writer = writer
	return nil
}

func (fw *CPTVFileRecorder) StopRecording() error {
	if fw.writer == nil {
		return nil
	}
	fw.writer.Close()
	finalName, err := renameTempRecording(fw.writer.Name())
	fw.writer = nil
	if err != nil {
		return err
	}
	log.Printf("recording stopped: %s", finalName)
	return nil
}

// Stop abandons any recording in progress.
func (fw *CPTVFileRecorder) Stop() {
	if fw.writer != nil {
		fw.writer.Close()
		os.Remove(fw.writer.Name())
		fw.writer = nil
	}
}

func (fw *CPTVFileRecorder) WriteFrame(frame *cptvframe.Frame) error {
	if fw.writer == nil {
		return errors.New("not recording")
	}
	return fw.writer.WriteFrame(frame)
}

func newRecordingTempName(now time.Time) string {
	return now.Format("20060102.150405.000." + cptvTempExt)
}

func renameTempRecording(tempName string) (string, error) {
	finalName := recordingFinalName(tempName)
	if err := os.Rename(tempName, finalName); err != nil {
		return "", err
	}
	return finalName, nil
}

var reTempName = regexp.MustCompile(`(.+)\.temp$`)

func recordingFinalName(filename string) string {
	return reTempName.ReplaceAllString(filename, `$1`)
}

// DeleteTempFiles removes recordings left unfinished by an earlier run.
func DeleteTempFiles(directory string) error {
	matches, _ := filepath.Glob(filepath.Join(directory, "*."+cptvTempExt))
	for _, filename := range matches {
		if err := os.Remove(filename); err != nil {
			return err
		}
	}
	return nil
}

func checkDiskSpace(mb uint64, dir string) (bool, error) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		return false, err
	}
	return fs.Bavail*uint64(fs.Bsize)/1024/1024 >= mb, nil
}
