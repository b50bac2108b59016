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
	"errors"

	config "github.com/TheCacophonyProject/go-config"
	"github.com/TheCacophonyProject/window"
)

type RecorderConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OutputDir      string `yaml:"output-dir"`
	MinSecs        int    `yaml:"min-secs"`
	MaxSecs        int    `yaml:"max-secs"`
	PreviewSecs    int    `yaml:"preview-secs"`
	MinDiskSpaceMB uint64 `yaml:"min-disk-space-mb"`
	// TriggerFrames is the number of consecutive frames with a body in
	// them needed to start a recording.
	TriggerFrames int `yaml:"trigger-frames"`

	// Window is loaded from the shared device config by LoadWindow.
	Window *window.Window `yaml:"-"`
}

func DefaultConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:        false,
		OutputDir:      "/var/spool/cptv",
		MinSecs:        5,
		MaxSecs:        60,
		PreviewSecs:    2,
		MinDiskSpaceMB: 200,
		TriggerFrames:  3,
	}
}

func (conf *RecorderConfig) Validate() error {
	if conf.MaxSecs < conf.MinSecs {
		return errors.New("max-secs should be larger than min-secs")
	}
	if conf.MinSecs <= 0 {
		return errors.New("min-secs should be positive")
	}
	if conf.PreviewSecs < 0 {
		return errors.New("preview-secs can't be negative")
	}
	if conf.TriggerFrames < 1 {
		return errors.New("trigger-frames should be at least 1")
	}
	if conf.Enabled && conf.OutputDir == "" {
		return errors.New("output-dir is required when recording is enabled")
	}
	return nil
}

// LoadWindow sets the recording window from the windows and location
// sections of the shared device config.
func (conf *RecorderConfig) LoadWindow(c *config.Config) error {
	windowLocationConfig := config.DefaultWindowLocation()
	if err := c.Unmarshal(config.LocationKey, &windowLocationConfig); err != nil {
		return err
	}
	windowsConfig := config.DefaultWindows()
	if err := c.Unmarshal(config.WindowsKey, &windowsConfig); err != nil {
		return err
	}

	w, err := window.New(
		windowsConfig.StartRecording,
		windowsConfig.StopRecording,
		float64(windowLocationConfig.Latitude),
		float64(windowLocationConfig.Longitude))
	if err != nil {
		return err
	}
	conf.Window = w
	return nil
}
