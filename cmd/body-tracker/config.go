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
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	config "github.com/TheCacophonyProject/go-config"
	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/body-tracker/bodylog"
	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/preview"
	"github.com/TheCacophonyProject/body-tracker/recorder"
	"github.com/TheCacophonyProject/body-tracker/sensor"
	"github.com/TheCacophonyProject/body-tracker/throttle"
	"github.com/TheCacophonyProject/body-tracker/worker"
)

type Config struct {
	DeviceName     string                   `yaml:"-"`
	DeviceID       int                      `yaml:"-"`
	DeviceIndex    int                      `yaml:"device-index"`
	MaxDepth       uint16                   `yaml:"max-depth"`
	CaptureTimeout time.Duration            `yaml:"capture-timeout"`
	SnapshotDir    string                   `yaml:"snapshot-dir"`
	PowerPin       string                   `yaml:"power-pin"`
	Capacity       frame.Capacity           `yaml:"capacity"`
	Camera         sensor.DeviceConfig      `yaml:"camera"`
	Tracker        sensor.TrackerConfig     `yaml:"tracker"`
	Log            LogConfig                `yaml:"log"`
	Recorder       recorder.RecorderConfig  `yaml:"recorder"`
	Throttler      throttle.ThrottlerConfig `yaml:"throttler"`
	Preview        preview.Config           `yaml:"preview"`
	LEDs           LEDsConfig               `yaml:"leds"`
}

type LogConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Dir         string              `yaml:"dir"`
	Compression bodylog.Compression `yaml:"compression"`
}

type LEDsConfig struct {
	Running   string `yaml:"running"`
	Recording string `yaml:"recording"`
}

func defaultConfig() Config {
	w := worker.DefaultConfig()
	return Config{
		DeviceIndex:    w.DeviceIndex,
		MaxDepth:       w.MaxDepth,
		CaptureTimeout: w.CaptureTimeout,
		SnapshotDir:    "/var/spool/body-tracker",
		Capacity:       frame.DefaultCapacity(),
		Camera:         w.Device,
		Tracker:        w.Tracker,
		Log: LogConfig{
			Enabled:     false,
			Dir:         "/var/spool/body-tracker/logs",
			Compression: bodylog.Zstd,
		},
		Recorder:  recorder.DefaultConfig(),
		Throttler: throttle.DefaultThrottlerConfig(),
		Preview:   preview.DefaultConfig(),
	}
}

func (conf *Config) Validate() error {
	if err := conf.Worker().Validate(); err != nil {
		return err
	}
	if err := conf.Capacity.Validate(); err != nil {
		return err
	}
	w, h, err := conf.Camera.DepthMode.Resolution()
	if err != nil {
		return err
	}
	if w*h*3 > conf.Capacity.DepthBytes {
		return fmt.Errorf("capacity depth-bytes %d is too small for %dx%d depth images", conf.Capacity.DepthBytes, w, h)
	}
	if conf.Log.Enabled && conf.Log.Dir == "" {
		return errors.New("log dir is required when logging is enabled")
	}
	if err := conf.Log.Compression.Validate(); err != nil {
		return err
	}
	if err := conf.Recorder.Validate(); err != nil {
		return err
	}
	if err := conf.Throttler.Validate(); err != nil {
		return err
	}
	return conf.Preview.Validate()
}

// Worker returns the acquisition settings.
func (conf *Config) Worker() worker.Config {
	return worker.Config{
		DeviceIndex:    conf.DeviceIndex,
		Device:         conf.Camera,
		Tracker:        conf.Tracker,
		MaxDepth:       conf.MaxDepth,
		CaptureTimeout: conf.CaptureTimeout,
	}
}

// ParseConfigFiles reads the daemon configuration and the shared device
// configuration. The device configuration is returned as well since CPTV
// headers are built from it.
func ParseConfigFiles(filename, configDir string) (*Config, *config.Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, nil, err
	}
	conf, err := ParseConfig(buf)
	if err != nil {
		return nil, nil, err
	}

	deviceConf, err := config.New(configDir)
	if err != nil {
		return nil, nil, err
	}
	device := config.Device{}
	if err := deviceConf.Unmarshal(config.DeviceKey, &device); err != nil {
		return nil, nil, err
	}
	conf.DeviceName = device.Name
	conf.DeviceID = device.ID

	if err := conf.Recorder.LoadWindow(deviceConf); err != nil {
		return nil, nil, err
	}
	return conf, deviceConf, nil
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig()
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
