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
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/TheCacophonyProject/go-config"
	arg "github.com/alexflint/go-arg"
	"periph.io/x/periph/host"

	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/headers"
	"github.com/TheCacophonyProject/body-tracker/preview"
	"github.com/TheCacophonyProject/body-tracker/recorder"
	"github.com/TheCacophonyProject/body-tracker/sensor"
	"github.com/TheCacophonyProject/body-tracker/sensor/sim"
	"github.com/TheCacophonyProject/body-tracker/throttle"
	"github.com/TheCacophonyProject/body-tracker/worker"
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	ConfigDir  string `arg:"--config-dir" help:"path to the shared device configuration directory"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	Simulate   bool   `arg:"--simulate" help:"use a simulated sensor"`
	SimBodies  int    `arg:"--sim-bodies" help:"number of people in the simulated scene"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	args := Args{
		ConfigFile: "/etc/cacophony/body-tracker.yaml",
		ConfigDir:  config.DefaultConfigDir,
		SimBodies:  sim.DefaultConfig().Bodies,
	}
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()

	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("running version: %s", version)
	conf, deviceConf, err := ParseConfigFiles(args.ConfigFile, args.ConfigDir)
	if err != nil {
		return err
	}
	logConfig(conf)

	open, err := openFunc(args)
	if err != nil {
		return err
	}

	if conf.PowerPin != "" || conf.LEDs.Running != "" || conf.LEDs.Recording != "" {
		log.Println("host initialisation")
		if _, err := host.Init(); err != nil {
			return err
		}
	}
	if err := cycleSensorPower(conf.PowerPin); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := frame.NewChannel(conf.Capacity)
	status := &daemonStatus{}
	statusLEDs := newLEDs(conf.LEDs)
	snapshots := newSnapshotter(conf.SnapshotDir, ch, conf.Capacity)
	if err := os.MkdirAll(conf.SnapshotDir, 0755); err != nil {
		return err
	}
	deleteSnapshots(conf.SnapshotDir)

	opts := []worker.Option{
		worker.WithListener(newWatchdog(int(conf.Camera.FPS))),
		worker.WithListener(statusLEDs),
		worker.WithListener(snapshots),
	}

	if conf.Recorder.Enabled {
		processor, cleanup, err := newRecording(conf, deviceConf, statusLEDs)
		if err != nil {
			return err
		}
		defer cleanup()
		status.recorder = processor
		opts = append(opts, worker.WithListener(processor))
	}

	// The worker is needed for the serial number, so the log is wired up
	// after it is created.
	var sessLog *sessionLog
	var w *worker.Worker
	if conf.Log.Enabled {
		sessLog = newSessionLog(conf.Log, logHeader(conf), func() string { return w.SerialNumber() })
		status.log = sessLog
		opts = append(opts, worker.WithLogger(sessLog))
	}
	w = worker.New(open, ch, conf.Worker(), opts...)
	status.worker = w

	if conf.Preview.Enabled {
		pv, err := preview.NewServer(ch, conf.Capacity, conf.Preview)
		if err != nil {
			return err
		}
		status.preview = pv
		go func() {
			if err := pv.ListenAndServe(ctx); err != nil {
				log.Printf("preview feed stopped: %v", err)
			}
		}()
	}

	log.Println("starting d-bus service")
	if err := startService(snapshots, status); err != nil {
		return err
	}

	log.Println("starting body tracking")
	if err := w.Run(ctx); err != nil {
		return err
	}
	log.Println("body tracking stopped")
	return nil
}

func openFunc(args Args) (sensor.OpenFunc, error) {
	if args.Simulate {
		log.Printf("using simulated sensor with %d people", args.SimBodies)
		simConf := sim.DefaultConfig()
		simConf.Bodies = args.SimBodies
		return sim.Open(simConf), nil
	}
	return hardwareDevice()
}

// newRecording sets up CPTV recording of the raw depth stream.
func newRecording(conf *Config, deviceConf *config.Config, listener recorder.RecordingListener) (*recorder.BodyProcessor, func(), error) {
	camera, err := recorder.NewCamera(conf.Camera)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(conf.Recorder.OutputDir, 0755); err != nil {
		return nil, nil, err
	}
	log.Println("deleting temp files")
	if err := recorder.DeleteTempFiles(conf.Recorder.OutputDir); err != nil {
		return nil, nil, err
	}
	header, err := recorder.NewHeader(deviceConf, &conf.Recorder, camera)
	if err != nil {
		return nil, nil, err
	}

	cptvRecorder := recorder.NewCPTVFileRecorder(&conf.Recorder, camera, header)
	var rec recorder.Recorder = cptvRecorder
	if conf.Throttler.Activate {
		var events throttle.ThrottledEventListener
		if reporter, err := throttle.NewEventReporter(); err != nil {
			log.Printf("throttle events will not be reported: %v", err)
		} else {
			events = reporter
		}
		minRecordingLength := conf.Recorder.MinSecs + conf.Recorder.PreviewSecs
		rec = throttle.NewThrottledRecorder(cptvRecorder, &conf.Throttler, minRecordingLength, events, camera.FPS())
	}
	return recorder.NewBodyProcessor(&conf.Recorder, camera, rec, listener), cptvRecorder.Stop, nil
}

func logHeader(conf *Config) headers.HeaderInfo {
	return headers.HeaderInfo{
		DeviceName:    conf.DeviceName,
		DeviceID:      conf.DeviceID,
		FPS:           int(conf.Camera.FPS),
		DepthMode:     string(conf.Camera.DepthMode),
		MaxDepth:      int(conf.MaxDepth),
		JointsPerBody: sensor.JointCount,
	}
}

func logConfig(conf *Config) {
	log.Printf("device name: %s", conf.DeviceName)
	log.Printf("device index: %d", conf.DeviceIndex)
	log.Printf("camera: %+v", conf.Camera)
	log.Printf("tracker: %+v", conf.Tracker)
	log.Printf("max depth: %dmm", conf.MaxDepth)
	log.Printf("capacity: %+v", conf.Capacity)
	if conf.Log.Enabled {
		log.Printf("body log: %s (%s)", conf.Log.Dir, conf.Log.Compression)
	}
	if conf.Recorder.Enabled {
		log.Printf("output dir: %s", conf.Recorder.OutputDir)
		log.Printf("recording limits: %ds to %ds", conf.Recorder.MinSecs, conf.Recorder.MaxSecs)
		log.Printf("preview seconds: %d", conf.Recorder.PreviewSecs)
		log.Printf("minimum disk space: %dMB", conf.Recorder.MinDiskSpaceMB)
		log.Printf("throttler: %+v", conf.Throttler)
	}
	if conf.Preview.Enabled {
		log.Printf("preview: %s at %d fps", conf.Preview.Address, conf.Preview.FPS)
	}
}
