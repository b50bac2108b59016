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
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/go-cptv/cptvframe"

	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/loglimiter"
	"github.com/TheCacophonyProject/body-tracker/sensor"
	"github.com/TheCacophonyProject/body-tracker/worker"
)

const minLogInterval = time.Minute

type RecordingListener interface {
	RecordingStarted()
	RecordingEnded()
}

// BodyProcessor records the raw depth stream while bodies are being
// tracked. It is a worker.Listener and runs on the worker goroutine.
type BodyProcessor struct {
	worker.BaseListener

	recorder      Recorder
	listener      RecordingListener
	camera        Camera
	frameLoop     *FrameLoop
	activeWindow  func() bool
	minFrames     int
	maxFrames     int
	triggerFrames int
	triggered     int
	framesWritten int
	writeUntil    int
	frameCount    int
	isRecording   bool
	recording     atomic.Bool
	log           *loglimiter.LogLimiter
}

func NewBodyProcessor(conf *RecorderConfig, camera Camera, rec Recorder, listener RecordingListener) *BodyProcessor {
	fps := camera.FPS()
	bp := &BodyProcessor{
		recorder:      rec,
		listener:      listener,
		camera:        camera,
		frameLoop:     NewFrameLoop(conf.PreviewSecs*fps+conf.TriggerFrames, camera),
		activeWindow:  func() bool { return true },
		minFrames:     conf.MinSecs * fps,
		maxFrames:     conf.MaxSecs * fps,
		triggerFrames: conf.TriggerFrames,
		log:           loglimiter.New(minLogInterval),
	}
	if conf.Window != nil {
		bp.activeWindow = conf.Window.Active
	}
	return bp
}

// IsRecording may be called from any goroutine.
func (bp *BodyProcessor) IsRecording() bool {
	return bp.recording.Load()
}

func (bp *BodyProcessor) StateChanged(s worker.State) {
	if s == worker.Stopping && bp.isRecording {
		if err := bp.stopRecording(); err != nil {
			bp.log.Printf("failed to stop recording CPTV file: %v", err)
		}
	}
}

func (bp *BodyProcessor) FrameProduced(rec *frame.Record, img *sensor.DepthImage) {
	f := bp.frameLoop.Current()
	if err := bp.toFrame(img, f); err != nil {
		bp.log.Printf("depth frame not recorded: %v", err)
		return
	}
	bp.process(f, rec.BodyCount > 0)
}

// toFrame copies the depth samples into a CPTV frame.
func (bp *BodyProcessor) toFrame(img *sensor.DepthImage, f *cptvframe.Frame) error {
	if img.Width != bp.camera.ResX() || img.Height != bp.camera.ResY() {
		return errors.New("depth image size does not match the camera")
	}
	if len(img.Samples) < img.Width*img.Height {
		return errors.New("depth image is short")
	}
	for y := 0; y < img.Height; y++ {
		copy(f.Pix[y], img.Samples[y*img.Width:(y+1)*img.Width])
	}
	bp.frameCount++
	f.Status.FrameCount = bp.frameCount
	f.Status.TimeOn = img.DeviceTimestamp
	return nil
}

func (bp *BodyProcessor) process(f *cptvframe.Frame, bodies bool) {
	if bodies {
		bp.triggered++

		if bp.isRecording {
			// Keep recording while people are still around.
			bp.writeUntil = min(bp.framesWritten+bp.minFrames, bp.maxFrames)
		} else if bp.triggered < bp.triggerFrames {
			// Wait for n consecutive frames with bodies in them.
		} else if err := bp.canStartWriting(); err != nil {
			bp.log.Printf("recording not started: %v", err)
		} else if err := bp.startRecording(); err != nil {
			bp.log.Printf("can't start recording file: %v", err)
		} else {
			bp.writeUntil = bp.minFrames
		}
	} else {
		bp.triggered = 0
	}

	if bp.isRecording {
		if err := bp.recorder.WriteFrame(f); err != nil {
			bp.log.Printf("failed to write to CPTV file: %v", err)
		}
		bp.framesWritten++
	}

	bp.frameLoop.Move()

	if bp.isRecording && bp.framesWritten >= bp.writeUntil {
		if err := bp.stopRecording(); err != nil {
			bp.log.Printf("failed to stop recording CPTV file: %v", err)
		}
	}
}

func (bp *BodyProcessor) canStartWriting() error {
	if !bp.activeWindow() {
		return errors.New("bodies detected but outside of recording window")
	}
	return bp.recorder.CheckCanRecord()
}

func (bp *BodyProcessor) startRecording() error {
	if err := bp.recorder.StartRecording(); err != nil {
		return err
	}
	bp.isRecording = true
	bp.recording.Store(true)
	if bp.listener != nil {
		bp.listener.RecordingStarted()
	}
	return bp.recordPreTriggerFrames()
}

// recordPreTriggerFrames writes the frames seen before the recording
// started. The current frame is written by process.
func (bp *BodyProcessor) recordPreTriggerFrames() error {
	frames := bp.frameLoop.History()
	for _, f := range frames[:len(frames)-1] {
		if err := bp.recorder.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

func (bp *BodyProcessor) stopRecording() error {
	if bp.listener != nil {
		bp.listener.RecordingEnded()
	}
	err := bp.recorder.StopRecording()

	bp.framesWritten = 0
	bp.writeUntil = 0
	bp.isRecording = false
	bp.recording.Store(false)
	bp.triggered = 0
	// A recording started straight away won't repeat frames already written.
	bp.frameLoop.SetAsOldest()
	return err
}
