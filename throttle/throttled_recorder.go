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

// Package throttle stops recordings being made too often, which happens
// when someone stays in front of the sensor for a long time.
package throttle

import (
	"log"
	"time"

	"github.com/juju/ratelimit"

	"github.com/TheCacophonyProject/go-cptv/cptvframe"

	"github.com/TheCacophonyProject/body-tracker/recorder"
)

func NewThrottledRecorder(
	baseRecorder recorder.Recorder,
	conf *ThrottlerConfig,
	minSeconds int,
	listener ThrottledEventListener,
	fps int,
) *ThrottledRecorder {
	return NewThrottledRecorderWithClock(baseRecorder, conf, minSeconds, listener, new(realClock), fps)
}

func NewThrottledRecorderWithClock(
	baseRecorder recorder.Recorder,
	conf *ThrottlerConfig,
	minSeconds int,
	listener ThrottledEventListener,
	clock ratelimit.Clock,
	fps int,
) *ThrottledRecorder {
	// The bucket holds frames, not seconds.
	bucketFrames := int64(conf.BucketSize.Seconds()) * int64(fps)
	minFrames := int64(minSeconds * fps)
	refillRate := float64(minFrames) / conf.MinRefill.Seconds()

	if minFrames > bucketFrames {
		log.Println("minimum recording length is greater than throttle bucket - recording will not be possible!")
	}

	if listener == nil {
		listener = new(nullListener)
	}

	return &ThrottledRecorder{
		recorder:           baseRecorder,
		listener:           listener,
		bucket:             ratelimit.NewBucketWithRateAndClock(refillRate, bucketFrames, clock),
		minRecordingLength: minFrames,
	}
}

// ThrottledRecorder wraps a recorder so that recording stops once too
// many frames have been recorded recently. The frames would be much the
// same as the ones just recorded.
type ThrottledRecorder struct {
	recorder           recorder.Recorder
	listener           ThrottledEventListener
	bucket             *ratelimit.Bucket
	recording          bool
	minRecordingLength int64
}

type ThrottledEventListener interface {
	WhenThrottled()
}

type nullListener struct{}

func (*nullListener) WhenThrottled() {}

func (throttler *ThrottledRecorder) CheckCanRecord() error {
	return throttler.recorder.CheckCanRecord()
}

func (throttler *ThrottledRecorder) StartRecording() error {
	if err := throttler.maybeStartRecording(); err != nil {
		return err
	}
	if !throttler.recording {
		log.Print("recording not started due to throttling")
		throttler.listener.WhenThrottled()
	}
	return nil
}

func (throttler *ThrottledRecorder) StopRecording() error {
	if throttler.recording {
		throttler.recording = false
		return throttler.recorder.StopRecording()
	}
	return nil
}

// WriteFrame passes the frame on while there are frames left in the
// bucket. A recording stopped by throttling is started again once the
// bucket has refilled enough for a minimum length recording.
func (throttler *ThrottledRecorder) WriteFrame(frame *cptvframe.Frame) error {
	if !throttler.recording {
		if err := throttler.maybeStartRecording(); err != nil {
			return err
		}
		if !throttler.recording {
			return nil
		}
	}

	if throttler.bucket.TakeAvailable(1) > 0 {
		return throttler.recorder.WriteFrame(frame)
	}

	log.Print("recording throttled")
	throttler.listener.WhenThrottled()
	return throttler.StopRecording()
}

func (throttler *ThrottledRecorder) maybeStartRecording() error {
	if throttler.bucket.Available() >= throttler.minRecordingLength {
		if err := throttler.recorder.StartRecording(); err != nil {
			return err
		}
		throttler.recording = true
	}
	return nil
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
