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

// Package worker runs the acquisition loop that turns sensor captures into
// published frames.
package worker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/TheCacophonyProject/body-tracker/depth"
	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/loglimiter"
	"github.com/TheCacophonyProject/body-tracker/sensor"
)

const minLogInterval = time.Minute

// FrameLogger is given every published frame. Close is called once when
// the worker stops.
type FrameLogger interface {
	LogFrame(*frame.Record) error
	Close() error
}

// Listener is told about state changes and produced frames. It is called
// on the acquisition goroutine, so it must return quickly. The record and
// depth image passed to FrameProduced must not be modified or kept after
// it returns.
type Listener interface {
	StateChanged(State)
	FrameProduced(rec *frame.Record, img *sensor.DepthImage)
}

// BaseListener can be embedded to implement only some of Listener.
type BaseListener struct{}

func (BaseListener) StateChanged(State)                              {}
func (BaseListener) FrameProduced(*frame.Record, *sensor.DepthImage) {}

type Option func(*Worker)

func WithLogger(l FrameLogger) Option {
	return func(w *Worker) {
		w.logger = l
	}
}

func WithListener(l Listener) Option {
	return func(w *Worker) {
		w.listeners = append(w.listeners, l)
	}
}

// Worker owns the sensor for the duration of Run and publishes tracked
// frames to a frame.Channel.
type Worker struct {
	open      sensor.OpenFunc
	ch        *frame.Channel
	conf      Config
	packer    *depth.Packer
	logger    FrameLogger
	listeners []Listener
	log       *loglimiter.LogLimiter

	state   atomic.Int32
	running atomic.Bool
	frames  atomic.Uint64

	mu     sync.Mutex
	serial string

	// Only used on the acquisition goroutine.
	skeleton  sensor.Skeleton
	firstTime time.Duration
	haveFirst bool
}

func New(open sensor.OpenFunc, ch *frame.Channel, conf Config, opts ...Option) *Worker {
	w := &Worker{
		open:   open,
		ch:     ch,
		conf:   conf,
		packer: depth.NewPacker(conf.MaxDepth),
		log:    loglimiter.New(minLogInterval),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) State() State {
	return State(w.state.Load())
}

// IsRunning reports whether a tracked frame has been received.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// Frames returns the number of frames published.
func (w *Worker) Frames() uint64 {
	return w.frames.Load()
}

// SerialNumber returns the serial number of the open device.
func (w *Worker) SerialNumber() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.serial
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	for _, l := range w.listeners {
		l.StateChanged(s)
	}
}

// Run opens the device and publishes frames until ctx is cancelled or an
// error occurs. It returns nil when stopped through ctx and a *FaultError
// otherwise. The tracker, device and frame logger are released, in that
// order, before Run returns. Run can only be called once.
func (w *Worker) Run(ctx context.Context) (err error) {
	if !w.state.CompareAndSwap(int32(Idle), int32(DeviceOpening)) {
		return errors.New("worker: Run called more than once")
	}
	w.setState(DeviceOpening)

	phase := DeviceOpening
	defer func() {
		if r := recover(); r != nil {
			err = &FaultError{State: phase, Err: errors.Errorf("panic: %v", r)}
		}
		err = w.finish(ctx, phase, err)
		w.setState(Stopped)
	}()
	if w.logger != nil {
		defer w.closeLogger()
	}

	device, err := w.open(w.conf.DeviceIndex)
	if err != nil {
		return &FaultError{State: phase, Err: errors.Wrapf(err, "opening device %d", w.conf.DeviceIndex)}
	}
	defer closeDevice(device)

	w.mu.Lock()
	w.serial = device.SerialNumber()
	w.mu.Unlock()
	log.Printf("opened depth sensor %d, serial number %s", w.conf.DeviceIndex, device.SerialNumber())

	if err := device.StartCameras(w.conf.Device); err != nil {
		return &FaultError{State: phase, Err: errors.Wrap(err, "starting cameras")}
	}
	cal, err := device.Calibration()
	if err != nil {
		return &FaultError{State: phase, Err: errors.Wrap(err, "reading calibration")}
	}
	tracker, err := device.NewTracker(cal, w.conf.Tracker)
	if err != nil {
		return &FaultError{State: phase, Err: errors.Wrap(err, "creating body tracker")}
	}
	defer closeTracker(tracker)
	defer w.setState(Stopping)

	phase = Streaming
	w.setState(Streaming)
	return w.stream(ctx, device, tracker, cal)
}

// finish logs a failure and decides what Run returns for it. Failures to
// open the device are always returned.
func (w *Worker) finish(ctx context.Context, phase State, err error) error {
	if err == nil {
		return nil
	}
	log.Print(err)
	if phase == Streaming && ctx.Err() != nil {
		log.Print("shutdown was requested, treating failure as shutdown")
		return nil
	}
	return err
}

func (w *Worker) stream(ctx context.Context, device sensor.Device, tracker sensor.Tracker, cal sensor.Calibration) error {
	timeout := w.conf.CaptureTimeout
	if timeout == 0 {
		timeout = sensor.Forever
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := w.step(device, tracker, cal, timeout); err != nil {
			return &FaultError{State: Streaming, Err: err}
		}
	}
}

// step runs one capture, enqueue and pop cycle.
func (w *Worker) step(device sensor.Device, tracker sensor.Tracker, cal sensor.Calibration, timeout time.Duration) error {
	capture, err := device.Capture(timeout)
	if errors.Is(err, sensor.ErrTimeout) {
		w.log.Print("timed out waiting for a capture")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "getting capture")
	}

	err = tracker.Enqueue(capture, sensor.Forever)
	capture.Release()
	if err != nil {
		return errors.Wrap(err, "queuing capture")
	}

	result, err := tracker.PopResult(0, false)
	if err != nil {
		return errors.Wrap(err, "popping tracker result")
	}
	if result == nil {
		return nil
	}
	defer result.Release()
	return w.produce(result, cal)
}

// produce converts a tracked frame into the channel's back record and
// publishes it. The logger is given the record after it is published, not
// before; the channel never hands that slot to the producer while it is
// the latest, so the logger still sees the frame unchanged.
func (w *Worker) produce(result sensor.TrackedFrame, cal sensor.Calibration) error {
	if !w.running.Swap(true) {
		log.Print("body tracking running")
	}

	img, err := result.DepthImage()
	if err != nil {
		return errors.Wrap(err, "getting depth image")
	}

	rec := w.ch.Begin()
	published := false
	defer func() {
		if !published {
			w.ch.Abort()
		}
	}()
	numBodies := result.NumBodies()
	clamped, err := rec.SetBodies(numBodies, func(i int, b *frame.Body) error {
		if err := result.Skeleton(i, &w.skeleton); err != nil {
			return errors.Wrapf(err, "getting skeleton %d", i)
		}
		b.CopyFrom(&w.skeleton, cal)
		return nil
	})
	if err != nil {
		return err
	}
	if clamped {
		w.log.Printf("%d bodies tracked, only keeping %d", numBodies, len(rec.Bodies))
	}

	rec.TimestampMs = w.timestampMs(img.DeviceTimestamp)

	size, err := w.packer.Pack(rec.Depth, img.Samples, img.Width, img.Height)
	if errors.Is(err, depth.ErrCapacityExceeded) {
		w.log.Printf("depth image %dx%d does not fit in %d bytes, frame dropped", img.Width, img.Height, len(rec.Depth))
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "packing depth image")
	}
	rec.DepthWidth = int32(img.Width)
	rec.DepthHeight = int32(img.Height)
	rec.DepthSize = int32(size)

	w.ch.Publish()
	published = true
	w.frames.Add(1)

	if w.logger != nil {
		if err := w.logger.LogFrame(rec); err != nil {
			log.Printf("body log: %v", err)
		}
	}
	for _, l := range w.listeners {
		l.FrameProduced(rec, img)
	}
	return nil
}

// timestampMs returns ts relative to the first frame received.
func (w *Worker) timestampMs(ts time.Duration) float32 {
	if !w.haveFirst {
		w.firstTime = ts
		w.haveFirst = true
	}
	return float32(float64(ts-w.firstTime) / float64(time.Millisecond))
}

func closeTracker(t sensor.Tracker) {
	if err := t.Close(); err != nil {
		log.Printf("error closing body tracker: %v", err)
		return
	}
	log.Print("body tracker closed")
}

func closeDevice(d sensor.Device) {
	if err := d.Close(); err != nil {
		log.Printf("error closing device: %v", err)
		return
	}
	log.Print("device closed")
}

func (w *Worker) closeLogger() {
	if err := w.logger.Close(); err != nil {
		log.Printf("error closing body log: %v", err)
	}
}
