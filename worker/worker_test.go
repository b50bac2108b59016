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

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/sensor"
)

type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, s)
}

func (e *events) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

func (e *events) count(s string) int {
	n := 0
	for _, ev := range e.get() {
		if ev == s {
			n++
		}
	}
	return n
}

type mockCalibration struct{}

func (mockCalibration) Project(p r3.Vec) (r2.Vec, bool) {
	return r2.Vec{X: p.X, Y: p.Y}, true
}

type mockCapture struct {
	ev *events
}

func (c *mockCapture) Release() {
	c.ev.add("capture released")
}

type mockFrame struct {
	ev       *events
	bodies   int
	img      *sensor.DepthImage
	skeleton func(i int) error
	imgErr   error
}

func (f *mockFrame) NumBodies() int {
	return f.bodies
}

func (f *mockFrame) Skeleton(i int, s *sensor.Skeleton) error {
	if f.skeleton != nil {
		if err := f.skeleton(i); err != nil {
			return err
		}
	}
	s.ID = uint32(i + 1)
	for j := range s.Joints {
		s.Joints[j].Position = r3.Vec{X: float64(i), Y: float64(j), Z: 1000}
		s.Joints[j].Confidence = sensor.ConfidenceHigh
	}
	return nil
}

func (f *mockFrame) DepthImage() (*sensor.DepthImage, error) {
	return f.img, f.imgErr
}

func (f *mockFrame) Release() {
	f.ev.add("frame released")
}

type mockTracker struct {
	ev   *events
	pops int
	// pop returns the result for the nth call of PopResult, starting at 0.
	pop        func(n int) (sensor.TrackedFrame, error)
	enqueueErr error
}

func (t *mockTracker) Enqueue(c sensor.Capture, timeout time.Duration) error {
	t.ev.add("enqueue")
	return t.enqueueErr
}

func (t *mockTracker) PopResult(timeout time.Duration, errorOnTimeout bool) (sensor.TrackedFrame, error) {
	if timeout != 0 || errorOnTimeout {
		panic("PopResult should not wait")
	}
	n := t.pops
	t.pops++
	return t.pop(n)
}

func (t *mockTracker) Close() error {
	t.ev.add("tracker closed")
	return nil
}

type mockDevice struct {
	ev          *events
	tracker     *mockTracker
	started     sensor.DeviceConfig
	trackerConf sensor.TrackerConfig
	startErr    error
	trackerErr  error
	captures    int
	capture     func(n int) error
}

func (d *mockDevice) StartCameras(c sensor.DeviceConfig) error {
	d.started = c
	d.ev.add("cameras started")
	return d.startErr
}

func (d *mockDevice) Calibration() (sensor.Calibration, error) {
	return mockCalibration{}, nil
}

func (d *mockDevice) NewTracker(cal sensor.Calibration, c sensor.TrackerConfig) (sensor.Tracker, error) {
	d.trackerConf = c
	if d.trackerErr != nil {
		return nil, d.trackerErr
	}
	return d.tracker, nil
}

func (d *mockDevice) Capture(timeout time.Duration) (sensor.Capture, error) {
	n := d.captures
	d.captures++
	if d.capture != nil {
		if err := d.capture(n); err != nil {
			return nil, err
		}
	}
	return &mockCapture{ev: d.ev}, nil
}

func (d *mockDevice) SerialNumber() string {
	return "000123"
}

func (d *mockDevice) Close() error {
	d.ev.add("device closed")
	return nil
}

type mockLogger struct {
	ev         *events
	timestamps []float32
	bodyCounts []uint64
	err        error
}

func (l *mockLogger) LogFrame(r *frame.Record) error {
	l.timestamps = append(l.timestamps, r.TimestampMs)
	l.bodyCounts = append(l.bodyCounts, r.BodyCount)
	return l.err
}

func (l *mockLogger) Close() error {
	l.ev.add("logger closed")
	return nil
}

// stopAfter cancels the context once n frames have been produced.
type stopAfter struct {
	BaseListener
	n      int
	cancel context.CancelFunc
	frames int
	states []State
}

func (s *stopAfter) FrameProduced(*frame.Record, *sensor.DepthImage) {
	s.frames++
	if s.frames >= s.n {
		s.cancel()
	}
}

func (s *stopAfter) StateChanged(st State) {
	s.states = append(s.states, st)
}

func depthImage(n int, w, h int) *sensor.DepthImage {
	img := &sensor.DepthImage{
		Width:           w,
		Height:          h,
		Samples:         make([]uint16, w*h),
		DeviceTimestamp: 5*time.Second + time.Duration(n)*33*time.Millisecond,
	}
	for i := range img.Samples {
		img.Samples[i] = 1000
	}
	return img
}

type fixture struct {
	ev      *events
	device  *mockDevice
	tracker *mockTracker
	logger  *mockLogger
	ch      *frame.Channel
	ctx     context.Context
	cancel  context.CancelFunc
	stop    *stopAfter
	openErr error
}

func newFixture(capacity frame.Capacity, stopFrames int) *fixture {
	ev := new(events)
	tracker := &mockTracker{ev: ev}
	tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		return &mockFrame{ev: ev, bodies: 2, img: depthImage(n, 4, 3)}, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &fixture{
		ev:      ev,
		tracker: tracker,
		device:  &mockDevice{ev: ev, tracker: tracker},
		logger:  &mockLogger{ev: ev},
		ch:      frame.NewChannel(capacity),
		ctx:     ctx,
		cancel:  cancel,
		stop:    &stopAfter{n: stopFrames, cancel: cancel},
	}
}

func (f *fixture) worker() *Worker {
	open := func(index int) (sensor.Device, error) {
		if f.openErr != nil {
			return nil, f.openErr
		}
		return f.device, nil
	}
	conf := DefaultConfig()
	conf.MaxDepth = 2000
	return New(open, f.ch, conf, WithLogger(f.logger), WithListener(f.stop))
}

func testCapacity() frame.Capacity {
	return frame.Capacity{DepthBytes: 4 * 3 * 3, Bodies: 20, Joints: 40}
}

func assertReleaseOrder(t *testing.T, ev *events, expected ...string) {
	var got []string
	for _, e := range ev.get() {
		switch e {
		case "tracker closed", "device closed", "logger closed":
			got = append(got, e)
		}
	}
	assert.Equal(t, expected, got)
}

func TestPublishesTrackedFrames(t *testing.T) {
	f := newFixture(testCapacity(), 3)
	defer f.cancel()
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))

	assert.Equal(t, Stopped, w.State())
	assert.True(t, w.IsRunning())
	assert.Equal(t, uint64(3), w.Frames())
	assert.Equal(t, "000123", w.SerialNumber())
	assert.Equal(t, sensor.DefaultDeviceConfig(), f.device.started)
	assert.Equal(t, sensor.DefaultTrackerConfig(), f.device.trackerConf)

	rec := frame.NewRecord(testCapacity())
	require.NoError(t, f.ch.Read(rec))
	require.NoError(t, rec.Validate())
	assert.Equal(t, uint64(3), rec.Seq)
	assert.Equal(t, uint64(2), rec.BodyCount)
	assert.Equal(t, int32(4), rec.DepthWidth)
	assert.Equal(t, int32(3), rec.DepthHeight)
	assert.Equal(t, int32(36), rec.DepthSize)
	assert.InDelta(t, 66, rec.TimestampMs, 1e-3)
	for _, b := range rec.ValidDepth() {
		assert.Equal(t, byte(128), b)
	}
	assert.Equal(t, uint32(2), rec.Bodies[1].ID)
	assert.Equal(t, sensor.JointCount, rec.Bodies[1].JointCount)
	assert.True(t, rec.Bodies[1].Joints[4].Projected)
	assert.Equal(t, r2.Vec{X: 1, Y: 4}, rec.Bodies[1].Joints[4].Position2D)

	assert.Equal(t, []float32{0, 33, 66}, roundAll(f.logger.timestamps))
	assert.Equal(t, []uint64{2, 2, 2}, f.logger.bodyCounts)

	assert.Equal(t, []State{DeviceOpening, Streaming, Stopping, Stopped}, f.stop.states)
	assertReleaseOrder(t, f.ev, "tracker closed", "device closed", "logger closed")
	assert.Equal(t, f.ev.count("enqueue"), f.ev.count("capture released"))
	assert.Equal(t, 3, f.ev.count("frame released"))
}

func roundAll(fs []float32) []float32 {
	out := make([]float32, len(fs))
	for i, f := range fs {
		out[i] = float32(int(f + 0.5))
	}
	return out
}

func TestNoResultIsNotAFrame(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	defer f.cancel()
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		if n < 5 {
			return nil, nil
		}
		return &mockFrame{ev: f.ev, bodies: 0, img: depthImage(n, 4, 3)}, nil
	}
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))
	assert.Equal(t, 6, f.tracker.pops)
	assert.Equal(t, uint64(1), w.Frames())
	assert.Equal(t, uint64(1), f.ch.Latest())
	assert.Len(t, f.logger.timestamps, 1)
	assert.Equal(t, float32(0), f.logger.timestamps[0])
}

func TestNotRunningUntilFirstFrame(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	var w *Worker
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		if n == 0 {
			assert.False(t, w.IsRunning())
			assert.Equal(t, Streaming, w.State())
			return nil, nil
		}
		return &mockFrame{ev: f.ev, img: depthImage(n, 4, 3)}, nil
	}
	w = f.worker()
	require.NoError(t, w.Run(f.ctx))
	assert.True(t, w.IsRunning())
}

func TestStopsWithinOneIteration(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))
	assert.Equal(t, 1, f.tracker.pops)
	assert.Equal(t, 1, f.device.captures)
	assertReleaseOrder(t, f.ev, "tracker closed", "device closed", "logger closed")
}

func TestCancelledBeforeStart(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	f.cancel()
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))
	assert.Equal(t, 0, f.device.captures)
	assert.False(t, w.IsRunning())
	assertReleaseOrder(t, f.ev, "tracker closed", "device closed", "logger closed")
}

func TestDeviceOpenFailure(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	defer f.cancel()
	f.openErr = errors.New("no device connected")
	w := f.worker()

	err := w.Run(f.ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeviceOpen))
	var fault *FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, DeviceOpening, fault.State)
	assert.Contains(t, err.Error(), "no device connected")
	assert.Equal(t, Stopped, w.State())
	assertReleaseOrder(t, f.ev, "logger closed")
}

func TestTrackerFailureClosesDevice(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	defer f.cancel()
	f.device.trackerErr = errors.New("no gpu")
	w := f.worker()

	err := w.Run(f.ctx)
	assert.True(t, errors.Is(err, ErrDeviceOpen))
	assertReleaseOrder(t, f.ev, "device closed", "logger closed")
}

func TestStartCamerasFailure(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	defer f.cancel()
	f.device.startErr = errors.New("usb bandwidth")
	w := f.worker()

	err := w.Run(f.ctx)
	assert.True(t, errors.Is(err, ErrDeviceOpen))
	assertReleaseOrder(t, f.ev, "device closed", "logger closed")
}

func TestFaultWhileStreaming(t *testing.T) {
	f := newFixture(testCapacity(), 100)
	defer f.cancel()
	cableOut := errors.New("device disconnected")
	f.device.capture = func(n int) error {
		if n == 2 {
			return cableOut
		}
		return nil
	}
	w := f.worker()

	err := w.Run(f.ctx)
	var fault *FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, Streaming, fault.State)
	assert.True(t, errors.Is(err, cableOut))
	assert.False(t, errors.Is(err, ErrDeviceOpen))
	assert.Equal(t, uint64(2), w.Frames())
	assertReleaseOrder(t, f.ev, "tracker closed", "device closed", "logger closed")
}

func TestFaultDuringShutdownIsShutdown(t *testing.T) {
	f := newFixture(testCapacity(), 100)
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		f.cancel()
		return nil, errors.New("tracker stopped")
	}
	w := f.worker()

	assert.NoError(t, w.Run(f.ctx))
	assertReleaseOrder(t, f.ev, "tracker closed", "device closed", "logger closed")
}

func TestPanicIsFault(t *testing.T) {
	f := newFixture(testCapacity(), 100)
	defer f.cancel()
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		return &mockFrame{
			ev:       f.ev,
			bodies:   1,
			img:      depthImage(n, 4, 3),
			skeleton: func(int) error { panic("bad skeleton") },
		}, nil
	}
	w := f.worker()

	err := w.Run(f.ctx)
	var fault *FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, Streaming, fault.State)
	assert.Contains(t, err.Error(), "bad skeleton")
	assertReleaseOrder(t, f.ev, "tracker closed", "device closed", "logger closed")
	assert.Equal(t, 1, f.ev.count("frame released"))
}

func TestRestartAfterPanic(t *testing.T) {
	f := newFixture(testCapacity(), 100)
	defer f.cancel()
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		return &mockFrame{
			ev:       f.ev,
			bodies:   1,
			img:      depthImage(n, 4, 3),
			skeleton: func(int) error { panic("bad skeleton") },
		}, nil
	}
	require.Error(t, f.worker().Run(f.ctx))
	assert.Equal(t, uint64(0), f.ch.Latest())

	// A new worker on the same channel streams normally.
	g := newFixture(testCapacity(), 3)
	defer g.cancel()
	g.ch = f.ch
	w := g.worker()

	require.NoError(t, w.Run(g.ctx))
	assert.Equal(t, uint64(3), w.Frames())
	assert.Equal(t, uint64(3), f.ch.Latest())
	rec := frame.NewRecord(testCapacity())
	require.NoError(t, f.ch.Read(rec))
	assert.Equal(t, uint64(2), rec.BodyCount)
}

func TestDeviceOpenFailureAfterCancel(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	f.cancel()
	f.openErr = errors.New("no device connected")
	w := f.worker()

	err := w.Run(f.ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeviceOpen))
}

func TestSkeletonErrorAbortsFrame(t *testing.T) {
	f := newFixture(testCapacity(), 100)
	defer f.cancel()
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		return &mockFrame{
			ev:       f.ev,
			bodies:   1,
			img:      depthImage(n, 4, 3),
			skeleton: func(int) error { return errors.New("no skeleton") },
		}, nil
	}
	w := f.worker()

	assert.Error(t, w.Run(f.ctx))
	assert.Equal(t, uint64(0), f.ch.Latest())
	// The channel is usable again after the abort.
	f.ch.Begin()
	f.ch.Abort()
}

func TestCaptureTimeoutIsSkipped(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	defer f.cancel()
	f.device.capture = func(n int) error {
		if n < 3 {
			return sensor.ErrTimeout
		}
		return nil
	}
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))
	assert.Equal(t, 4, f.device.captures)
	assert.Equal(t, 1, f.tracker.pops)
	assert.Equal(t, uint64(1), w.Frames())
}

func TestBodiesClamped(t *testing.T) {
	capacity := testCapacity()
	capacity.Bodies = 2
	f := newFixture(capacity, 1)
	defer f.cancel()
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		return &mockFrame{ev: f.ev, bodies: 5, img: depthImage(n, 4, 3)}, nil
	}
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))
	rec := frame.NewRecord(capacity)
	require.NoError(t, f.ch.Read(rec))
	assert.Equal(t, uint64(2), rec.BodyCount)
	assert.NoError(t, rec.Validate())
}

func TestOversizeDepthDropped(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	defer f.cancel()
	f.tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		if n < 2 {
			return &mockFrame{ev: f.ev, img: depthImage(n, 8, 8)}, nil
		}
		return &mockFrame{ev: f.ev, img: depthImage(n, 4, 3)}, nil
	}
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))
	assert.Equal(t, uint64(1), w.Frames())
	assert.Equal(t, uint64(1), f.ch.Latest())
	assert.Len(t, f.logger.timestamps, 1)
	// Dropped frames still set the time origin.
	assert.InDelta(t, 66, f.logger.timestamps[0], 1e-3)
}

func TestLoggerErrorDoesNotStopWorker(t *testing.T) {
	f := newFixture(testCapacity(), 3)
	defer f.cancel()
	f.logger.err = errors.New("disk full")
	w := f.worker()

	require.NoError(t, w.Run(f.ctx))
	assert.Equal(t, uint64(3), w.Frames())
}

func TestWithoutLogger(t *testing.T) {
	f := newFixture(testCapacity(), 2)
	defer f.cancel()
	open := func(int) (sensor.Device, error) { return f.device, nil }
	w := New(open, f.ch, DefaultConfig(), WithListener(f.stop))

	require.NoError(t, w.Run(f.ctx))
	assertReleaseOrder(t, f.ev, "tracker closed", "device closed")
}

func TestRunOnlyOnce(t *testing.T) {
	f := newFixture(testCapacity(), 1)
	w := f.worker()
	require.NoError(t, w.Run(f.ctx))
	assert.Error(t, w.Run(context.Background()))
}

func TestRunInBackground(t *testing.T) {
	ev := new(events)
	tracker := &mockTracker{ev: ev}
	tracker.pop = func(n int) (sensor.TrackedFrame, error) {
		time.Sleep(time.Millisecond)
		return &mockFrame{ev: ev, bodies: 1, img: depthImage(n, 4, 3)}, nil
	}
	device := &mockDevice{ev: ev, tracker: tracker}
	ch := frame.NewChannel(testCapacity())
	w := New(func(int) (sensor.Device, error) { return device, nil }, ch, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	rec := frame.NewRecord(testCapacity())
	require.Eventually(t, func() bool { return ch.Latest() >= 5 }, 2*time.Second, time.Millisecond)
	require.NoError(t, ch.Read(rec))
	assert.Equal(t, uint64(1), rec.BodyCount)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assertReleaseOrder(t, ev, "tracker closed", "device closed")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	conf := DefaultConfig()
	conf.MaxDepth = 0
	assert.Error(t, conf.Validate())
	conf = DefaultConfig()
	conf.Device.FPS = 60
	assert.Error(t, conf.Validate())
}
