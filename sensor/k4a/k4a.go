//go:build k4a

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

package k4a

/*
#cgo LDFLAGS: -lk4a -lk4abt
#include <stdlib.h>
#include <k4a/k4a.h>
#include <k4abt.h>

static k4a_result_t start_cameras(k4a_device_t dev, int depth, int color, int fps, int sync) {
	k4a_device_configuration_t c = K4A_DEVICE_CONFIG_INIT_DISABLE_ALL;
	c.depth_mode = (k4a_depth_mode_t)depth;
	c.color_resolution = (k4a_color_resolution_t)color;
	c.color_format = K4A_IMAGE_FORMAT_COLOR_BGRA32;
	c.camera_fps = (k4a_fps_t)fps;
	c.wired_sync_mode = (k4a_wired_sync_mode_t)sync;
	return k4a_device_start_cameras(dev, &c);
}

static k4a_result_t tracker_create(k4a_calibration_t *cal, int orientation, int processing, int gpu, k4abt_tracker_t *out) {
	k4abt_tracker_configuration_t c = K4ABT_TRACKER_CONFIG_DEFAULT;
	c.sensor_orientation = (k4abt_sensor_orientation_t)orientation;
	c.processing_mode = (k4abt_tracker_processing_mode_t)processing;
	c.gpu_device_id = gpu;
	return k4abt_tracker_create(cal, c, out);
}

static int project_depth(k4a_calibration_t *cal, float x, float y, float z, float *u, float *v) {
	k4a_float3_t p;
	k4a_float2_t out;
	int valid = 0;
	p.xyz.x = x;
	p.xyz.y = y;
	p.xyz.z = z;
	if (k4a_calibration_3d_to_2d(cal, &p, K4A_CALIBRATION_TYPE_DEPTH, K4A_CALIBRATION_TYPE_DEPTH, &out, &valid) != K4A_RESULT_SUCCEEDED) {
		return 0;
	}
	*u = out.xy.x;
	*v = out.xy.y;
	return valid;
}

// Unions are not visible from Go, so joints are flattened here.
typedef struct {
	float px, py, pz;
	float qw, qx, qy, qz;
	int confidence;
} flat_joint;

static k4a_result_t body_skeleton(k4abt_frame_t f, uint32_t i, flat_joint *out) {
	k4abt_skeleton_t s;
	k4a_result_t r = k4abt_frame_get_body_skeleton(f, i, &s);
	if (r != K4A_RESULT_SUCCEEDED) {
		return r;
	}
	for (int j = 0; j < K4ABT_JOINT_COUNT; j++) {
		k4abt_joint_t *src = &s.joints[j];
		out[j].px = src->position.xyz.x;
		out[j].py = src->position.xyz.y;
		out[j].pz = src->position.xyz.z;
		out[j].qw = src->orientation.wxyz.w;
		out[j].qx = src->orientation.wxyz.x;
		out[j].qy = src->orientation.wxyz.y;
		out[j].qz = src->orientation.wxyz.z;
		out[j].confidence = (int)src->confidence_level;
	}
	return r;
}
*/
import "C"

import (
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/TheCacophonyProject/body-tracker/sensor"
)

const (
	waitSucceeded = C.K4A_WAIT_RESULT_SUCCEEDED
	waitTimeout   = C.K4A_WAIT_RESULT_TIMEOUT
)

// Open opens the Azure Kinect with the given index.
func Open(index int) (sensor.Device, error) {
	if index < 0 {
		return nil, errors.Errorf("k4a: no device %d", index)
	}
	var h C.k4a_device_t
	if C.k4a_device_open(C.uint32_t(index), &h) != C.K4A_RESULT_SUCCEEDED {
		return nil, errors.Errorf("k4a: failed to open device %d", index)
	}
	return &Device{handle: h}, nil
}

// Device is an opened Azure Kinect.
type Device struct {
	mu      sync.Mutex
	handle  C.k4a_device_t
	started bool
	modes   deviceModes
}

func (d *Device) StartCameras(c sensor.DeviceConfig) error {
	m, err := toDeviceModes(c)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == nil {
		return errors.New("k4a: device closed")
	}
	r := C.start_cameras(d.handle, C.int(m.depth), C.int(m.color), C.int(m.fps), C.int(m.sync))
	if r != C.K4A_RESULT_SUCCEEDED {
		return errors.New("k4a: failed to start cameras")
	}
	d.started = true
	d.modes = m
	return nil
}

func (d *Device) Calibration() (sensor.Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, errors.New("k4a: cameras not started")
	}
	cal := (*C.k4a_calibration_t)(C.malloc(C.sizeof_k4a_calibration_t))
	r := C.k4a_device_get_calibration(d.handle,
		C.k4a_depth_mode_t(d.modes.depth), C.k4a_color_resolution_t(d.modes.color), cal)
	if r != C.K4A_RESULT_SUCCEEDED {
		C.free(unsafe.Pointer(cal))
		return nil, errors.New("k4a: failed to get calibration")
	}
	c := &Calibration{cal: cal}
	runtime.SetFinalizer(c, func(c *Calibration) { C.free(unsafe.Pointer(c.cal)) })
	return c, nil
}

func (d *Device) NewTracker(cal sensor.Calibration, c sensor.TrackerConfig) (sensor.Tracker, error) {
	kc, ok := cal.(*Calibration)
	if !ok {
		return nil, errors.New("k4a: calibration is not from an Azure Kinect")
	}
	m, err := toTrackerModes(c)
	if err != nil {
		return nil, err
	}
	var h C.k4abt_tracker_t
	r := C.tracker_create(kc.cal, C.int(m.orientation), C.int(m.processing), C.int(m.gpuDeviceID), &h)
	if r != C.K4A_RESULT_SUCCEEDED {
		return nil, errors.New("k4a: failed to create body tracker")
	}
	return &Tracker{handle: h}, nil
}

func (d *Device) Capture(timeout time.Duration) (sensor.Capture, error) {
	var h C.k4a_capture_t
	switch C.k4a_device_get_capture(d.handle, &h, C.int32_t(timeoutMs(timeout))) {
	case waitSucceeded:
		return &Capture{handle: h}, nil
	case waitTimeout:
		return nil, sensor.ErrTimeout
	}
	return nil, errors.New("k4a: failed to get capture")
}

func (d *Device) SerialNumber() string {
	var size C.size_t
	if C.k4a_device_get_serialnum(d.handle, nil, &size) != C.K4A_BUFFER_RESULT_TOO_SMALL {
		return ""
	}
	buf := (*C.char)(C.malloc(size))
	defer C.free(unsafe.Pointer(buf))
	if C.k4a_device_get_serialnum(d.handle, buf, &size) != C.K4A_BUFFER_RESULT_SUCCEEDED {
		return ""
	}
	return C.GoString(buf)
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == nil {
		return errors.New("k4a: device already closed")
	}
	if d.started {
		C.k4a_device_stop_cameras(d.handle)
		d.started = false
	}
	C.k4a_device_close(d.handle)
	d.handle = nil
	return nil
}

// Calibration is the device calibration. It is held in C memory so that it
// can be handed to the tracker.
type Calibration struct {
	cal *C.k4a_calibration_t
}

func (c *Calibration) Project(p r3.Vec) (r2.Vec, bool) {
	var u, v C.float
	valid := C.project_depth(c.cal, C.float(p.X), C.float(p.Y), C.float(p.Z), &u, &v)
	if valid == 0 {
		return r2.Vec{}, false
	}
	return r2.Vec{X: float64(u), Y: float64(v)}, true
}

type Capture struct {
	handle C.k4a_capture_t
}

func (c *Capture) Release() {
	if c.handle != nil {
		C.k4a_capture_release(c.handle)
		c.handle = nil
	}
}

type Tracker struct {
	handle C.k4abt_tracker_t
}

func (t *Tracker) Enqueue(c sensor.Capture, timeout time.Duration) error {
	kc, ok := c.(*Capture)
	if !ok || kc.handle == nil {
		return errors.New("k4a: invalid capture")
	}
	switch C.k4abt_tracker_enqueue_capture(t.handle, kc.handle, C.int32_t(timeoutMs(timeout))) {
	case waitSucceeded:
		return nil
	case waitTimeout:
		return sensor.ErrTimeout
	}
	return errors.New("k4a: failed to enqueue capture")
}

func (t *Tracker) PopResult(timeout time.Duration, errorOnTimeout bool) (sensor.TrackedFrame, error) {
	var h C.k4abt_frame_t
	switch C.k4abt_tracker_pop_result(t.handle, &h, C.int32_t(timeoutMs(timeout))) {
	case waitSucceeded:
		return &TrackedFrame{handle: h}, nil
	case waitTimeout:
		if errorOnTimeout {
			return nil, sensor.ErrTimeout
		}
		return nil, nil
	}
	return nil, errors.New("k4a: failed to pop tracker result")
}

func (t *Tracker) Close() error {
	if t.handle == nil {
		return errors.New("k4a: tracker already closed")
	}
	C.k4abt_tracker_shutdown(t.handle)
	C.k4abt_tracker_destroy(t.handle)
	t.handle = nil
	return nil
}

// TrackedFrame wraps a body frame. The depth image is read from the
// capture the frame was computed from.
type TrackedFrame struct {
	handle  C.k4abt_frame_t
	capture C.k4a_capture_t
	image   C.k4a_image_t
	depth   sensor.DepthImage
	joints  [sensor.JointCount]C.flat_joint
}

func (f *TrackedFrame) NumBodies() int {
	return int(C.k4abt_frame_get_num_bodies(f.handle))
}

func (f *TrackedFrame) Skeleton(i int, s *sensor.Skeleton) error {
	if i < 0 || i >= f.NumBodies() {
		return errors.Errorf("k4a: no body %d", i)
	}
	if C.body_skeleton(f.handle, C.uint32_t(i), &f.joints[0]) != C.K4A_RESULT_SUCCEEDED {
		return errors.Errorf("k4a: failed to get skeleton of body %d", i)
	}
	s.ID = uint32(C.k4abt_frame_get_body_id(f.handle, C.uint32_t(i)))
	for j := range s.Joints {
		src := &f.joints[j]
		s.Joints[j] = sensor.SkeletonJoint{
			Position:    r3.Vec{X: float64(src.px), Y: float64(src.py), Z: float64(src.pz)},
			Orientation: quat.Number{Real: float64(src.qw), Imag: float64(src.qx), Jmag: float64(src.qy), Kmag: float64(src.qz)},
			Confidence:  sensor.Confidence(src.confidence),
		}
	}
	return nil
}

// DepthImage returns the depth image without copying it. The samples point
// into SDK memory and are only valid until Release.
func (f *TrackedFrame) DepthImage() (*sensor.DepthImage, error) {
	if f.image != nil {
		return &f.depth, nil
	}
	if f.capture == nil {
		f.capture = C.k4abt_frame_get_capture(f.handle)
		if f.capture == nil {
			return nil, errors.New("k4a: body frame has no capture")
		}
	}
	img := C.k4a_capture_get_depth_image(f.capture)
	if img == nil {
		return nil, errors.New("k4a: capture has no depth image")
	}
	f.image = img

	w := int(C.k4a_image_get_width_pixels(img))
	h := int(C.k4a_image_get_height_pixels(img))
	stride := int(C.k4a_image_get_stride_bytes(img))
	if stride != w*2 {
		return nil, errors.Errorf("k4a: unexpected depth stride %d for width %d", stride, w)
	}
	buf := C.k4a_image_get_buffer(img)
	f.depth = sensor.DepthImage{
		Width:           w,
		Height:          h,
		Samples:         unsafe.Slice((*uint16)(unsafe.Pointer(buf)), w*h),
		DeviceTimestamp: time.Duration(C.k4a_image_get_device_timestamp_usec(img)) * time.Microsecond,
	}
	return &f.depth, nil
}

func (f *TrackedFrame) Release() {
	if f.image != nil {
		C.k4a_image_release(f.image)
		f.image = nil
	}
	if f.capture != nil {
		C.k4a_capture_release(f.capture)
		f.capture = nil
	}
	if f.handle != nil {
		C.k4abt_frame_release(f.handle)
		f.handle = nil
	}
	f.depth = sensor.DepthImage{}
}
