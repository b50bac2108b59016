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

package frame

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned when data does not fit in a record.
var ErrCapacityExceeded = errors.New("frame: capacity exceeded")

// Capacity sets the sizes of the buffers allocated for a Record.
type Capacity struct {
	DepthBytes int `yaml:"depth-bytes"`
	Bodies     int `yaml:"bodies"`
	Joints     int `yaml:"joints"`
}

func DefaultCapacity() Capacity {
	return Capacity{
		DepthBytes: 1024 * 1024 * 3,
		Bodies:     20,
		Joints:     100,
	}
}

func (c Capacity) Validate() error {
	if c.DepthBytes <= 0 || c.DepthBytes%3 != 0 {
		return errors.New("depth-bytes should be a positive multiple of 3")
	}
	if c.Bodies <= 0 {
		return errors.New("bodies should be positive")
	}
	if c.Joints <= 0 {
		return errors.New("joints should be positive")
	}
	return nil
}

// Record is a snapshot of one tracked frame. All storage is allocated by
// NewRecord and reused for every frame after that. Only the first
// DepthSize bytes of Depth and the first BodyCount entries of Bodies hold
// data for the current frame; everything after them is left over from
// earlier frames.
type Record struct {
	// Seq is assigned by Channel.Publish.
	Seq uint64

	TimestampMs float32
	DepthWidth  int32
	DepthHeight int32
	DepthSize   int32
	Depth       []byte
	BodyCount   uint64
	Bodies      []Body
}

func NewRecord(c Capacity) *Record {
	r := &Record{
		Depth:  make([]byte, c.DepthBytes),
		Bodies: make([]Body, c.Bodies),
	}
	for i := range r.Bodies {
		r.Bodies[i] = NewBody(c.Joints)
	}
	return r
}

// Capacity returns the sizes the record was allocated with.
func (r *Record) Capacity() Capacity {
	c := Capacity{
		DepthBytes: len(r.Depth),
		Bodies:     len(r.Bodies),
	}
	if len(r.Bodies) > 0 {
		c.Joints = len(r.Bodies[0].Joints)
	}
	return c
}

// ValidDepth returns the packed depth image for the current frame.
func (r *Record) ValidDepth() []byte {
	return r.Depth[:r.DepthSize]
}

// ValidBodies returns the bodies seen in the current frame.
func (r *Record) ValidBodies() []Body {
	return r.Bodies[:r.BodyCount]
}

// Validate checks the valid-length markers against the storage.
func (r *Record) Validate() error {
	if r.BodyCount > uint64(len(r.Bodies)) {
		return fmt.Errorf("body count %d exceeds capacity %d", r.BodyCount, len(r.Bodies))
	}
	if r.DepthSize < 0 || int(r.DepthSize) > len(r.Depth) {
		return fmt.Errorf("depth size %d exceeds capacity %d", r.DepthSize, len(r.Depth))
	}
	if int64(r.DepthSize) != int64(r.DepthWidth)*int64(r.DepthHeight)*3 {
		return fmt.Errorf("depth size %d does not match %dx%d", r.DepthSize, r.DepthWidth, r.DepthHeight)
	}
	for i := range r.ValidBodies() {
		b := &r.Bodies[i]
		if b.JointCount < 0 || b.JointCount > len(b.Joints) {
			return fmt.Errorf("body %d joint count %d exceeds capacity %d", i, b.JointCount, len(b.Joints))
		}
	}
	return nil
}

// SetBodies fills the first n body slots using fill and then sets
// BodyCount. If n is larger than the number of slots only the slots
// available are filled and clamped is returned as true. Slots after the
// filled ones are not touched. BodyCount is left unchanged if fill fails.
func (r *Record) SetBodies(n int, fill func(i int, b *Body) error) (clamped bool, err error) {
	if n < 0 {
		n = 0
	}
	if n > len(r.Bodies) {
		n = len(r.Bodies)
		clamped = true
	}
	for i := 0; i < n; i++ {
		if err := fill(i, &r.Bodies[i]); err != nil {
			return clamped, err
		}
	}
	r.BodyCount = uint64(n)
	return clamped, nil
}

// CopyFrom copies the current frame of src into r without allocating.
func (r *Record) CopyFrom(src *Record) error {
	if int(src.DepthSize) > len(r.Depth) || src.BodyCount > uint64(len(r.Bodies)) {
		return ErrCapacityExceeded
	}
	for i := range src.ValidBodies() {
		if src.Bodies[i].JointCount > len(r.Bodies[i].Joints) {
			return ErrCapacityExceeded
		}
	}

	r.Seq = src.Seq
	r.TimestampMs = src.TimestampMs
	r.DepthWidth = src.DepthWidth
	r.DepthHeight = src.DepthHeight
	r.DepthSize = src.DepthSize
	copy(r.Depth, src.ValidDepth())
	for i := range src.ValidBodies() {
		r.Bodies[i].copyBody(&src.Bodies[i])
	}
	r.BodyCount = src.BodyCount
	return nil
}
