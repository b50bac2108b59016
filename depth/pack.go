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

// Package depth converts 16 bit depth images into 8 bit greyscale images
// with three identical channels per pixel.
package depth

import (
	"errors"
	"math"
)

var (
	ErrCapacityExceeded = errors.New("depth: image does not fit in buffer")
	ErrShortImage       = errors.New("depth: fewer samples than width*height")
)

// BytesPerPixel is the number of bytes each sample is packed into.
const BytesPerPixel = 3

// PackedValue scales a depth sample s (mm) against maxDepth (mm) to a byte:
// round(s / maxDepth * 255), saturating at 255. Samples of 0 (no return)
// map to 0. Nearer points are darker.
func PackedValue(s, maxDepth uint16) byte {
	if maxDepth == 0 {
		if s == 0 {
			return 0
		}
		return math.MaxUint8
	}
	if s >= maxDepth {
		return math.MaxUint8
	}
	// Integer form of round(s*255/maxDepth) with halves rounded up.
	d := uint32(maxDepth)
	return byte((uint32(s)*2*math.MaxUint8 + d) / (2 * d))
}

// Packer packs depth images for a fixed maximum displayed depth. Values
// are looked up in a table built once by NewPacker.
type Packer struct {
	maxDepth uint16
	table    [math.MaxUint16 + 1]byte
}

func NewPacker(maxDepth uint16) *Packer {
	p := &Packer{maxDepth: maxDepth}
	for s := range p.table {
		p.table[s] = PackedValue(uint16(s), maxDepth)
	}
	return p
}

func (p *Packer) MaxDepth() uint16 {
	return p.maxDepth
}

// Size returns the number of bytes a w x h image packs into.
func Size(w, h int) int {
	return w * h * BytesPerPixel
}

// Pack writes the packed form of the w x h samples into dst and returns
// the number of bytes written. dst is never grown; if it is too small
// ErrCapacityExceeded is returned and dst is left untouched.
func (p *Packer) Pack(dst []byte, samples []uint16, w, h int) (int, error) {
	if w < 0 || h < 0 {
		return 0, ErrShortImage
	}
	n := w * h
	size := Size(w, h)
	if size > len(dst) {
		return 0, ErrCapacityExceeded
	}
	if len(samples) < n {
		return 0, ErrShortImage
	}
	dst = dst[:size]
	samples = samples[:n]
	for i, s := range samples {
		b := p.table[s]
		o := i * BytesPerPixel
		dst[o] = b
		dst[o+1] = b
		dst[o+2] = b
	}
	return size, nil
}
