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

package depth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackedValueScenarios(t *testing.T) {
	assert.Equal(t, byte(128), PackedValue(1000, 2000))
	assert.Equal(t, byte(0), PackedValue(0, 2000))
	assert.Equal(t, byte(255), PackedValue(2000, 2000))
	assert.Equal(t, byte(255), PackedValue(65535, 2000))
	assert.Equal(t, byte(1), PackedValue(6, 2000))
	assert.Equal(t, byte(0), PackedValue(3, 2000))
}

func TestPackedValueMatchesFormula(t *testing.T) {
	for _, maxDepth := range []uint16{1, 255, 1000, 2000, 4096, 5000, 65535} {
		for s := 0; s <= math.MaxUint16; s += 7 {
			expected := math.Round(float64(s) * 255 / float64(maxDepth))
			if expected > 255 {
				expected = 255
			}
			if !assert.Equal(t, byte(expected), PackedValue(uint16(s), maxDepth), "s=%d D=%d", s, maxDepth) {
				return
			}
		}
	}
}

func TestZeroMaxDepth(t *testing.T) {
	assert.Equal(t, byte(0), PackedValue(0, 0))
	assert.Equal(t, byte(255), PackedValue(1, 0))
}

func TestPackReplicatesChannels(t *testing.T) {
	p := NewPacker(2000)
	samples := []uint16{
		0, 1000, 2000,
		500, 3000, 1,
	}
	dst := make([]byte, 64)
	for i := range dst {
		dst[i] = 0xAA
	}

	n, err := p.Pack(dst, samples, 3, 2)
	require.NoError(t, err)
	require.Equal(t, 18, n)

	assert.Equal(t, []byte{
		0, 0, 0, 128, 128, 128, 255, 255, 255,
		64, 64, 64, 255, 255, 255, 0, 0, 0,
	}, dst[:n])

	// Bytes past the image are untouched.
	for _, b := range dst[n:] {
		assert.Equal(t, byte(0xAA), b)
	}
}

func TestPackTableMatchesPackedValue(t *testing.T) {
	p := NewPacker(1234)
	assert.Equal(t, uint16(1234), p.MaxDepth())
	for s := 0; s <= math.MaxUint16; s++ {
		if p.table[s] != PackedValue(uint16(s), 1234) {
			t.Fatalf("table mismatch at %d", s)
		}
	}
}

func TestPackCapacityExceeded(t *testing.T) {
	p := NewPacker(2000)
	samples := make([]uint16, 4*4)
	dst := make([]byte, Size(4, 4)-1)

	n, err := p.Pack(dst, samples, 4, 4)
	assert.Equal(t, ErrCapacityExceeded, err)
	assert.Equal(t, 0, n)
}

func TestPackShortImage(t *testing.T) {
	p := NewPacker(2000)
	_, err := p.Pack(make([]byte, 100), make([]uint16, 5), 3, 2)
	assert.Equal(t, ErrShortImage, err)
}

func TestPackDoesNotAllocate(t *testing.T) {
	p := NewPacker(5000)
	samples := make([]uint16, 640*576)
	for i := range samples {
		samples[i] = uint16(i)
	}
	dst := make([]byte, Size(640, 576))
	allocs := testing.AllocsPerRun(5, func() {
		if _, err := p.Pack(dst, samples, 640, 576); err != nil {
			t.Fatal(err)
		}
	})
	assert.Equal(t, float64(0), allocs)
}

func BenchmarkPack(b *testing.B) {
	p := NewPacker(5000)
	samples := make([]uint16, 640*576)
	dst := make([]byte, Size(640, 576))
	b.SetBytes(int64(len(dst)))
	for i := 0; i < b.N; i++ {
		p.Pack(dst, samples, 640, 576)
	}
}
