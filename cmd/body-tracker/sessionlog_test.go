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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/body-tracker/bodylog"
	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/headers"
)

func testRecord() *frame.Record {
	rec := frame.NewRecord(testCapacity)
	rec.DepthWidth = 4
	rec.DepthHeight = 3
	rec.DepthSize = 4 * 3 * 3
	return rec
}

func TestSessionLogCreatedOnFirstFrame(t *testing.T) {
	dir := t.TempDir()
	serialCalls := 0
	s := newSessionLog(
		LogConfig{Enabled: true, Dir: dir, Compression: bodylog.Zstd},
		headers.HeaderInfo{DeviceName: "front-door", FPS: 30},
		func() string {
			serialCalls++
			return "000123"
		},
	)
	assert.Equal(t, "", s.Name())
	assert.Equal(t, 0, serialCalls)

	rec := testRecord()
	require.NoError(t, s.LogFrame(rec))
	require.NoError(t, s.LogFrame(rec))
	name := s.Name()
	assert.NotEmpty(t, name)
	assert.Equal(t, 1, serialCalls)
	require.NoError(t, s.Close())

	h, err := bodylog.ReadHeader(name)
	require.NoError(t, err)
	assert.Equal(t, "000123", h.Serial)
	assert.Equal(t, "front-door", h.DeviceName)
	assert.Equal(t, 30, h.FPS)
	assert.Equal(t, string(bodylog.Zstd), h.Compression)

	r, err := bodylog.Open(name)
	require.NoError(t, err)
	defer r.Close()
	read := frame.NewRecord(testCapacity)
	require.NoError(t, r.ReadRecord(read))
	require.NoError(t, r.ReadRecord(read))
	assert.Equal(t, int32(4), read.DepthWidth)
}

func TestSessionLogCreateFailsOnce(t *testing.T) {
	s := newSessionLog(LogConfig{Enabled: true}, headers.HeaderInfo{}, func() string { return "" })
	calls := 0
	s.create = func(string, bodylog.Options) (*bodylog.Writer, error) {
		calls++
		return nil, errors.New("disk full")
	}

	assert.EqualError(t, s.LogFrame(testRecord()), "disk full")
	assert.NoError(t, s.LogFrame(testRecord()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "", s.Name())
	assert.NoError(t, s.Close())
}

func TestSessionLogCloseWithoutFrames(t *testing.T) {
	s := newSessionLog(LogConfig{Enabled: true, Dir: t.TempDir()}, headers.HeaderInfo{}, func() string { return "" })
	assert.NoError(t, s.Close())
}
