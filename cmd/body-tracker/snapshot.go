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
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/sensor"
	"github.com/TheCacophonyProject/body-tracker/worker"
)

const (
	snapshotName          = "still.png"
	rawSnapshotName       = "still-raw.png"
	allowedSnapshotPeriod = 500 * time.Millisecond
	rawSnapshotTimeout    = 2 * time.Second
)

// snapshotter writes the latest frame to PNG files on request. Raw
// snapshots need the unpacked depth samples so they are copied by
// FrameProduced on the worker goroutine when one has been asked for.
type snapshotter struct {
	worker.BaseListener

	dir     string
	ch      *frame.Channel
	nowFunc func() time.Time

	mu       sync.Mutex
	rec      *frame.Record
	lastSeq  uint64
	lastTime time.Time

	wantRaw  atomic.Bool
	rawReady chan *image.Gray16
}

func newSnapshotter(dir string, ch *frame.Channel, capacity frame.Capacity) *snapshotter {
	return &snapshotter{
		dir:      dir,
		ch:       ch,
		nowFunc:  time.Now,
		rec:      frame.NewRecord(capacity),
		rawReady: make(chan *image.Gray16, 1),
	}
}

// Take writes still.png from the latest published frame.
func (s *snapshotter) Take() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nowFunc().Sub(s.lastTime) < allowedSnapshotPeriod {
		return nil
	}
	if err := s.ch.Read(s.rec); err != nil {
		if err == frame.ErrNoFrame {
			return errors.New("reading from sensor has not started yet")
		}
		return err
	}
	if s.rec.Seq == s.lastSeq {
		return nil
	}

	if err := writePNG(filepath.Join(s.dir, snapshotName), s.rec.Image()); err != nil {
		return err
	}
	s.lastSeq = s.rec.Seq
	s.lastTime = s.nowFunc()
	return nil
}

// TakeRaw writes still-raw.png from the next frame produced.
func (s *snapshotter) TakeRaw() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.rawReady:
	default:
	}
	s.wantRaw.Store(true)
	select {
	case raw := <-s.rawReady:
		return writePNG(filepath.Join(s.dir, rawSnapshotName), raw)
	case <-time.After(rawSnapshotTimeout):
		s.wantRaw.Store(false)
		return errors.New("no depth frame received")
	}
}

func (s *snapshotter) FrameProduced(_ *frame.Record, img *sensor.DepthImage) {
	if !s.wantRaw.CompareAndSwap(true, false) {
		return
	}
	raw := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			raw.SetGray16(x, y, color.Gray16{Y: img.Samples[y*img.Width+x]})
		}
	}
	select {
	case s.rawReady <- raw:
	default:
	}
}

func writePNG(filename string, img image.Image) error {
	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func deleteSnapshots(dir string) {
	deleteSnapshotFile(dir, snapshotName)
	deleteSnapshotFile(dir, rawSnapshotName)
}

func deleteSnapshotFile(dir, basename string) {
	if err := os.Remove(filepath.Join(dir, basename)); err != nil && !os.IsNotExist(err) {
		log.Printf("error deleting snapshot image: %v", err)
	}
}
