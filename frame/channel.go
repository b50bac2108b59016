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
	"sync"
	"sync/atomic"
)

// ErrNoFrame is returned by Read when nothing has been published yet.
var ErrNoFrame = errors.New("frame: nothing published yet")

const numSlots = 3

type slot struct {
	mu        sync.RWMutex
	rec       *Record
	published bool // guarded by mu
}

// Channel hands the latest Record from a single producer to any number of
// readers. It holds three records: the latest published one, one the
// producer is filling, and a spare so that the producer does not have to
// wait for a reader that is still busy with an older frame.
//
// The producer calls Begin, fills in the returned record and then calls
// Publish (or Abort). Readers use Read or View.
type Channel struct {
	slots     [numSlots]slot
	latest    atomic.Int32
	latestSeq atomic.Uint64

	// Only touched by the producer.
	back int
	seq  uint64
}

func NewChannel(c Capacity) *Channel {
	ch := &Channel{back: -1}
	for i := range ch.slots {
		ch.slots[i].rec = NewRecord(c)
	}
	ch.latest.Store(-1)
	return ch
}

// Begin returns a record for the producer to fill. The record holds the
// contents of an older frame, which should be overwritten in place.
func (ch *Channel) Begin() *Record {
	if ch.back >= 0 {
		panic("frame: Begin called again before Publish or Abort")
	}
	latest := int(ch.latest.Load())

	for i := range ch.slots {
		if i != latest && ch.slots[i].mu.TryLock() {
			return ch.claim(i)
		}
	}

	// Both spare slots are being read. Wait for the older one, which is
	// the least likely to be of interest to anyone.
	oldest := -1
	for i := range ch.slots {
		if i == latest {
			continue
		}
		if oldest < 0 || ch.slots[i].rec.Seq < ch.slots[oldest].rec.Seq {
			oldest = i
		}
	}
	ch.slots[oldest].mu.Lock()
	return ch.claim(oldest)
}

func (ch *Channel) claim(i int) *Record {
	ch.slots[i].published = false
	ch.back = i
	return ch.slots[i].rec
}

// Publish makes the record returned by Begin the latest frame and returns
// its sequence number.
func (ch *Channel) Publish() uint64 {
	s := ch.producerSlot()
	ch.seq++
	s.rec.Seq = ch.seq
	s.published = true
	ch.latest.Store(int32(ch.back))
	ch.latestSeq.Store(ch.seq)
	s.mu.Unlock()
	ch.back = -1
	return ch.seq
}

// Abort gives back the record returned by Begin without publishing it.
func (ch *Channel) Abort() {
	s := ch.producerSlot()
	s.mu.Unlock()
	ch.back = -1
}

func (ch *Channel) producerSlot() *slot {
	if ch.back < 0 {
		panic("frame: Publish or Abort called without Begin")
	}
	return &ch.slots[ch.back]
}

// Latest returns the sequence number of the latest published frame, or 0
// if nothing has been published.
func (ch *Channel) Latest() uint64 {
	return ch.latestSeq.Load()
}

// View calls fn with the latest published record. The record must not be
// modified or retained after fn returns. View returns false if nothing
// has been published yet.
func (ch *Channel) View(fn func(*Record)) bool {
	for {
		i := ch.latest.Load()
		if i < 0 {
			return false
		}
		s := &ch.slots[i]
		s.mu.RLock()
		if !s.published {
			// The producer took this slot back after we looked it up;
			// a newer frame has been published since.
			s.mu.RUnlock()
			continue
		}
		fn(s.rec)
		s.mu.RUnlock()
		return true
	}
}

// Read copies the latest published frame into dst.
func (ch *Channel) Read(dst *Record) error {
	var err error
	if !ch.View(func(r *Record) { err = dst.CopyFrom(r) }) {
		return ErrNoFrame
	}
	return err
}
