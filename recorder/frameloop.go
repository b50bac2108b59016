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

package recorder

import "github.com/TheCacophonyProject/go-cptv/cptvframe"

const noOldest = -1

// FrameLoop keeps the last n frames so that a recording can start with the
// frames from before it was triggered. Frames handed out by FrameLoop are
// overwritten once the loop comes back around to them.
type FrameLoop struct {
	frames  []*cptvframe.Frame
	ordered []*cptvframe.Frame
	current int
	full    bool
	oldest  int
}

func NewFrameLoop(size int, camera Camera) *FrameLoop {
	if size < 1 {
		size = 1
	}
	frames := make([]*cptvframe.Frame, size)
	for i := range frames {
		frames[i] = cptvframe.NewFrame(camera)
	}
	return &FrameLoop{
		frames:  frames,
		ordered: make([]*cptvframe.Frame, size),
		oldest:  noOldest,
	}
}

func (fl *FrameLoop) Size() int {
	return len(fl.frames)
}

func (fl *FrameLoop) next(i int) int {
	return (i + 1) % len(fl.frames)
}

// Move advances to the next frame and returns it.
func (fl *FrameLoop) Move() *cptvframe.Frame {
	fl.current = fl.next(fl.current)
	if fl.current == 0 {
		fl.full = true
	}
	if fl.current == fl.oldest {
		fl.oldest = noOldest
	}
	return fl.Current()
}

// Current is the frame being filled in.
func (fl *FrameLoop) Current() *cptvframe.Frame {
	return fl.frames[fl.current]
}

// History returns the stored frames from oldest to newest, ending with the
// current frame. The slice is reused by the next call.
func (fl *FrameLoop) History() []*cptvframe.Frame {
	n := len(fl.frames)
	start := 0
	count := fl.current + 1
	if fl.full {
		start = fl.next(fl.current)
		count = n
	}
	if fl.oldest != noOldest {
		count = (fl.current-fl.oldest+n)%n + 1
		start = fl.oldest
	}
	for i := 0; i < count; i++ {
		fl.ordered[i] = fl.frames[(start+i)%n]
	}
	return fl.ordered[:count]
}

// SetAsOldest stops History from returning frames from before the current
// one.
func (fl *FrameLoop) SetAsOldest() {
	fl.oldest = fl.current
}
