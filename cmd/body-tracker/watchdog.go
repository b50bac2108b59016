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
	"log"

	"github.com/coreos/go-systemd/daemon"

	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/sensor"
	"github.com/TheCacophonyProject/body-tracker/worker"
)

// watchdog tells systemd the service is ready once frames are streaming
// and keeps pinging it while they keep coming.
type watchdog struct {
	worker.BaseListener
	every  int
	count  int
	notify func(state string)
}

func newWatchdog(fps int) *watchdog {
	return &watchdog{
		every:  5 * fps,
		notify: sdNotify,
	}
}

func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("systemd notify failed: %v", err)
	}
}

func (w *watchdog) StateChanged(s worker.State) {
	switch s {
	case worker.Streaming:
		w.notify("READY=1")
	case worker.Stopping:
		w.notify("STOPPING=1")
	}
}

func (w *watchdog) FrameProduced(*frame.Record, *sensor.DepthImage) {
	if w.count++; w.count >= w.every {
		w.notify("WATCHDOG=1")
		w.count = 0
	}
}
