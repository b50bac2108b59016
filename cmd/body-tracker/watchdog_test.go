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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheCacophonyProject/body-tracker/worker"
)

func TestWatchdogNotifications(t *testing.T) {
	var sent []string
	w := newWatchdog(2)
	w.notify = func(state string) { sent = append(sent, state) }

	w.StateChanged(worker.DeviceOpening)
	w.StateChanged(worker.Streaming)
	for i := 0; i < 25; i++ {
		w.FrameProduced(nil, nil)
	}
	w.StateChanged(worker.Stopping)

	assert.Equal(t, []string{
		"READY=1",
		"WATCHDOG=1",
		"WATCHDOG=1",
		"STOPPING=1",
	}, sent)
}
