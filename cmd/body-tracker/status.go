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
	"github.com/TheCacophonyProject/body-tracker/preview"
	"github.com/TheCacophonyProject/body-tracker/recorder"
	"github.com/TheCacophonyProject/body-tracker/worker"
)

// daemonStatus collects the status reported over D-Bus. Parts that are
// turned off are nil.
type daemonStatus struct {
	worker   *worker.Worker
	recorder *recorder.BodyProcessor
	preview  *preview.Server
	log      *sessionLog
}

func (s *daemonStatus) Status() map[string]interface{} {
	status := map[string]interface{}{}
	if s.worker != nil {
		status["state"] = s.worker.State().String()
		status["running"] = s.worker.IsRunning()
		status["frames"] = s.worker.Frames()
		status["serial"] = s.worker.SerialNumber()
	}
	if s.recorder != nil {
		status["recording"] = s.recorder.IsRecording()
	}
	if s.preview != nil {
		status["preview-clients"] = int32(s.preview.Clients())
	}
	if s.log != nil {
		status["log-file"] = s.log.Name()
	}
	return status
}
