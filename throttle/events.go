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

package throttle

import (
	"encoding/json"
	"log"
	"time"

	"github.com/godbus/dbus"
)

type busObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// EventReporter queues an event with the Cacophony events service each
// time recording is throttled.
type EventReporter struct {
	obj     busObject
	nowFunc func() time.Time
}

func NewEventReporter() (*EventReporter, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return &EventReporter{
		obj:     conn.Object("org.cacophony.Events", "/org/cacophony/Events"),
		nowFunc: time.Now,
	}, nil
}

func (er *EventReporter) WhenThrottled() {
	if err := er.Queue("throttle", map[string]interface{}{"source": "body-tracker"}); err != nil {
		log.Printf("could not record throttle event: %v", err)
	}
}

// Queue adds an event of the given type to the events queue.
func (er *EventReporter) Queue(eventType string, details map[string]interface{}) error {
	description := map[string]interface{}{"type": eventType}
	if len(details) > 0 {
		description["details"] = details
	}
	detailsJSON, err := json.Marshal(map[string]interface{}{"description": description})
	if err != nil {
		return err
	}
	call := er.obj.Call("org.cacophony.Events.Queue", 0, detailsJSON, er.nowFunc().UnixNano())
	return call.Err
}
