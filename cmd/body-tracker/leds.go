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
	"fmt"
	"log"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"

	"github.com/TheCacophonyProject/body-tracker/worker"
)

type pinOut interface {
	Out(l gpio.Level) error
}

// leds shows whether frames are streaming and whether a recording is
// being made.
type leds struct {
	worker.BaseListener
	running   pinOut
	recording pinOut
}

func newLEDs(conf LEDsConfig) *leds {
	return &leds{
		running:   lookupPin(conf.Running),
		recording: lookupPin(conf.Recording),
	}
}

func lookupPin(name string) pinOut {
	if name == "" {
		return nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		log.Printf("LED pin %s not found", name)
		return nil
	}
	return pin
}

func (l *leds) StateChanged(s worker.State) {
	switch s {
	case worker.Streaming:
		setPin(l.running, gpio.High)
	case worker.Stopping, worker.Stopped:
		setPin(l.running, gpio.Low)
		setPin(l.recording, gpio.Low)
	}
}

func (l *leds) RecordingStarted() { setPin(l.recording, gpio.High) }
func (l *leds) RecordingEnded()   { setPin(l.recording, gpio.Low) }

func setPin(pin pinOut, level gpio.Level) {
	if pin == nil {
		return
	}
	if err := pin.Out(level); err != nil {
		log.Printf("failed to set LED: %v", err)
	}
}

// cycleSensorPower turns the sensor off and on again before it is opened.
func cycleSensorPower(pinName string) error {
	if pinName == "" {
		return nil
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return fmt.Errorf("sensor power pin %s not found", pinName)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to set sensor power pin low: %v", err)
	}
	time.Sleep(2 * time.Second)
	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to set sensor power pin high: %v", err)
	}
	time.Sleep(5 * time.Second)
	return nil
}
