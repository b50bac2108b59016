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
	"sync/atomic"

	"github.com/TheCacophonyProject/body-tracker/bodylog"
	"github.com/TheCacophonyProject/body-tracker/frame"
	"github.com/TheCacophonyProject/body-tracker/headers"
)

// sessionLog creates the body log when the first frame arrives, once the
// device serial number is known.
type sessionLog struct {
	conf   LogConfig
	header headers.HeaderInfo
	serial func() string
	create func(dir string, opts bodylog.Options) (*bodylog.Writer, error)

	w      *bodylog.Writer
	failed bool
	name   atomic.Pointer[string]
}

func newSessionLog(conf LogConfig, header headers.HeaderInfo, serial func() string) *sessionLog {
	return &sessionLog{
		conf:   conf,
		header: header,
		serial: serial,
		create: bodylog.Create,
	}
}

func (s *sessionLog) LogFrame(rec *frame.Record) error {
	if s.w == nil {
		if s.failed {
			return nil
		}
		h := s.header
		h.Serial = s.serial()
		w, err := s.create(s.conf.Dir, bodylog.Options{Compression: s.conf.Compression, Header: h})
		if err != nil {
			s.failed = true
			return err
		}
		s.w = w
		name := w.Name()
		s.name.Store(&name)
		log.Printf("body log started: %s", name)
	}
	return s.w.LogFrame(rec)
}

// Name returns the log file name, or "" before the log is created.
func (s *sessionLog) Name() string {
	if p := s.name.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *sessionLog) Close() error {
	if s.w == nil {
		return nil
	}
	log.Printf("body log closed after %d frames", s.w.Frames())
	return s.w.Close()
}
