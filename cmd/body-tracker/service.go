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

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
)

const (
	dbusName = "org.cacophony.bodytracker"
	dbusPath = "/org/cacophony/bodytracker"
)

// statusSource is what GetStatus reports on.
type statusSource interface {
	Status() map[string]interface{}
}

type service struct {
	snapshots *snapshotter
	status    statusSource
}

func startService(snapshots *snapshotter, status statusSource) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{
		snapshots: snapshots,
		status:    status,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// TakeSnapshot saves the latest packed depth frame with the tracked
// joints marked on it.
func (s *service) TakeSnapshot() *dbus.Error {
	if err := s.snapshots.Take(); err != nil {
		return dbusError("TakeSnapshot", err)
	}
	return nil
}

// TakeRawSnapshot saves the next depth frame in millimetres.
func (s *service) TakeRawSnapshot() *dbus.Error {
	if err := s.snapshots.TakeRaw(); err != nil {
		return dbusError("TakeRawSnapshot", err)
	}
	return nil
}

func (s *service) GetStatus() (map[string]dbus.Variant, *dbus.Error) {
	status := make(map[string]dbus.Variant)
	for k, v := range s.status.Status() {
		status[k] = dbus.MakeVariant(v)
	}
	return status, nil
}

func dbusError(method string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + method,
		Body: []interface{}{err.Error()},
	}
}
