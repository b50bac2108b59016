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

package headers

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v1"
)

// Header keys.
const (
	SessionID     = "session-id"
	Started       = "started"
	DeviceName    = "device-name"
	DeviceID      = "device-id"
	Serial        = "serial"
	FPS           = "fps"
	DepthMode     = "depth-mode"
	MaxDepth      = "max-depth"
	JointsPerBody = "joints-per-body"
	Compression   = "compression"
)

// HeaderInfo describes a body log session. It is written as YAML
// terminated by a blank line.
type HeaderInfo struct {
	SessionID     string
	Started       time.Time
	DeviceName    string
	DeviceID      int
	Serial        string
	FPS           int
	DepthMode     string
	MaxDepth      int
	JointsPerBody int
	Compression   string
}

func WriteHeaderInfo(w io.Writer, h *HeaderInfo) error {
	m := map[string]interface{}{
		SessionID:     h.SessionID,
		Started:       h.Started.UTC().Format(time.RFC3339Nano),
		DeviceName:    h.DeviceName,
		DeviceID:      h.DeviceID,
		Serial:        h.Serial,
		FPS:           h.FPS,
		DepthMode:     h.DepthMode,
		MaxDepth:      h.MaxDepth,
		JointsPerBody: h.JointsPerBody,
		Compression:   h.Compression,
	}
	buf, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	_, err = w.Write(buf)
	return err
}

func ReadHeaderInfo(reader *bufio.Reader) (*HeaderInfo, error) {
	var buf bytes.Buffer
	for {
		line, err := reader.ReadString(byte('\n'))
		if err == io.EOF && line == "" && buf.Len() > 0 {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.Trim(line, " ") == "\n" {
			break
		}
		buf.WriteString(line)
	}
	h := make(map[string]interface{})
	err := yaml.Unmarshal(buf.Bytes(), &h)
	if err != nil {
		return nil, err
	}

	info := &HeaderInfo{
		SessionID:     toStr(h[SessionID]),
		DeviceName:    toStr(h[DeviceName]),
		DeviceID:      toInt(h[DeviceID]),
		Serial:        toStr(h[Serial]),
		FPS:           toInt(h[FPS]),
		DepthMode:     toStr(h[DepthMode]),
		MaxDepth:      toInt(h[MaxDepth]),
		JointsPerBody: toInt(h[JointsPerBody]),
		Compression:   toStr(h[Compression]),
	}
	if s := toStr(h[Started]); s != "" {
		if info.Started, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func toInt(v interface{}) int {
	out, ok := v.(int)
	if !ok {
		return 0
	}
	return out
}

func toStr(v interface{}) string {
	out, ok := v.(string)
	if !ok {
		return ""
	}
	return out
}
