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

package bodylog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/TheCacophonyProject/body-tracker/headers"
)

const (
	Ext       = ".bodylog"
	HeaderExt = ".yaml"

	bufferSize = 4 * 1024 * 1024
)

// Compression selects how a whole log file is compressed. The records
// inside are the same either way.
type Compression string

const (
	None Compression = "none"
	LZ4  Compression = "lz4"
	Zstd Compression = "zstd"
)

func (c Compression) Validate() error {
	switch c {
	case None, LZ4, Zstd, "":
		return nil
	}
	return fmt.Errorf("unknown compression %q", string(c))
}

// Ext returns the suffix added after Ext for compressed files.
func (c Compression) Ext() string {
	switch c {
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	}
	return ""
}

// CompressionOf works out the compression of a log file from its name.
func CompressionOf(filename string) Compression {
	switch {
	case strings.HasSuffix(filename, LZ4.Ext()):
		return LZ4
	case strings.HasSuffix(filename, Zstd.Ext()):
		return Zstd
	}
	return None
}

// HeaderName returns the name of the session header written next to a
// log file.
func HeaderName(filename string) string {
	return strings.TrimSuffix(filename, CompressionOf(filename).Ext()) + HeaderExt
}

type Options struct {
	Compression Compression
	// Header is written next to the log. SessionID, Started and
	// Compression are filled in by Create.
	Header headers.HeaderInfo
}

// Create starts a new log file in dir, named after the current time.
func Create(dir string, opts Options) (*Writer, error) {
	if err := opts.Compression.Validate(); err != nil {
		return nil, err
	}
	if opts.Compression == "" {
		opts.Compression = None
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	now := time.Now()
	filename := filepath.Join(dir, now.Format("20060102.150405.000")+Ext+opts.Compression.Ext())

	h := opts.Header
	if h.SessionID == "" {
		h.SessionID = uuid.New().String()
	}
	h.Started = now
	h.Compression = string(opts.Compression)
	if err := writeHeaderFile(HeaderName(filename), &h); err != nil {
		return nil, err
	}

	f, err := newFileSink(filename, opts.Compression)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.name = filename
	return w, nil
}

func writeHeaderFile(filename string, h *headers.HeaderInfo) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := headers.WriteHeaderInfo(f, h); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadHeader reads the session header written next to a log file.
func ReadHeader(filename string) (*headers.HeaderInfo, error) {
	f, err := os.Open(HeaderName(filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return headers.ReadHeaderInfo(bufio.NewReader(f))
}

// fileSink writes to a file through a buffer and an optional compressor.
type fileSink struct {
	f  *os.File
	bw *bufio.Writer
	cw io.WriteCloser
	w  io.Writer
}

func newFileSink(filename string, c Compression) (*fileSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	s := &fileSink{
		f:  f,
		bw: bufio.NewWriterSize(f, bufferSize),
	}
	switch c {
	case LZ4:
		s.cw = lz4.NewWriter(s.bw)
	case Zstd:
		enc, err := zstd.NewWriter(s.bw, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			f.Close()
			os.Remove(filename)
			return nil, err
		}
		s.cw = enc
	}
	s.w = s.bw
	if s.cw != nil {
		s.w = s.cw
	}
	return s, nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Close flushes the compressor then the buffer, then closes the file.
func (s *fileSink) Close() error {
	var firstErr error
	if s.cw != nil {
		firstErr = s.cw.Close()
	}
	if err := s.bw.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// fileSource reads a log file through a buffer and an optional
// decompressor.
type fileSource struct {
	f    *os.File
	r    io.Reader
	zdec *zstd.Decoder
}

func (s *fileSource) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *fileSource) Close() error {
	if s.zdec != nil {
		s.zdec.Close()
	}
	return s.f.Close()
}

// Open opens a log file for reading. The compression is worked out from
// the file name.
func Open(filename string) (*Reader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	s := &fileSource{f: f}
	br := bufio.NewReaderSize(f, bufferSize)
	switch CompressionOf(filename) {
	case LZ4:
		s.r = lz4.NewReader(br)
	case Zstd:
		s.zdec, err = zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "opening zstd stream")
		}
		s.r = s.zdec
	default:
		s.r = br
	}
	return NewReader(s), nil
}
