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

// Package preview streams the tracked bodies to websocket clients as CBOR
// messages, for checking sensor placement.
package preview

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"

	"github.com/TheCacophonyProject/body-tracker/frame"
)

const (
	Path         = "/bodies"
	writeTimeout = 5 * time.Second
)

type Config struct {
	Enabled      bool   `yaml:"enabled"`
	Address      string `yaml:"address"`
	FPS          int    `yaml:"fps"`
	IncludeDepth bool   `yaml:"include-depth"`
}

func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Address: ":8090",
		FPS:     10,
	}
}

func (c Config) Validate() error {
	if c.FPS < 1 || c.FPS > 30 {
		return errors.New("preview fps should be between 1 and 30")
	}
	if c.Enabled && c.Address == "" {
		return errors.New("preview address is required when enabled")
	}
	return nil
}

// Server sends the latest frame to each client at most FPS times a second.
// Frames that have not changed since the last send are skipped.
type Server struct {
	ch       *frame.Channel
	capacity frame.Capacity
	conf     Config
	upgrader websocket.Upgrader
	encMode  cbor.EncMode
	clients  atomic.Int32
}

func NewServer(ch *frame.Channel, capacity frame.Capacity, conf Config) (*Server, error) {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &Server{
		ch:       ch,
		capacity: capacity,
		conf:     conf,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		encMode: encMode,
	}, nil
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

// ListenAndServe serves the preview feed until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	srv := &http.Server{Addr: s.conf.Address, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("preview feed listening on %s%s", s.conf.Address, Path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("preview upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.clients.Add(1)
	defer s.clients.Add(-1)
	log.Printf("preview client connected: %s", conn.RemoteAddr())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// Clients don't send anything; reading notices when they go away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.stream(ctx, conn); err != nil {
		log.Printf("preview client %s: %v", conn.RemoteAddr(), err)
	}
	log.Printf("preview client disconnected: %s", conn.RemoteAddr())
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn) error {
	rec := frame.NewRecord(s.capacity)
	var msg Message
	var lastSeq uint64

	ticker := time.NewTicker(time.Second / time.Duration(s.conf.FPS))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if s.ch.Latest() == lastSeq {
			continue
		}
		if err := s.ch.Read(rec); err != nil {
			if err == frame.ErrNoFrame {
				continue
			}
			return err
		}
		lastSeq = rec.Seq

		msg.From(rec, s.conf.IncludeDepth)
		data, err := s.encMode.Marshal(&msg)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return err
		}
	}
}
