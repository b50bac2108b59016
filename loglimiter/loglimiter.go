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

// Package loglimiter suppresses log messages that repeat within some time
// interval.
package loglimiter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// maxKeys bounds the number of remembered messages. Old entries are
// pruned once it is reached.
const maxKeys = 256

// New returns a new LogLimiter with the configured minimum log interval.
func New(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
		printed:  make(map[string]time.Time),
	}
}

// LogLimiter will suppress log messages if the same log message is
// seen within some time interval. Printf messages are matched on their
// format string, so a per-frame warning with changing values is still
// limited.
type LogLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	nowFunc  func() time.Time
	printed  map[string]time.Time
}

func (limiter *LogLimiter) Printf(format string, v ...interface{}) {
	if limiter.allow(format) {
		log.Print(fmt.Sprintf(format, v...))
	}
}

func (limiter *LogLimiter) Print(s string) {
	if limiter.allow(s) {
		log.Print(s)
	}
}

func (limiter *LogLimiter) allow(key string) bool {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.nowFunc()
	if last, ok := limiter.printed[key]; ok && now.Sub(last) < limiter.interval {
		return false
	}
	if len(limiter.printed) >= maxKeys {
		limiter.prune(now)
	}
	limiter.printed[key] = now
	return true
}

func (limiter *LogLimiter) prune(now time.Time) {
	for key, last := range limiter.printed {
		if now.Sub(last) >= limiter.interval {
			delete(limiter.printed, key)
		}
	}
	if len(limiter.printed) >= maxKeys {
		limiter.printed = make(map[string]time.Time)
	}
}
