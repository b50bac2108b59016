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
	"errors"
	"time"
)

type ThrottlerConfig struct {
	Activate   bool          `yaml:"activate"`
	BucketSize time.Duration `yaml:"bucket-size"`
	MinRefill  time.Duration `yaml:"min-refill"`
}

func DefaultThrottlerConfig() ThrottlerConfig {
	return ThrottlerConfig{
		Activate:   true,
		BucketSize: 10 * time.Minute,
		MinRefill:  10 * time.Minute,
	}
}

func (c ThrottlerConfig) Validate() error {
	if !c.Activate {
		return nil
	}
	if c.BucketSize <= 0 {
		return errors.New("bucket-size should be positive")
	}
	if c.MinRefill <= 0 {
		return errors.New("min-refill should be positive")
	}
	return nil
}
