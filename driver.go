// Copyright 2026 Edgeterm Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mqttlink

import (
	"errors"
	"net"
	"time"

	"github.com/edgeterm/mqttlink/engine"
)

// driver is the handle to the I/O goroutine bound to one connection. It
// exists only between a successful connect and disconnect; cancellation is
// cooperative, so a wedged driver can outlive the bounded join.
type driver struct {
	done chan struct{}
}

// startDriver spawns the session driver goroutine for the engine.
func (s *Session) startDriver(eng Engine) *driver {
	d := &driver{done: make(chan struct{})}
	go s.runDriver(eng, d)
	return d
}

// runDriver is the I/O loop: wait for inbound data or the keepalive
// deadline, attempt a keepalive unconditionally, process input, and
// terminate on fatal transport errors or when the connected flag clears.
func (s *Session) runDriver(eng Engine, d *driver) {
	defer close(d.done)
	defer eng.Abort()

	for {
		if !s.connected.Load() {
			s.logger.Warn("session disconnected")
			break
		}

		deadline := time.Now().Add(eng.KeepAliveTimeLeft())
		err := eng.Input(deadline)

		// Keepalive is attempted every cycle; it is a no-op unless due.
		if lerr := eng.Live(); lerr != nil {
			s.logger.Debug("keepalive send failed", "error", lerr)
		}

		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, engine.ErrInputTimeout):
			continue
		case errors.Is(err, engine.ErrConnClosed), errors.Is(err, net.ErrClosed):
			// Connection torn down under us, normally by Disconnect.
			s.logger.Debug("input on closed connection")
		default:
			s.logger.Error("inbound processing failed", "error", err)
		}
		break
	}

	s.logger.Info("session driver terminated")
}

// join waits for the driver goroutine to finish, bounded by timeout.
// It returns false when the wait timed out.
func (d *driver) join(timeout time.Duration) bool {
	select {
	case <-d.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
