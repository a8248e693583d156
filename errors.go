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
	"fmt"
)

// Standard errors.
var (
	ErrAlreadyConnected = errors.New("mqttlink: already connected")
	ErrNotConnected     = errors.New("mqttlink: not connected")
	ErrInvalidArgument  = errors.New("mqttlink: invalid argument")
	ErrPayloadTooLarge  = errors.New("mqttlink: payload exceeds message buffer")
	ErrStreamOpen       = errors.New("mqttlink: a streaming publish is already open")
	ErrStreamClosed     = errors.New("mqttlink: streaming publish closed")
	ErrNoTLSProvider    = errors.New("mqttlink: no TLS provider for security tag")
)

// ResolutionError reports a broker hostname that could not be resolved for
// the requested address family.
type ResolutionError struct {
	Host string
	Err  error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("mqttlink: resolving %q: %v", e.Host, e.Err)
}

// Unwrap returns the underlying resolver error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// HandshakeError reports a failed engine connect handshake. The session
// remains unconnected.
type HandshakeError struct {
	Err error
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("mqttlink: connect handshake: %v", e.Err)
}

// Unwrap returns the underlying engine error.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}
