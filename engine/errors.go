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

package engine

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	ErrConnClosed          = errors.New("engine: connection closed")
	ErrInputTimeout        = errors.New("engine: input wait timed out")
	ErrPacketTooLarge      = errors.New("engine: packet exceeds receive buffer")
	ErrMalformedPacket     = errors.New("engine: malformed packet")
	ErrInvalidTopic        = errors.New("engine: invalid topic")
	ErrInvalidProtocol     = errors.New("engine: invalid protocol")
	ErrBadUsernamePassword = errors.New("engine: bad username or password")
	ErrIdentifierRejected  = errors.New("engine: client identifier rejected")
	ErrServerUnavailable   = errors.New("engine: server unavailable")
	ErrNotAuthorized       = errors.New("engine: not authorized")
)

// ReturnCode represents an MQTT 3.1.1 CONNACK return code.
type ReturnCode byte

// MQTT 3.1.1 CONNACK return codes.
const (
	ConnectionAccepted          ReturnCode = 0x00
	UnacceptableProtocolVersion ReturnCode = 0x01
	IdentifierRejected          ReturnCode = 0x02
	ServerUnavailable           ReturnCode = 0x03
	BadUsernameOrPassword       ReturnCode = 0x04
	NotAuthorized               ReturnCode = 0x05
)

// String returns the string representation of the return code.
func (r ReturnCode) String() string {
	switch r {
	case ConnectionAccepted:
		return "Connection Accepted"
	case UnacceptableProtocolVersion:
		return "Unacceptable Protocol Version"
	case IdentifierRejected:
		return "Identifier Rejected"
	case ServerUnavailable:
		return "Server Unavailable"
	case BadUsernameOrPassword:
		return "Bad User Name or Password"
	case NotAuthorized:
		return "Not Authorized"
	default:
		return fmt.Sprintf("Unknown return code: 0x%02X", byte(r))
	}
}

// IsError returns true if the return code indicates a refused connection.
func (r ReturnCode) IsError() bool {
	return r != ConnectionAccepted
}

// ToError converts a return code to an error.
func (r ReturnCode) ToError() error {
	switch r {
	case ConnectionAccepted:
		return nil
	case UnacceptableProtocolVersion:
		return ErrInvalidProtocol
	case IdentifierRejected:
		return ErrIdentifierRejected
	case ServerUnavailable:
		return ErrServerUnavailable
	case BadUsernameOrPassword:
		return ErrBadUsernamePassword
	case NotAuthorized:
		return ErrNotAuthorized
	default:
		return &ConnackError{Code: r}
	}
}

// ConnackError represents a refused connect attempt.
type ConnackError struct {
	Code ReturnCode
}

// Error implements the error interface.
func (e *ConnackError) Error() string {
	return fmt.Sprintf("engine: connection refused: %s (0x%02X)", e.Code.String(), byte(e.Code))
}

// SubackFailure is the SUBACK return code for a rejected subscription.
const SubackFailure byte = 0x80
