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
	"bytes"

	"github.com/edgeterm/mqttlink/engine"
)

// handleEvent is the engine event callback. It runs on the driver
// goroutine (except for the disconnect event raised by Disconnect itself),
// advances the QoS 2 handshakes, decodes inbound publishes, and emits one
// notification per event regardless of outcome.
func (s *Session) handleEvent(evt *engine.Event) {
	n := Notification{Type: evt.Type, Result: evt.Result}

	switch evt.Type {
	case engine.EvtConnAck:
		if evt.Result != 0 {
			s.connected.Store(false)
			s.logger.Warn("connect refused",
				"code", engine.ReturnCode(evt.Result).String())
		}

	case engine.EvtDisconnect:
		s.connected.Store(false)

	case engine.EvtPublish:
		msg, err := s.readInbound(evt.Publish)
		if err != nil {
			n.Result = localFailure
			n.Err = err
			s.logger.Warn("inbound publish dropped",
				"topic", evt.Publish.Topic,
				"len", evt.Publish.Len(),
				"error", err)
		} else {
			n.Message = msg
		}

	case engine.EvtPubRec:
		// QoS 2 phase 1: acknowledge with a release for the same id.
		if evt.Result == 0 {
			if eng := s.currentEngine(); eng != nil {
				if err := eng.Release(evt.ID); err != nil {
					s.logger.Error("qos2 release failed", "id", evt.ID, "error", err)
				} else {
					s.logger.Debug("qos2 release sent", "id", evt.ID)
				}
			}
		}

	case engine.EvtPubRel:
		// QoS 2 phase 2: answer with a completion for the same id.
		if evt.Result == 0 {
			if eng := s.currentEngine(); eng != nil {
				if err := eng.Complete(evt.ID); err != nil {
					s.logger.Error("qos2 complete failed", "id", evt.ID, "error", err)
				} else {
					s.logger.Debug("qos2 complete sent", "id", evt.ID)
				}
			}
		}

	case engine.EvtPubAck, engine.EvtPubComp, engine.EvtSubAck, engine.EvtUnsubAck:
		s.logger.Debug("acknowledgement", "event", evt.Type.String(), "id", evt.ID)

	default:
		s.logger.Debug("unhandled event", "event", evt.Type.String(), "result", evt.Result)
	}

	s.emit(n)
}

// readInbound copies a received publish out of the engine's buffer.
// Payloads larger than the message buffer are rejected without tearing
// the session down.
func (s *Session) readInbound(pub *engine.InboundPublish) (*InboundMessage, error) {
	if pub.Len() > len(s.payloadBuf) {
		return nil, ErrPayloadTooLarge
	}

	n := pub.ReadPayload(s.payloadBuf)
	return &InboundMessage{
		Topic:   pub.Topic,
		Payload: bytes.Clone(s.payloadBuf[:n]),
		QoS:     pub.QoS,
		Retain:  pub.Retain,
	}, nil
}

// emit delivers a notification without blocking the driver; when the
// consumer lags, the notification is dropped.
func (s *Session) emit(n Notification) {
	select {
	case s.notify <- n:
	default:
		s.logger.Warn("notification dropped", "event", n.Type.String())
	}
}
