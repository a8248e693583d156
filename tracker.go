package mqttlink

import (
	"fmt"
	"sync"

	"github.com/edgeterm/mqttlink/engine"
)

// idCounter allocates 16-bit message identifiers, wrapping from 0 back to 1
// so that 0 is never handed out.
type idCounter struct {
	mu sync.Mutex
	id uint16
}

func (c *idCounter) next() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.id++
	if c.id == 0 {
		c.id = 1
	}
	return c.id
}

// Publish sends one message to a topic, or opens a streaming publish when
// payload is empty: the returned StreamPublish forwards each chunk to the
// broker under the composed topic/qos/retain until Exit is called. At most
// one streaming publish may be open at a time.
//
// The engine's publish result is returned verbatim; failed publishes are
// not retried.
func (s *Session) Publish(topic string, payload []byte, qos, retain int) (*StreamPublish, error) {
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("%w: qos %d", ErrInvalidArgument, qos)
	}
	if retain != 0 && retain != 1 {
		return nil, fmt.Errorf("%w: retain %d", ErrInvalidArgument, retain)
	}
	if len(topic) == 0 || len(topic) > MaxTopicLen {
		return nil, fmt.Errorf("%w: topic length %d", ErrInvalidArgument, len(topic))
	}

	eng := s.currentEngine()
	if eng == nil {
		return nil, ErrNotConnected
	}

	id := s.pubID.next()

	if len(payload) == 0 {
		if !s.streamOpen.CompareAndSwap(false, true) {
			return nil, ErrStreamOpen
		}
		s.logger.Debug("streaming publish opened", "topic", topic, "qos", qos)
		return &StreamPublish{
			session: s,
			topic:   topic,
			qos:     engine.QoS(qos),
			retain:  retain == 1,
			id:      id,
		}, nil
	}

	return nil, eng.Publish(topic, payload, engine.QoS(qos), retain == 1, false, id)
}

// Subscribe requests a subscription to a single topic.
func (s *Session) Subscribe(topic string, qos int) error {
	if qos < 0 || qos > 2 {
		return fmt.Errorf("%w: qos %d", ErrInvalidArgument, qos)
	}
	if len(topic) == 0 || len(topic) > MaxTopicLen {
		return fmt.Errorf("%w: topic length %d", ErrInvalidArgument, len(topic))
	}

	eng := s.currentEngine()
	if eng == nil {
		return ErrNotConnected
	}

	return eng.Subscribe(topic, engine.QoS(qos), s.subID.next())
}

// Unsubscribe removes a subscription from a single topic.
func (s *Session) Unsubscribe(topic string) error {
	if len(topic) == 0 || len(topic) > MaxTopicLen {
		return fmt.Errorf("%w: topic length %d", ErrInvalidArgument, len(topic))
	}

	eng := s.currentEngine()
	if eng == nil {
		return ErrNotConnected
	}

	return eng.Unsubscribe(topic, s.subID.next())
}

// StreamPublish is an open streaming publish: payload bytes arrive in
// chunks from an external data channel and each chunk is forwarded as one
// publish under the topic, QoS, and retain flag composed at open time.
type StreamPublish struct {
	session *Session
	topic   string
	qos     engine.QoS
	retain  bool
	id      uint16

	mu     sync.Mutex
	closed bool
}

// Send forwards one payload chunk to the broker.
func (p *StreamPublish) Send(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrStreamClosed
	}

	eng := p.session.currentEngine()
	if eng == nil {
		return ErrNotConnected
	}

	return eng.Publish(p.topic, chunk, p.qos, p.retain, false, p.id)
}

// Exit closes the streaming publish. Subsequent Sends fail.
func (p *StreamPublish) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.session.streamOpen.Store(false)
	p.session.logger.Debug("streaming publish closed", "topic", p.topic)
}
