package engine

// EventType identifies a protocol event raised by the engine.
type EventType int

const (
	// EvtConnAck - CONNACK received, Result carries the return code.
	EvtConnAck EventType = iota
	// EvtDisconnect - connection terminated, locally or by the peer.
	EvtDisconnect
	// EvtPublish - PUBLISH received, Publish carries the message.
	EvtPublish
	// EvtPubAck - PUBACK received (QoS 1 delivery confirmed).
	EvtPubAck
	// EvtPubRec - PUBREC received (QoS 2 delivery part 1).
	EvtPubRec
	// EvtPubRel - PUBREL received (QoS 2 delivery part 2).
	EvtPubRel
	// EvtPubComp - PUBCOMP received (QoS 2 delivery part 3).
	EvtPubComp
	// EvtSubAck - SUBACK received.
	EvtSubAck
	// EvtUnsubAck - UNSUBACK received.
	EvtUnsubAck
	// EvtPingResp - PINGRESP received.
	EvtPingResp
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EvtConnAck:
		return "CONNACK"
	case EvtDisconnect:
		return "DISCONNECT"
	case EvtPublish:
		return "PUBLISH"
	case EvtPubAck:
		return "PUBACK"
	case EvtPubRec:
		return "PUBREC"
	case EvtPubRel:
		return "PUBREL"
	case EvtPubComp:
		return "PUBCOMP"
	case EvtSubAck:
		return "SUBACK"
	case EvtUnsubAck:
		return "UNSUBACK"
	case EvtPingResp:
		return "PINGRESP"
	default:
		return "UNKNOWN"
	}
}

// Event is a protocol event delivered to the handler callback.
//
// Result is 0 on success. For EvtConnAck a nonzero Result is the CONNACK
// return code; for EvtDisconnect a nonzero Result indicates an abnormal
// termination.
type Event struct {
	Type   EventType
	Result int
	// ID is the packet identifier for acknowledgement events.
	ID uint16
	// Publish is set for EvtPublish only.
	Publish *InboundPublish
}

// EventHandler is invoked synchronously for every inbound protocol event.
// The engine calls it from whichever goroutine is driving Input, except for
// the disconnect event raised by Disconnect itself.
type EventHandler func(evt *Event)

// InboundPublish describes a received PUBLISH. The payload bytes are backed
// by the engine's receive buffer and are valid only for the duration of the
// handler callback; use ReadPayload to copy them out.
type InboundPublish struct {
	Topic     string
	QoS       QoS
	ID        uint16
	Retain    bool
	Duplicate bool

	payload []byte
}

// NewInboundPublish builds an InboundPublish around a payload buffer. It is
// intended for alternative engine implementations feeding event handlers.
func NewInboundPublish(topic string, qos QoS, id uint16, retain, dup bool, payload []byte) *InboundPublish {
	return &InboundPublish{
		Topic:     topic,
		QoS:       qos,
		ID:        id,
		Retain:    retain,
		Duplicate: dup,
		payload:   payload,
	}
}

// Len returns the payload length in bytes.
func (p *InboundPublish) Len() int {
	return len(p.payload)
}

// ReadPayload copies the payload into dst and returns the number of bytes
// copied. dst must be at least Len() bytes.
func (p *InboundPublish) ReadPayload(dst []byte) int {
	return copy(dst, p.payload)
}
