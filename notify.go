package mqttlink

import "github.com/edgeterm/mqttlink/engine"

// Event types, re-exported for notification consumers.
const (
	EvtConnAck    = engine.EvtConnAck
	EvtDisconnect = engine.EvtDisconnect
	EvtPublish    = engine.EvtPublish
	EvtPubAck     = engine.EvtPubAck
	EvtPubRec     = engine.EvtPubRec
	EvtPubRel     = engine.EvtPubRel
	EvtPubComp    = engine.EvtPubComp
	EvtSubAck     = engine.EvtSubAck
	EvtUnsubAck   = engine.EvtUnsubAck
	EvtPingResp   = engine.EvtPingResp
)

// Notification is the normalized record emitted for every inbound protocol
// event. Exactly one notification is produced per event; publish-received
// events additionally carry the decoded message.
type Notification struct {
	// Type is the protocol event type.
	Type engine.EventType
	// Result is 0 on success; for CONNACK it is the broker return code,
	// negative values indicate a local failure described by Err.
	Result int
	// Err is set when a local action on the event failed.
	Err error
	// Message is set for successfully decoded publish-received events.
	Message *InboundMessage
}

// InboundMessage is a received publish decoded into caller-owned memory.
type InboundMessage struct {
	Topic   string
	Payload []byte
	QoS     engine.QoS
	Retain  bool
}

// localFailure is the notification result code for event actions that
// failed locally rather than at the broker.
const localFailure = -1
