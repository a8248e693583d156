package engine

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PacketType represents MQTT control packet types.
type PacketType byte

const (
	// CONNECT - Client request to connect to Server.
	PacketConnect PacketType = 1
	// CONNACK - Connect acknowledgment.
	PacketConnAck PacketType = 2
	// PUBLISH - Publish message.
	PacketPublish PacketType = 3
	// PUBACK - Publish acknowledgment (QoS 1).
	PacketPubAck PacketType = 4
	// PUBREC - Publish received (QoS 2 delivery part 1).
	PacketPubRec PacketType = 5
	// PUBREL - Publish release (QoS 2 delivery part 2).
	PacketPubRel PacketType = 6
	// PUBCOMP - Publish complete (QoS 2 delivery part 3).
	PacketPubComp PacketType = 7
	// SUBSCRIBE - Subscribe request.
	PacketSubscribe PacketType = 8
	// SUBACK - Subscribe acknowledgment.
	PacketSubAck PacketType = 9
	// UNSUBSCRIBE - Unsubscribe request.
	PacketUnsubscribe PacketType = 10
	// UNSUBACK - Unsubscribe acknowledgment.
	PacketUnsubAck PacketType = 11
	// PINGREQ - PING request.
	PacketPingReq PacketType = 12
	// PINGRESP - PING response.
	PacketPingResp PacketType = 13
	// DISCONNECT - Disconnect notification.
	PacketDisconnect PacketType = 14
)

// String returns the string representation of the packet type.
func (p PacketType) String() string {
	switch p {
	case PacketConnect:
		return "CONNECT"
	case PacketConnAck:
		return "CONNACK"
	case PacketPublish:
		return "PUBLISH"
	case PacketPubAck:
		return "PUBACK"
	case PacketPubRec:
		return "PUBREC"
	case PacketPubRel:
		return "PUBREL"
	case PacketPubComp:
		return "PUBCOMP"
	case PacketSubscribe:
		return "SUBSCRIBE"
	case PacketSubAck:
		return "SUBACK"
	case PacketUnsubscribe:
		return "UNSUBSCRIBE"
	case PacketUnsubAck:
		return "UNSUBACK"
	case PacketPingReq:
		return "PINGREQ"
	case PacketPingResp:
		return "PINGRESP"
	case PacketDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// QoS represents MQTT Quality of Service levels.
type QoS byte

const (
	// QoS0 - At most once delivery.
	QoS0 QoS = 0
	// QoS1 - At least once delivery.
	QoS1 QoS = 1
	// QoS2 - Exactly once delivery.
	QoS2 QoS = 2
)

// String returns the string representation of the QoS level.
func (q QoS) String() string {
	switch q {
	case QoS0:
		return "QoS0 (At most once)"
	case QoS1:
		return "QoS1 (At least once)"
	case QoS2:
		return "QoS2 (Exactly once)"
	default:
		return "Unknown QoS"
	}
}

// Packet interface for all MQTT packets.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType
	// Encode encodes the packet to bytes.
	Encode() ([]byte, error)
}

// FixedHeader represents the MQTT fixed header.
type FixedHeader struct {
	Type      PacketType
	Flags     byte
	Remaining int
}

// Encode encodes the fixed header to bytes.
func (h *FixedHeader) Encode() []byte {
	buf := make([]byte, 1, 5)
	buf[0] = byte(h.Type)<<4 | (h.Flags & 0x0F)
	buf = append(buf, encodeVarInt(h.Remaining)...)
	return buf
}

// encodeVarInt encodes an integer using MQTT variable-length encoding.
func encodeVarInt(value int) []byte {
	var buf []byte
	for {
		b := byte(value % 128)
		value /= 128
		if value > 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if value == 0 {
			break
		}
	}
	return buf
}

// decodeVarInt decodes a variable-length integer from a reader.
func decodeVarInt(r io.Reader) (int, int, error) {
	var value int
	var multiplier = 1
	var bytesRead int
	b := make([]byte, 1)

	for {
		if bytesRead >= 4 {
			return 0, bytesRead, ErrMalformedPacket
		}
		_, err := r.Read(b)
		if err != nil {
			return 0, bytesRead, err
		}
		bytesRead++
		value += int(b[0]&0x7F) * multiplier
		if b[0]&0x80 == 0 {
			break
		}
		multiplier *= 128
	}

	return value, bytesRead, nil
}

// encodeString encodes a UTF-8 string with length prefix.
func encodeString(s string) []byte {
	buf := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[2:], s)
	return buf
}

// decodeString decodes a UTF-8 string from a reader.
func decodeString(r io.Reader) (string, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return "", err
	}
	length := binary.BigEndian.Uint16(lenBuf)
	if length == 0 {
		return "", nil
	}
	strBuf := make([]byte, length)
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return "", err
	}
	return string(strBuf), nil
}

// encodeBinary encodes binary data with length prefix.
func encodeBinary(data []byte) []byte {
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	return buf
}

// ConnectPacket represents a CONNECT packet.
type ConnectPacket struct {
	// Clean session flag
	CleanSession bool
	// Will flag
	WillFlag bool
	// Will QoS
	WillQoS QoS
	// Will retain flag
	WillRetain bool
	// Username flag
	UsernameFlag bool
	// Password flag
	PasswordFlag bool
	// Keep alive interval in seconds
	KeepAlive uint16
	// Client identifier
	ClientID string
	// Will topic
	WillTopic string
	// Will payload
	WillPayload []byte
	// Username
	Username string
	// Password
	Password []byte
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType {
	return PacketConnect
}

// Encode encodes the CONNECT packet.
func (p *ConnectPacket) Encode() ([]byte, error) {
	var buf bytes.Buffer

	// Variable header
	buf.Write(encodeString(ProtocolName))
	buf.WriteByte(ProtocolLevel)

	// Connect flags
	var flags byte
	if p.CleanSession {
		flags |= 0x02
	}
	if p.WillFlag {
		flags |= 0x04
		flags |= byte(p.WillQoS) << 3
		if p.WillRetain {
			flags |= 0x20
		}
	}
	if p.PasswordFlag {
		flags |= 0x40
	}
	if p.UsernameFlag {
		flags |= 0x80
	}
	buf.WriteByte(flags)

	// Keep alive
	binary.Write(&buf, binary.BigEndian, p.KeepAlive)

	// Payload
	buf.Write(encodeString(p.ClientID))
	if p.WillFlag {
		buf.Write(encodeString(p.WillTopic))
		buf.Write(encodeBinary(p.WillPayload))
	}
	if p.UsernameFlag {
		buf.Write(encodeString(p.Username))
	}
	if p.PasswordFlag {
		buf.Write(encodeBinary(p.Password))
	}

	header := &FixedHeader{Type: PacketConnect, Remaining: buf.Len()}
	return append(header.Encode(), buf.Bytes()...), nil
}

// ConnAckPacket represents a CONNACK packet.
type ConnAckPacket struct {
	// Session present flag
	SessionPresent bool
	// Connect return code
	ReturnCode ReturnCode
}

// Type returns the packet type.
func (p *ConnAckPacket) Type() PacketType {
	return PacketConnAck
}

// Encode encodes the CONNACK packet.
func (p *ConnAckPacket) Encode() ([]byte, error) {
	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}
	header := &FixedHeader{Type: PacketConnAck, Remaining: 2}
	return append(header.Encode(), flags, byte(p.ReturnCode)), nil
}

func decodeConnAck(r *bytes.Reader) (*ConnAckPacket, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return nil, ErrMalformedPacket
	}
	code, err := r.ReadByte()
	if err != nil {
		return nil, ErrMalformedPacket
	}
	return &ConnAckPacket{
		SessionPresent: flags&0x01 != 0,
		ReturnCode:     ReturnCode(code),
	}, nil
}

// PublishPacket represents a PUBLISH packet.
type PublishPacket struct {
	// Topic is the message topic.
	Topic string
	// Payload is the message payload.
	Payload []byte
	// QoS is the quality of service level.
	QoS QoS
	// Retain indicates if the message should be retained.
	Retain bool
	// Duplicate indicates a re-delivery.
	Duplicate bool
	// ID is the packet identifier (QoS > 0).
	ID uint16
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType {
	return PacketPublish
}

// Encode encodes the PUBLISH packet.
func (p *PublishPacket) Encode() ([]byte, error) {
	if p.Topic == "" {
		return nil, ErrInvalidTopic
	}

	var buf bytes.Buffer
	buf.Write(encodeString(p.Topic))
	if p.QoS > QoS0 {
		binary.Write(&buf, binary.BigEndian, p.ID)
	}
	buf.Write(p.Payload)

	var flags byte
	if p.Duplicate {
		flags |= 0x08
	}
	flags |= byte(p.QoS) << 1
	if p.Retain {
		flags |= 0x01
	}

	header := &FixedHeader{Type: PacketPublish, Flags: flags, Remaining: buf.Len()}
	return append(header.Encode(), buf.Bytes()...), nil
}

// decodePublish decodes a PUBLISH body. The returned payload aliases body;
// it stays valid only as long as the receive buffer is untouched.
func decodePublish(r *bytes.Reader, flags byte, body []byte) (*PublishPacket, error) {
	p := &PublishPacket{
		Duplicate: flags&0x08 != 0,
		QoS:       QoS(flags >> 1 & 0x03),
		Retain:    flags&0x01 != 0,
	}
	if p.QoS > QoS2 {
		return nil, ErrMalformedPacket
	}

	topic, err := decodeString(r)
	if err != nil {
		return nil, ErrMalformedPacket
	}
	p.Topic = topic

	if p.QoS > QoS0 {
		if err := binary.Read(r, binary.BigEndian, &p.ID); err != nil {
			return nil, ErrMalformedPacket
		}
	}

	if r.Len() > 0 {
		p.Payload = body[len(body)-r.Len():]
	}
	return p, nil
}

// ackPacket is the common shape of PUBACK/PUBREC/PUBREL/PUBCOMP/UNSUBACK.
func encodeAck(t PacketType, flags byte, id uint16) []byte {
	header := &FixedHeader{Type: t, Flags: flags, Remaining: 2}
	buf := header.Encode()
	return append(buf, byte(id>>8), byte(id))
}

func decodePacketID(r *bytes.Reader) (uint16, error) {
	var id uint16
	if err := binary.Read(r, binary.BigEndian, &id); err != nil {
		return 0, ErrMalformedPacket
	}
	return id, nil
}

// PubAckPacket represents a PUBACK packet.
type PubAckPacket struct {
	ID uint16
}

// Type returns the packet type.
func (p *PubAckPacket) Type() PacketType {
	return PacketPubAck
}

// Encode encodes the PUBACK packet.
func (p *PubAckPacket) Encode() ([]byte, error) {
	return encodeAck(PacketPubAck, 0, p.ID), nil
}

// PubRecPacket represents a PUBREC packet.
type PubRecPacket struct {
	ID uint16
}

// Type returns the packet type.
func (p *PubRecPacket) Type() PacketType {
	return PacketPubRec
}

// Encode encodes the PUBREC packet.
func (p *PubRecPacket) Encode() ([]byte, error) {
	return encodeAck(PacketPubRec, 0, p.ID), nil
}

// PubRelPacket represents a PUBREL packet.
type PubRelPacket struct {
	ID uint16
}

// Type returns the packet type.
func (p *PubRelPacket) Type() PacketType {
	return PacketPubRel
}

// Encode encodes the PUBREL packet.
func (p *PubRelPacket) Encode() ([]byte, error) {
	return encodeAck(PacketPubRel, 0x02, p.ID), nil
}

// PubCompPacket represents a PUBCOMP packet.
type PubCompPacket struct {
	ID uint16
}

// Type returns the packet type.
func (p *PubCompPacket) Type() PacketType {
	return PacketPubComp
}

// Encode encodes the PUBCOMP packet.
func (p *PubCompPacket) Encode() ([]byte, error) {
	return encodeAck(PacketPubComp, 0, p.ID), nil
}

// SubscribePacket represents a SUBSCRIBE packet carrying a single topic.
type SubscribePacket struct {
	ID    uint16
	Topic string
	QoS   QoS
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType {
	return PacketSubscribe
}

// Encode encodes the SUBSCRIBE packet.
func (p *SubscribePacket) Encode() ([]byte, error) {
	if p.Topic == "" {
		return nil, ErrInvalidTopic
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, p.ID)
	buf.Write(encodeString(p.Topic))
	buf.WriteByte(byte(p.QoS))

	header := &FixedHeader{Type: PacketSubscribe, Flags: 0x02, Remaining: buf.Len()}
	return append(header.Encode(), buf.Bytes()...), nil
}

// SubAckPacket represents a SUBACK packet.
type SubAckPacket struct {
	ID uint16
	// ReturnCodes holds one granted QoS (or SubackFailure) per requested topic.
	ReturnCodes []byte
}

// Type returns the packet type.
func (p *SubAckPacket) Type() PacketType {
	return PacketSubAck
}

// Encode encodes the SUBACK packet.
func (p *SubAckPacket) Encode() ([]byte, error) {
	header := &FixedHeader{Type: PacketSubAck, Remaining: 2 + len(p.ReturnCodes)}
	buf := header.Encode()
	buf = append(buf, byte(p.ID>>8), byte(p.ID))
	return append(buf, p.ReturnCodes...), nil
}

func decodeSubAck(r *bytes.Reader) (*SubAckPacket, error) {
	id, err := decodePacketID(r)
	if err != nil {
		return nil, err
	}
	p := &SubAckPacket{ID: id}
	if r.Len() > 0 {
		p.ReturnCodes = make([]byte, r.Len())
		if _, err := io.ReadFull(r, p.ReturnCodes); err != nil {
			return nil, ErrMalformedPacket
		}
	}
	return p, nil
}

// UnsubscribePacket represents an UNSUBSCRIBE packet carrying a single topic.
type UnsubscribePacket struct {
	ID    uint16
	Topic string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() PacketType {
	return PacketUnsubscribe
}

// Encode encodes the UNSUBSCRIBE packet.
func (p *UnsubscribePacket) Encode() ([]byte, error) {
	if p.Topic == "" {
		return nil, ErrInvalidTopic
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, p.ID)
	buf.Write(encodeString(p.Topic))

	header := &FixedHeader{Type: PacketUnsubscribe, Flags: 0x02, Remaining: buf.Len()}
	return append(header.Encode(), buf.Bytes()...), nil
}

// UnsubAckPacket represents an UNSUBACK packet.
type UnsubAckPacket struct {
	ID uint16
}

// Type returns the packet type.
func (p *UnsubAckPacket) Type() PacketType {
	return PacketUnsubAck
}

// Encode encodes the UNSUBACK packet.
func (p *UnsubAckPacket) Encode() ([]byte, error) {
	return encodeAck(PacketUnsubAck, 0, p.ID), nil
}

// PingReqPacket represents a PINGREQ packet.
type PingReqPacket struct{}

// Type returns the packet type.
func (p *PingReqPacket) Type() PacketType {
	return PacketPingReq
}

// Encode encodes the PINGREQ packet.
func (p *PingReqPacket) Encode() ([]byte, error) {
	header := &FixedHeader{Type: PacketPingReq}
	return header.Encode(), nil
}

// PingRespPacket represents a PINGRESP packet.
type PingRespPacket struct{}

// Type returns the packet type.
func (p *PingRespPacket) Type() PacketType {
	return PacketPingResp
}

// Encode encodes the PINGRESP packet.
func (p *PingRespPacket) Encode() ([]byte, error) {
	header := &FixedHeader{Type: PacketPingResp}
	return header.Encode(), nil
}

// DisconnectPacket represents a DISCONNECT packet.
type DisconnectPacket struct{}

// Type returns the packet type.
func (p *DisconnectPacket) Type() PacketType {
	return PacketDisconnect
}

// Encode encodes the DISCONNECT packet.
func (p *DisconnectPacket) Encode() ([]byte, error) {
	header := &FixedHeader{Type: PacketDisconnect}
	return header.Encode(), nil
}

// decodePacket decodes one inbound packet body.
func decodePacket(packetType PacketType, flags byte, body []byte) (Packet, error) {
	r := bytes.NewReader(body)

	switch packetType {
	case PacketConnAck:
		return decodeConnAck(r)
	case PacketPublish:
		return decodePublish(r, flags, body)
	case PacketPubAck:
		id, err := decodePacketID(r)
		if err != nil {
			return nil, err
		}
		return &PubAckPacket{ID: id}, nil
	case PacketPubRec:
		id, err := decodePacketID(r)
		if err != nil {
			return nil, err
		}
		return &PubRecPacket{ID: id}, nil
	case PacketPubRel:
		id, err := decodePacketID(r)
		if err != nil {
			return nil, err
		}
		return &PubRelPacket{ID: id}, nil
	case PacketPubComp:
		id, err := decodePacketID(r)
		if err != nil {
			return nil, err
		}
		return &PubCompPacket{ID: id}, nil
	case PacketSubAck:
		return decodeSubAck(r)
	case PacketUnsubAck:
		id, err := decodePacketID(r)
		if err != nil {
			return nil, err
		}
		return &UnsubAckPacket{ID: id}, nil
	case PacketPingResp:
		return &PingRespPacket{}, nil
	default:
		return nil, ErrMalformedPacket
	}
}
