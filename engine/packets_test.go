package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectPacketEncode(t *testing.T) {
	p := &ConnectPacket{
		CleanSession: true,
		KeepAlive:    60,
		ClientID:     "c",
	}

	data, err := p.Encode()
	require.NoError(t, err)

	expected := []byte{
		0x10, 13,
		0x00, 0x04, 'M', 'Q', 'T', 'T',
		0x04,       // protocol level
		0x02,       // clean session
		0x00, 0x3C, // keep alive 60
		0x00, 0x01, 'c',
	}
	assert.Equal(t, expected, data)
}

func TestConnectPacketFlags(t *testing.T) {
	tests := []struct {
		name   string
		packet ConnectPacket
		flags  byte
	}{
		{
			name:   "clean session only",
			packet: ConnectPacket{CleanSession: true},
			flags:  0x02,
		},
		{
			name: "username without password",
			packet: ConnectPacket{
				UsernameFlag: true,
				Username:     "user",
			},
			flags: 0x80,
		},
		{
			name: "username and password",
			packet: ConnectPacket{
				CleanSession: true,
				UsernameFlag: true,
				Username:     "user",
				PasswordFlag: true,
				Password:     []byte("pass"),
			},
			flags: 0xC2,
		},
		{
			name: "will with QoS 1 and retain",
			packet: ConnectPacket{
				WillFlag:   true,
				WillQoS:    QoS1,
				WillRetain: true,
				WillTopic:  "last/will",
			},
			flags: 0x2C,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.packet.Encode()
			require.NoError(t, err)

			// Flags byte follows the 7-byte protocol name/level prefix
			// after the 2-byte fixed header.
			assert.Equal(t, tt.flags, data[9])
		})
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []int{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 268435455}

	for _, v := range values {
		encoded := encodeVarInt(v)
		decoded, n, err := decodeVarInt(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
		assert.Equal(t, len(encoded), n)
	}
}

func TestVarIntBoundaryLengths(t *testing.T) {
	assert.Len(t, encodeVarInt(127), 1)
	assert.Len(t, encodeVarInt(128), 2)
	assert.Len(t, encodeVarInt(16383), 2)
	assert.Len(t, encodeVarInt(16384), 3)
	assert.Len(t, encodeVarInt(268435455), 4)
}

func TestVarIntMalformed(t *testing.T) {
	// Five continuation bytes exceed the four-byte limit.
	_, _, err := decodeVarInt(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80}))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestPublishPacketRoundTrip(t *testing.T) {
	p := &PublishPacket{
		Topic:   "sensor/temp",
		Payload: []byte("23.5"),
		QoS:     QoS1,
		Retain:  true,
		ID:      42,
	}

	data, err := p.Encode()
	require.NoError(t, err)

	// Fixed header: type 3, DUP=0, QoS=1, RETAIN=1.
	assert.Equal(t, byte(0x33), data[0])

	remaining, n, err := decodeVarInt(bytes.NewReader(data[1:]))
	require.NoError(t, err)
	body := data[1+n:]
	require.Len(t, body, remaining)

	decoded, err := decodePacket(PacketPublish, data[0]&0x0F, body)
	require.NoError(t, err)

	got := decoded.(*PublishPacket)
	assert.Equal(t, p.Topic, got.Topic)
	assert.Equal(t, p.Payload, got.Payload)
	assert.Equal(t, p.QoS, got.QoS)
	assert.Equal(t, p.Retain, got.Retain)
	assert.False(t, got.Duplicate)
	assert.Equal(t, p.ID, got.ID)
}

func TestPublishPacketQoS0NoID(t *testing.T) {
	p := &PublishPacket{Topic: "t", Payload: []byte("x")}

	data, err := p.Encode()
	require.NoError(t, err)

	// topic (2+1) + payload (1), no packet id.
	assert.Equal(t, byte(4), data[1])
}

func TestPublishPacketEmptyTopic(t *testing.T) {
	p := &PublishPacket{Payload: []byte("x")}
	_, err := p.Encode()
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestPublishDecodeInvalidQoS(t *testing.T) {
	body := append(encodeString("t"), 'x')
	_, err := decodePacket(PacketPublish, 0x06, body) // QoS 3
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestSubscribePacketEncode(t *testing.T) {
	p := &SubscribePacket{ID: 7, Topic: "a/b", QoS: QoS2}

	data, err := p.Encode()
	require.NoError(t, err)

	expected := []byte{
		0x82, 8,
		0x00, 0x07,
		0x00, 0x03, 'a', '/', 'b',
		0x02,
	}
	assert.Equal(t, expected, data)
}

func TestSubscribePacketEmptyTopic(t *testing.T) {
	p := &SubscribePacket{ID: 1}
	_, err := p.Encode()
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestUnsubscribePacketEncode(t *testing.T) {
	p := &UnsubscribePacket{ID: 9, Topic: "a/b"}

	data, err := p.Encode()
	require.NoError(t, err)

	expected := []byte{
		0xA2, 7,
		0x00, 0x09,
		0x00, 0x03, 'a', '/', 'b',
	}
	assert.Equal(t, expected, data)
}

func TestConnAckDecode(t *testing.T) {
	decoded, err := decodePacket(PacketConnAck, 0, []byte{0x01, 0x05})
	require.NoError(t, err)

	p := decoded.(*ConnAckPacket)
	assert.True(t, p.SessionPresent)
	assert.Equal(t, NotAuthorized, p.ReturnCode)
}

func TestSubAckDecode(t *testing.T) {
	decoded, err := decodePacket(PacketSubAck, 0, []byte{0x00, 0x07, 0x80})
	require.NoError(t, err)

	p := decoded.(*SubAckPacket)
	assert.Equal(t, uint16(7), p.ID)
	assert.Equal(t, []byte{SubackFailure}, p.ReturnCodes)
}

func TestAckPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
		ptype  PacketType
		flags  byte
	}{
		{"puback", &PubAckPacket{ID: 10}, PacketPubAck, 0},
		{"pubrec", &PubRecPacket{ID: 11}, PacketPubRec, 0},
		{"pubrel", &PubRelPacket{ID: 12}, PacketPubRel, 0x02},
		{"pubcomp", &PubCompPacket{ID: 13}, PacketPubComp, 0},
		{"unsuback", &UnsubAckPacket{ID: 14}, PacketUnsubAck, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.packet.Encode()
			require.NoError(t, err)
			require.Len(t, data, 4)

			assert.Equal(t, byte(tt.ptype)<<4|tt.flags, data[0])
			assert.Equal(t, byte(2), data[1])

			decoded, err := decodePacket(tt.ptype, tt.flags, data[2:])
			require.NoError(t, err)
			assert.Equal(t, tt.ptype, decoded.Type())
		})
	}
}

func TestControlPacketsEncode(t *testing.T) {
	for _, p := range []Packet{&PingReqPacket{}, &PingRespPacket{}, &DisconnectPacket{}} {
		data, err := p.Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(p.Type()) << 4, 0x00}, data)
	}
}

func TestDecodeUnknownPacket(t *testing.T) {
	_, err := decodePacket(PacketType(15), 0, nil)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestReturnCodeToError(t *testing.T) {
	assert.NoError(t, ConnectionAccepted.ToError())
	assert.ErrorIs(t, BadUsernameOrPassword.ToError(), ErrBadUsernamePassword)
	assert.ErrorIs(t, NotAuthorized.ToError(), ErrNotAuthorized)
}
