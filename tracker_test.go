package mqttlink

import (
	"strings"
	"testing"

	"github.com/edgeterm/mqttlink/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDCounterSkipsZero(t *testing.T) {
	var c idCounter

	assert.Equal(t, uint16(1), c.next())
	assert.Equal(t, uint16(2), c.next())

	c.id = 65534
	assert.Equal(t, uint16(65535), c.next())
	// Wrap: zero is never a valid message id.
	assert.Equal(t, uint16(1), c.next())
}

func TestPublishValidation(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	tests := []struct {
		name   string
		topic  string
		qos    int
		retain int
	}{
		{"qos too high", "t", 3, 0},
		{"qos negative", "t", -1, 0},
		{"retain out of range", "t", 0, 2},
		{"empty topic", "", 0, 0},
		{"topic too long", strings.Repeat("x", MaxTopicLen+1), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sess.Publish(tt.topic, []byte("x"), tt.qos, tt.retain)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	// Nothing reached the engine.
	assert.Zero(t, fake.publishCount())
}

func TestPublishNotConnected(t *testing.T) {
	sess, _ := newTestSession(t)

	_, err := sess.Publish("t", []byte("x"), 0, 0)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, sess.Subscribe("t", 0), ErrNotConnected)
	assert.ErrorIs(t, sess.Unsubscribe("t"), ErrNotConnected)
}

func TestPublishSingleMessage(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	stream, err := sess.Publish("sensor/temp", []byte("23.5"), 1, 1)
	require.NoError(t, err)
	assert.Nil(t, stream)

	require.Len(t, fake.publishes, 1)
	p := fake.publishes[0]
	assert.Equal(t, "sensor/temp", p.topic)
	assert.Equal(t, []byte("23.5"), p.payload)
	assert.Equal(t, engine.QoS1, p.qos)
	assert.True(t, p.retain)
	assert.False(t, p.dup)
	assert.Equal(t, uint16(1), p.id)

	// Next publish gets the next id.
	_, err = sess.Publish("sensor/temp", []byte("24.0"), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), fake.publishes[1].id)
}

func TestPublishSubscribeIDsIndependent(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	_, err := sess.Publish("a", []byte("x"), 1, 0)
	require.NoError(t, err)
	require.NoError(t, sess.Subscribe("b", 0))

	assert.Equal(t, uint16(1), fake.publishes[0].id)
	assert.Equal(t, uint16(1), fake.subscribes[0].id)
}

func TestSubscribeUnsubscribeShareCounter(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	require.NoError(t, sess.Subscribe("a", 2))
	require.NoError(t, sess.Unsubscribe("a"))

	assert.Equal(t, uint16(1), fake.subscribes[0].id)
	assert.Equal(t, engine.QoS2, fake.subscribes[0].qos)
	assert.Equal(t, uint16(2), fake.unsubs[0].id)
}

func TestSubscribeValidation(t *testing.T) {
	sess, _ := newTestSession(t)
	connectSession(t, sess)

	assert.ErrorIs(t, sess.Subscribe("t", 3), ErrInvalidArgument)
	assert.ErrorIs(t, sess.Subscribe("", 0), ErrInvalidArgument)
	assert.ErrorIs(t, sess.Unsubscribe(""), ErrInvalidArgument)
}

func TestStreamPublish(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	stream, err := sess.Publish("logs", nil, 1, 0)
	require.NoError(t, err)
	require.NotNil(t, stream)

	// Nothing is sent until a chunk arrives.
	assert.Zero(t, fake.publishCount())

	require.NoError(t, stream.Send([]byte("line one")))
	require.NoError(t, stream.Send([]byte("line two")))

	require.Len(t, fake.publishes, 2)
	assert.Equal(t, "logs", fake.publishes[0].topic)
	assert.Equal(t, []byte("line one"), fake.publishes[0].payload)
	assert.Equal(t, engine.QoS1, fake.publishes[0].qos)
	// Chunks of one stream share the message id composed at open time.
	assert.Equal(t, fake.publishes[0].id, fake.publishes[1].id)

	stream.Exit()
	assert.ErrorIs(t, stream.Send([]byte("late")), ErrStreamClosed)
}

func TestStreamPublishSingleSlot(t *testing.T) {
	sess, _ := newTestSession(t)
	connectSession(t, sess)

	stream, err := sess.Publish("logs", nil, 0, 0)
	require.NoError(t, err)

	_, err = sess.Publish("other", nil, 0, 0)
	assert.ErrorIs(t, err, ErrStreamOpen)

	// Single-shot publishes are unaffected by an open stream.
	_, err = sess.Publish("other", []byte("x"), 0, 0)
	assert.NoError(t, err)

	stream.Exit()
	stream.Exit() // idempotent

	next, err := sess.Publish("logs", nil, 0, 0)
	require.NoError(t, err)
	next.Exit()
}
