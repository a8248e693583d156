package mqttlink

import (
	"testing"

	"github.com/edgeterm/mqttlink/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherConnackSuccess(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	fake.emit(&engine.Event{Type: engine.EvtConnAck, Result: 0})

	n := <-sess.Notifications()
	assert.Equal(t, EvtConnAck, n.Type)
	assert.Equal(t, 0, n.Result)
	assert.True(t, sess.Connected())
}

func TestDispatcherConnackFailureClearsConnected(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	fake.emit(&engine.Event{Type: engine.EvtConnAck, Result: int(engine.NotAuthorized)})

	n := <-sess.Notifications()
	assert.Equal(t, EvtConnAck, n.Type)
	assert.Equal(t, int(engine.NotAuthorized), n.Result)
	assert.False(t, sess.Connected())
}

func TestDispatcherMessageDelivery(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	fake.emit(&engine.Event{
		Type: engine.EvtPublish,
		Publish: engine.NewInboundPublish(
			"sensor/temp", engine.QoS1, 3, true, false, []byte("23.5")),
	})

	n := <-sess.Notifications()
	require.Equal(t, EvtPublish, n.Type)
	require.NotNil(t, n.Message)
	assert.Equal(t, "sensor/temp", n.Message.Topic)
	assert.Equal(t, []byte("23.5"), n.Message.Payload)
	assert.Equal(t, engine.QoS1, n.Message.QoS)
	assert.True(t, n.Message.Retain)
	assert.NoError(t, n.Err)
}

func TestDispatcherMessageOwnsPayload(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	buf := []byte("original")
	fake.emit(&engine.Event{
		Type:    engine.EvtPublish,
		Publish: engine.NewInboundPublish("t", engine.QoS0, 0, false, false, buf),
	})

	// Reusing the receive buffer must not corrupt the delivered message.
	copy(buf, "clobber!")

	n := <-sess.Notifications()
	require.NotNil(t, n.Message)
	assert.Equal(t, []byte("original"), n.Message.Payload)
}

func TestDispatcherMessageTooLarge(t *testing.T) {
	sess, fake := newTestSession(t, WithPayloadBufferSize(4))
	connectSession(t, sess)

	fake.emit(&engine.Event{
		Type:    engine.EvtPublish,
		Publish: engine.NewInboundPublish("t", engine.QoS0, 0, false, false, []byte("too large")),
	})

	n := <-sess.Notifications()
	assert.Equal(t, EvtPublish, n.Type)
	assert.Equal(t, localFailure, n.Result)
	assert.ErrorIs(t, n.Err, ErrPayloadTooLarge)
	assert.Nil(t, n.Message)

	// The session survives the oversized message.
	assert.True(t, sess.Connected())
}

func TestDispatcherQoS2Receive(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	fake.emit(&engine.Event{Type: engine.EvtPubRec, ID: 7})

	n := <-sess.Notifications()
	assert.Equal(t, EvtPubRec, n.Type)
	assert.Equal(t, []uint16{7}, fake.releases)

	fake.emit(&engine.Event{Type: engine.EvtPubRel, ID: 9})

	n = <-sess.Notifications()
	assert.Equal(t, EvtPubRel, n.Type)
	assert.Equal(t, []uint16{9}, fake.completes)
}

func TestDispatcherQoS2FailedPhaseNotAdvanced(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	fake.emit(&engine.Event{Type: engine.EvtPubRec, ID: 7, Result: -1})
	fake.emit(&engine.Event{Type: engine.EvtPubRel, ID: 9, Result: -1})

	<-sess.Notifications()
	<-sess.Notifications()

	assert.Empty(t, fake.releases)
	assert.Empty(t, fake.completes)
}

func TestDispatcherOneNotificationPerEvent(t *testing.T) {
	sess, fake := newTestSession(t)
	connectSession(t, sess)

	events := []*engine.Event{
		{Type: engine.EvtPubAck, ID: 1},
		{Type: engine.EvtPubComp, ID: 2},
		{Type: engine.EvtSubAck, ID: 3},
		{Type: engine.EvtUnsubAck, ID: 4},
		{Type: engine.EvtPingResp},
	}
	for _, evt := range events {
		fake.emit(evt)
	}

	for _, evt := range events {
		n := <-sess.Notifications()
		assert.Equal(t, evt.Type, n.Type)
		assert.Equal(t, 0, n.Result)
	}
	assert.Empty(t, sess.Notifications())
}

func TestDispatcherDropsWhenConsumerLags(t *testing.T) {
	sess, fake := newTestSession(t, WithNotifyBuffer(1))
	connectSession(t, sess)

	// No consumer: only the first notification fits, the rest drop
	// without blocking the dispatcher.
	for i := 0; i < 3; i++ {
		fake.emit(&engine.Event{Type: engine.EvtPingResp})
	}

	assert.Len(t, sess.Notifications(), 1)
}
