package mqttlink

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/edgeterm/mqttlink/engine"
	"github.com/stretchr/testify/require"
)

type fakePublish struct {
	topic   string
	payload []byte
	qos     engine.QoS
	retain  bool
	dup     bool
	id      uint16
}

type fakeRequest struct {
	topic string
	qos   engine.QoS
	id    uint16
}

// fakeEngine is a scriptable protocol engine. Input blocks until either a
// scripted error arrives or the deadline elapses, mimicking the real
// engine's poll behavior on a quiet wire.
type fakeEngine struct {
	cfg engine.Config

	connectErr    error
	publishErr    error
	disconnectErr error

	inputErrs chan error

	mu          sync.Mutex
	publishes   []fakePublish
	subscribes  []fakeRequest
	unsubs      []fakeRequest
	releases    []uint16
	completes   []uint16
	lives       int
	disconnects int
	aborts      int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{inputErrs: make(chan error, 4)}
}

func (f *fakeEngine) Connect(ctx context.Context) error {
	return f.connectErr
}

func (f *fakeEngine) Disconnect() error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()

	// The real engine raises the disconnect event synchronously.
	f.cfg.Handler(&engine.Event{Type: engine.EvtDisconnect})
	return f.disconnectErr
}

func (f *fakeEngine) Abort() {
	f.mu.Lock()
	f.aborts++
	f.mu.Unlock()
}

func (f *fakeEngine) Publish(topic string, payload []byte, qos engine.QoS, retain, dup bool, id uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}
	f.publishes = append(f.publishes, fakePublish{
		topic:   topic,
		payload: payload,
		qos:     qos,
		retain:  retain,
		dup:     dup,
		id:      id,
	})
	return nil
}

func (f *fakeEngine) Subscribe(topic string, qos engine.QoS, id uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, fakeRequest{topic: topic, qos: qos, id: id})
	return nil
}

func (f *fakeEngine) Unsubscribe(topic string, id uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, fakeRequest{topic: topic, id: id})
	return nil
}

func (f *fakeEngine) Release(id uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, id)
	return nil
}

func (f *fakeEngine) Complete(id uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, id)
	return nil
}

func (f *fakeEngine) Live() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lives++
	return nil
}

func (f *fakeEngine) KeepAliveTimeLeft() time.Duration {
	return 5 * time.Millisecond
}

func (f *fakeEngine) Input(deadline time.Time) error {
	select {
	case err := <-f.inputErrs:
		return err
	case <-time.After(time.Until(deadline)):
		return engine.ErrInputTimeout
	}
}

// emit delivers an event the way the real engine would, through the
// configured handler.
func (f *fakeEngine) emit(evt *engine.Event) {
	f.cfg.Handler(evt)
}

func (f *fakeEngine) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.publishes)
}

func (f *fakeEngine) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lives
}

func (f *fakeEngine) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

// fakeResolver answers lookups from a fixed address list.
type fakeResolver struct {
	mu      sync.Mutex
	network string
	host    string
	addrs   []netip.Addr
	err     error
}

func (r *fakeResolver) LookupNetIP(_ context.Context, network, host string) ([]netip.Addr, error) {
	r.mu.Lock()
	r.network = network
	r.host = host
	r.mu.Unlock()
	return r.addrs, r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession builds a session wired to a fake engine.
func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeEngine) {
	t.Helper()

	fake := newFakeEngine()
	base := []Option{
		WithLogger(testLogger()),
		WithEngineFactory(func(cfg engine.Config) Engine {
			fake.cfg = cfg
			return fake
		}),
	}
	sess := New(append(base, opts...)...)
	return sess, fake
}

// connectSession performs a connect against the fake engine and cleans the
// session up after the test.
func connectSession(t *testing.T, sess *Session) {
	t.Helper()

	err := sess.Connect(context.Background(), ConnectRequest{
		ClientID: "dev01",
		Host:     "127.0.0.1",
		Port:     1883,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sess.Connected() {
			sess.Disconnect()
		}
	})
}
