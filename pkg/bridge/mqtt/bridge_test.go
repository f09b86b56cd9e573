package mqtt

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/motorlink/pkg/l0/comm"
	"github.com/robotalks/motorlink/pkg/l0/device"
	"github.com/robotalks/motorlink/pkg/l0/host"
	"github.com/robotalks/motorlink/pkg/sim"
)

var _ PubSub = &Queue{}

type published struct {
	topic   string
	payload []byte
	retain  bool
}

type fakePubSub struct {
	lock     sync.Mutex
	handlers map[string]Handler
	pubCh    chan published
	closed   bool
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{handlers: make(map[string]Handler), pubCh: make(chan published, 1024)}
}

func (f *fakePubSub) Connect(ctx context.Context) error { return nil }

func (f *fakePubSub) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	return nil
}

func (f *fakePubSub) Sub(pattern string, handler Handler) *Subscription {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.handlers[pattern] = handler
	return &Subscription{pattern: pattern, handler: handler, Token: &paho.DummyToken{}}
}

func (f *fakePubSub) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	select {
	case f.pubCh <- published{topic: topic, payload: payload, retain: retain}:
	default:
	}
	return &paho.DummyToken{}
}

func (f *fakePubSub) handler(pattern string) Handler {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.handlers[pattern]
}

func (f *fakePubSub) next(t *testing.T, topic string) published {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p := <-f.pubCh:
			if p.topic == topic {
				return p
			}
		case <-timeout:
			t.Fatalf("nothing published on %s", topic)
		}
	}
}

func TestBridge(t *testing.T) {
	hostConn, devConn := net.Pipe()
	defer hostConn.Close()
	defer devConn.Close()
	link := comm.NewLink(devConn)
	router := device.NewRouter(sim.NewMotorConfig().NewMotor(), link)
	link.Handler = router
	client := host.NewClient(hostConn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go link.Run(ctx)
	go client.Run(ctx)

	pubsub := newFakePubSub()
	b := &Bridge{
		Queue:    pubsub,
		Client:   client,
		DeviceID: "m1",
		Interval: 10 * time.Millisecond,
	}
	bridgeCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(bridgeCtx) }()

	p := pubsub.next(t, "m1/meta")
	require.True(t, p.retain)
	var meta Meta
	require.NoError(t, json.Unmarshal(p.payload, &meta))
	require.Equal(t, "m1", meta.ID)
	require.Equal(t, TelemetryEncoding, meta.Telemetry)

	p = pubsub.next(t, "m1/telemetry")
	s, err := DecodeTelemetry(p.payload)
	require.NoError(t, err)
	data, err := TelemetryFromStruct(s)
	require.NoError(t, err)
	require.Equal(t, float32(24), data.Voltage)

	h := pubsub.handler("m1/console/in")
	require.NotNil(t, h)
	h("m1/console/in", []byte("usb_override_set"))
	p = pubsub.next(t, "m1/console/out")
	require.Equal(t, "Enabling USB control\n", string(p.payload))
	require.True(t, router.Session.Override())

	router.Console.Process("ping")
	p = pubsub.next(t, "m1/console/out")
	require.Equal(t, "pong\n", string(p.payload))

	stop()
	require.Equal(t, context.Canceled, <-errCh)
	p = pubsub.next(t, "m1/meta")
	require.Empty(t, p.payload)
	require.True(t, pubsub.closed)
}
