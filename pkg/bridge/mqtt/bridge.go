package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

// Topics relative to <prefix><device-id>/.
const (
	TopicMeta       = "meta"
	TopicTelemetry  = "telemetry"
	TopicConsoleIn  = "console/in"
	TopicConsoleOut = "console/out"
)

// Default settings.
const (
	DefaultInterval       = 100 * time.Millisecond
	DefaultRequestTimeout = 2 * time.Second
)

// PubSub is the part of Queue used by Bridge.
type PubSub interface {
	Connect(ctx context.Context) error
	Close() error
	Sub(pattern string, handler Handler) *Subscription
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// DeviceClient is the host side of the link.
type DeviceClient interface {
	Telemetry(ctx context.Context) (*comm.Telemetry, error)
	Console(ctx context.Context, line string) (string, error)
	Output() <-chan string
}

// Meta is published retained on <device-id>/meta while the bridge runs.
type Meta struct {
	ID        string `json:"id"`
	Telemetry string `json:"telemetry"`
	Interval  string `json:"interval"`
}

// TelemetryEncoding names the encoding of telemetry messages.
const TelemetryEncoding = "proto:google.protobuf.Struct"

// Bridge publishes device telemetry and console output to MQTT and
// forwards console commands from MQTT.
type Bridge struct {
	Queue          PubSub
	Client         DeviceClient
	DeviceID       string
	Interval       time.Duration
	RequestTimeout time.Duration

	consoleCh chan string
}

// NewBridge creates a Bridge connecting to brokerURL.
func NewBridge(brokerURL, deviceID string, client DeviceClient) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+deviceID+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("motorlink:" + deviceID)
	}
	return &Bridge{
		Queue:    NewQueue(opts, topicPrefix),
		Client:   client,
		DeviceID: deviceID,
	}, nil
}

func (b *Bridge) topic(name string) string {
	return b.DeviceID + "/" + name
}

func (b *Bridge) timeout() time.Duration {
	if b.RequestTimeout > 0 {
		return b.RequestTimeout
	}
	return DefaultRequestTimeout
}

func (b *Bridge) interval() time.Duration {
	if b.Interval > 0 {
		return b.Interval
	}
	return DefaultInterval
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Queue.Connect(ctx); err != nil {
		return err
	}
	defer b.Queue.Close()

	meta, err := json.Marshal(&Meta{
		ID:        b.DeviceID,
		Telemetry: TelemetryEncoding,
		Interval:  b.interval().String(),
	})
	if err != nil {
		return err
	}
	b.Queue.PubWith(b.topic(TopicMeta), meta, 1, true)
	defer func() {
		b.Queue.PubWith(b.topic(TopicMeta), nil, 1, true).WaitTimeout(time.Second)
	}()

	b.consoleCh = make(chan string, 16)
	b.Queue.Sub(b.topic(TopicConsoleIn), b.handleConsoleIn)
	glog.Infof("bridge %s started", b.DeviceID)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return b.telemetryLoop(ctx) })
	group.Go(func() error { return b.consoleLoop(ctx) })
	group.Go(func() error { return b.outputLoop(ctx) })
	err = group.Wait()
	glog.Infof("bridge %s stopped: %v", b.DeviceID, err)
	return err
}

func (b *Bridge) handleConsoleIn(topic string, payload []byte) {
	select {
	case b.consoleCh <- string(payload):
	default:
		glog.Warningf("console command dropped: %q", payload)
	}
}

func (b *Bridge) telemetryLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		reqCtx, cancel := context.WithTimeout(ctx, b.timeout())
		data, err := b.Client.Telemetry(reqCtx)
		cancel()
		if err != nil {
			glog.V(2).Infof("telemetry error: %v", err)
			continue
		}
		payload, err := EncodeTelemetry(data)
		if err != nil {
			return err
		}
		b.Queue.PubWith(b.topic(TopicTelemetry), payload, 0, false)
	}
}

func (b *Bridge) consoleLoop(ctx context.Context) error {
	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line = <-b.consoleCh:
		}
		reqCtx, cancel := context.WithTimeout(ctx, b.timeout())
		resp, err := b.Client.Console(reqCtx, line)
		cancel()
		if err != nil {
			glog.Warningf("console %q error: %v", line, err)
			continue
		}
		b.Queue.PubWith(b.topic(TopicConsoleOut), []byte(resp), 1, false)
	}
}

func (b *Bridge) outputLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text := <-b.Client.Output():
			b.Queue.PubWith(b.topic(TopicConsoleOut), []byte(text), 1, false)
		}
	}
}
