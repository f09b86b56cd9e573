// Package host implements the host end of the L0 protocol.
package host

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

// consoleEnd is the text of the last console packet of a response.
const consoleEnd = "\r"

// Client provides host side operations over Link.
// At most one console request and one telemetry request are in flight.
type Client struct {
	link *comm.Link

	consoleLock sync.Mutex
	dataLock    sync.Mutex

	lock      sync.Mutex
	consoleCh chan string
	dataCh    chan *comm.Telemetry
	text      strings.Builder
	outputCh  chan string

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewClient creates client over a byte stream.
func NewClient(rw io.ReadWriter) *Client {
	c := &Client{
		link:     comm.NewLink(rw),
		outputCh: make(chan string, 16),
		closeCh:  make(chan struct{}),
	}
	c.link.Handler = c
	return c
}

// Link gets the wrapped Link.
func (c *Client) Link() *comm.Link {
	return c.link
}

// Output retrieves console responses nobody waits for.
func (c *Client) Output() <-chan string {
	return c.outputCh
}

func (c *Client) send(pkt *comm.Packet) error {
	select {
	case <-c.closeCh:
		return comm.ErrClosed
	default:
	}
	return c.link.Send(pkt)
}

// Connect announces the host.
func (c *Client) Connect() error {
	return c.send(&comm.Packet{Type: comm.TypeConnect})
}

// Override enables or disables set-points from the host.
func (c *Client) Override(en bool) error {
	typ := comm.TypeUSBOverrideEnd
	if en {
		typ = comm.TypeUSBOverrideStart
	}
	return c.send(&comm.Packet{Type: typ})
}

// SetDuty sends a duty cycle set-point in [-1, 1].
func (c *Client) SetDuty(duty float64) error {
	return c.sendScaled(comm.TypeSetDutyCycle, duty, comm.DutyScale)
}

// SetCurrent sends a current set-point in amps.
func (c *Client) SetCurrent(amps float64) error {
	return c.sendScaled(comm.TypeSetCurrent, amps, comm.CurrentScale)
}

func (c *Client) sendScaled(typ comm.PacketType, v, scale float64) error {
	body, err := comm.EncodeScaled(v, scale)
	if err != nil {
		return err
	}
	return c.send(&comm.Packet{Type: typ, Body: body})
}

// Telemetry requests and waits for a telemetry reply.
func (c *Client) Telemetry(ctx context.Context) (*comm.Telemetry, error) {
	c.dataLock.Lock()
	defer c.dataLock.Unlock()
	ch := make(chan *comm.Telemetry, 1)
	c.lock.Lock()
	c.dataCh = ch
	c.lock.Unlock()
	defer c.clearDataCh()
	if err := c.send(&comm.Packet{Type: comm.TypeGetData}); err != nil {
		return nil, err
	}
	select {
	case t := <-ch:
		return t, nil
	case <-c.closeCh:
		return nil, comm.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) clearDataCh() {
	c.lock.Lock()
	c.dataCh = nil
	c.lock.Unlock()
}

// Console sends a command line and waits for the complete response.
// The response excludes the trailing "\r\n" line.
//
// Responses carry no request identity and are matched by arrival order
// only. Partial text received before the request is discarded, but a
// complete response still in flight from an earlier canceled request
// is taken as the answer to this one.
func (c *Client) Console(ctx context.Context, line string) (string, error) {
	c.consoleLock.Lock()
	defer c.consoleLock.Unlock()
	ch := make(chan string, 1)
	c.lock.Lock()
	if c.text.Len() > 0 {
		glog.V(2).Infof("console: discard partial output %q", c.text.String())
		c.text.Reset()
	}
	c.consoleCh = ch
	c.lock.Unlock()
	defer c.clearConsoleCh()
	if err := c.send(&comm.Packet{Type: comm.TypeConsole, Body: []byte(line)}); err != nil {
		return "", err
	}
	select {
	case text := <-ch:
		return text, nil
	case <-c.closeCh:
		return "", comm.ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) clearConsoleCh() {
	c.lock.Lock()
	c.consoleCh = nil
	c.lock.Unlock()
}

// HandlePacket implements PacketHandler.
func (c *Client) HandlePacket(ctx context.Context, pkt *comm.Packet) {
	switch pkt.Type {
	case comm.TypeConsole:
		c.handleConsole(string(pkt.Body))
	case comm.TypeGetData:
		var t comm.Telemetry
		if err := t.UnmarshalBinary(pkt.Body); err != nil {
			glog.V(2).Infof("telemetry dropped: %v", err)
			return
		}
		c.lock.Lock()
		ch := c.dataCh
		c.dataCh = nil
		c.lock.Unlock()
		if ch != nil {
			ch <- &t
		}
	default:
		glog.V(2).Infof("unexpected packet %s", pkt.Type)
	}
}

func (c *Client) handleConsole(text string) {
	c.lock.Lock()
	if text != consoleEnd {
		// the terminator consumed by framing is part of the text.
		c.text.WriteString(text)
		c.text.WriteByte('\n')
		c.lock.Unlock()
		return
	}
	resp := c.text.String()
	c.text.Reset()
	ch := c.consoleCh
	c.consoleCh = nil
	c.lock.Unlock()
	if ch != nil {
		ch <- resp
		return
	}
	select {
	case c.outputCh <- resp:
	default:
		glog.V(2).Infof("console output dropped: %q", resp)
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.closeCh) })
}

// Close implements io.Closer. Pending and later requests fail with
// comm.ErrClosed.
func (c *Client) Close() error {
	c.shutdown()
	if closer, ok := c.link.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Run wraps Link.Run to implement Runnable. The client is closed
// when the link stops.
func (c *Client) Run(ctx context.Context) error {
	defer c.shutdown()
	return c.link.Run(ctx)
}
