package comm

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
)

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

// Link send/recv frames over a byte stream.
// Received bytes are parsed and dispatched one at a time on the
// goroutine calling Run, a handler blocks further parsing until it
// returns.
type Link struct {
	ReadWriter io.ReadWriter
	Handler    PacketHandler

	parser   Parser
	sendLock sync.Mutex
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{ReadWriter: rw}
}

// Parser exposes the frame parser for tuning before Run.
func (l *Link) Parser() *Parser {
	return &l.parser
}

// SendFrame writes payload prefixed by the start marker.
// The payload must already end with the terminator.
func (l *Link) SendFrame(payload []byte) error {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	_, err := l.ReadWriter.Write(EncodeFrame(payload))
	return err
}

// Send writes a complete packet.
func (l *Link) Send(pkt *Packet) error {
	if err := pkt.Validate(); err != nil {
		return err
	}
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	_, err := pkt.WriteTo(l.ReadWriter)
	return err
}

// Process consumes received bytes and dispatches completed frames.
func (l *Link) Process(ctx context.Context, data []byte) {
	for _, b := range data {
		pr := l.parser.Parse(b)
		if pr.Frame == nil {
			continue
		}
		pkt, ok := DecodePacket(pr.Frame)
		if !ok {
			glog.V(3).Info("empty frame dropped")
			continue
		}
		glog.V(4).Infof("RCV %s len=%d", pkt.Type, len(pkt.Body))
		if h := l.Handler; h != nil {
			h.HandlePacket(ctx, pkt)
		}
	}
}

// Run reads from ReadWriter until error or ctx is done.
func (l *Link) Run(ctx context.Context) error {
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			l.Process(ctx, data)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	buf := make([]byte, 256)
	for {
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case dataCh <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}
