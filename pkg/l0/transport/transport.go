// Package transport opens the byte streams carrying L0 frames.
//
// Supported URLs:
//
//	tcp://host:port
//	ws://host:port/path
//	file:///dev/ttyACM0?baud=115200, or simply /dev/ttyACM0
//
// Serial ports are opened raw, 8N1, at DefaultBaudRate unless the
// baud parameter says otherwise.
package transport

import (
	"context"
	"io"
	"net"
	"net/url"

	"github.com/pkg/errors"
)

// Schemes.
const (
	SchemeTCP       = "tcp"
	SchemeWebSocket = "ws"
	SchemeFile      = "file"
)

// DefaultOrigin is sent by websocket clients.
const DefaultOrigin = "http://localhost/"

// Listener accepts incoming streams.
type Listener interface {
	Accept(ctx context.Context) (io.ReadWriteCloser, error)
	Addr() net.Addr
	Close() error
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid transport URL %q", rawURL)
	}
	return u, nil
}

// Open connects to a stream.
func Open(rawURL string) (io.ReadWriteCloser, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case SchemeTCP:
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", u.Host)
		}
		return conn, nil
	case SchemeWebSocket:
		return dialWebSocket(u)
	case SchemeFile, "":
		return openSerial(u)
	default:
		return nil, errors.Errorf("unknown transport scheme %q", u.Scheme)
	}
}

// Listen creates a Listener.
func Listen(rawURL string) (Listener, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case SchemeTCP:
		ln, err := net.Listen("tcp", u.Host)
		if err != nil {
			return nil, errors.Wrapf(err, "listen %s", u.Host)
		}
		return &tcpListener{ln: ln}, nil
	case SchemeWebSocket:
		return listenWebSocket(u)
	default:
		return nil, errors.Errorf("transport scheme %q can't listen", u.Scheme)
	}
}

type tcpListener struct {
	ln net.Listener
}

func (l *tcpListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		resCh <- result{conn: conn, err: err}
	}()
	select {
	case res := <-resCh:
		return res.conn, res.err
	case <-ctx.Done():
		l.ln.Close()
		if res := <-resCh; res.conn != nil {
			res.conn.Close()
		}
		return nil, ctx.Err()
	}
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}
