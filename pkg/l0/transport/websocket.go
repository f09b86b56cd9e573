package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"
)

func dialWebSocket(u *url.URL) (io.ReadWriteCloser, error) {
	conn, err := websocket.Dial(u.String(), "", DefaultOrigin)
	if err != nil {
		return nil, errors.Wrapf(err, "websocket dial %s", u)
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// wsConn keeps the websocket handler alive until closed.
type wsConn struct {
	*websocket.Conn
	once   sync.Once
	doneCh chan struct{}
}

func (c *wsConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { close(c.doneCh) })
	return err
}

type wsListener struct {
	ln     net.Listener
	server *http.Server
	connCh chan *wsConn
	doneCh chan struct{}
	once   sync.Once
}

func listenWebSocket(u *url.URL) (Listener, error) {
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", u.Host)
	}
	l := &wsListener{
		ln:     ln,
		connCh: make(chan *wsConn),
		doneCh: make(chan struct{}),
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(l.handle))
	l.server = &http.Server{Handler: mux}
	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Errorf("websocket server %s error: %v", u.Host, err)
		}
	}()
	return l, nil
}

func (l *wsListener) handle(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	c := &wsConn{Conn: conn, doneCh: make(chan struct{})}
	select {
	case l.connCh <- c:
	case <-l.doneCh:
		return
	}
	glog.V(2).Infof("websocket accepted from %s", conn.Request().RemoteAddr)
	select {
	case <-c.doneCh:
	case <-l.doneCh:
	}
}

func (l *wsListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	select {
	case c := <-l.connCh:
		return c, nil
	case <-l.doneCh:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *wsListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *wsListener) Close() error {
	l.once.Do(func() { close(l.doneCh) })
	return l.server.Close()
}
