// Package wsadapter implements a socksio.Adapter over a WebSocket
// connection, letting a SOCKS engine run tunneled inside a single
// binary-message WebSocket stream instead of a raw TCP socket. This is
// the implementation the proxy/src/websocket.go upgrader was stubbed
// out for.
package wsadapter

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/latency-space/socksio/socksio"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Adapter drives a socksio.StateMachine over one WebSocket connection,
// dialing a TCP upstream on Connect and relaying binary frames in both
// directions during Passthrough.
type Adapter struct {
	conn   *websocket.Conn
	dialer net.Dialer

	upstream net.Conn
}

func New(conn *websocket.Conn, dialTimeout time.Duration) *Adapter {
	return &Adapter{conn: conn, dialer: net.Dialer{Timeout: dialTimeout}}
}

func (a *Adapter) Read(ctx context.Context) ([]byte, error) {
	msgType, data, err := a.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType != websocket.BinaryMessage {
		return nil, socksio.NewProtocolError("websocket transport: expected binary message, got type %d", msgType)
	}
	return data, nil
}

func (a *Adapter) Write(ctx context.Context, data []byte) error {
	return a.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (a *Adapter) Connect(ctx context.Context, host string, port uint16) error {
	conn, err := a.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return err
	}
	a.upstream = conn
	return nil
}

// Passthrough relays upstream TCP bytes as WebSocket binary frames, and
// incoming binary frames back onto the upstream TCP connection, until
// either side closes or ctx is cancelled.
func (a *Adapter) Passthrough(ctx context.Context) error {
	defer a.upstream.Close()

	errc := make(chan error, 2)
	go a.relayUpstreamToWS(errc)
	go a.relayWSToUpstream(errc)

	var err error
	pending := 2
	select {
	case err = <-errc:
		pending--
	case <-ctx.Done():
		err = ctx.Err()
	}
	a.upstream.Close()
	a.conn.Close()
	for ; pending > 0; pending-- {
		<-errc
	}
	return err
}

func (a *Adapter) relayUpstreamToWS(errc chan<- error) {
	buf := make([]byte, 32*1024)
	for {
		n, err := a.upstream.Read(buf)
		if n > 0 {
			if werr := a.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				errc <- werr
				return
			}
		}
		if err != nil {
			errc <- err
			return
		}
	}
}

func (a *Adapter) relayWSToUpstream(errc chan<- error) {
	for {
		msgType, data, err := a.conn.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if _, err := a.upstream.Write(data); err != nil {
			errc <- err
			return
		}
	}
}
