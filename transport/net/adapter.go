// Package net provides a socksio.Adapter backed by a real net.Conn, the
// external transport collaborator a dispatcher is driven against once a
// connection has been accepted.
package net

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	relayBufferSize = 32 * 1024
	pollInterval    = 500 * time.Millisecond
)

// Adapter drives a socksio.StateMachine over a single accepted client
// connection, dialing the upstream target on Connect and relaying bytes
// in both directions once the engine asks for Passthrough.
type Adapter struct {
	client net.Conn
	dialer net.Dialer

	upstream net.Conn

	// OnBytes, when set, is called with ("in"|"out", n) for every chunk
	// relayed during Passthrough, letting a caller wire byte counters
	// without the adapter depending on a particular metrics backend.
	OnBytes func(direction string, n int)
}

// New wraps an already-accepted client connection. dialTimeout bounds how
// long Connect waits to reach the requested upstream; zero means no
// timeout is applied beyond ctx's own deadline.
func New(client net.Conn, dialTimeout time.Duration) *Adapter {
	return &Adapter{client: client, dialer: net.Dialer{Timeout: dialTimeout}}
}

func (a *Adapter) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := a.client.Read(buf)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	return buf[:n], nil
}

func (a *Adapter) Write(ctx context.Context, data []byte) error {
	_, err := a.client.Write(data)
	return err
}

func (a *Adapter) Connect(ctx context.Context, host string, port uint16) error {
	conn, err := a.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return err
	}
	a.upstream = conn
	return nil
}

// Passthrough relays bytes between the client and the dialed upstream
// until either side closes, an error occurs, or ctx is cancelled. It
// polls both connections with a read deadline so cancellation is timely
// without requiring a SetReadDeadline call per byte, mirroring the
// client<->target relay goroutines of a conventional SOCKS proxy loop.
func (a *Adapter) Passthrough(ctx context.Context) error {
	defer a.upstream.Close()

	errc := make(chan error, 2)
	go relay(ctx, a.upstream, a.client, errc, a.onBytes("in"))
	go relay(ctx, a.client, a.upstream, errc, a.onBytes("out"))

	err := <-errc
	a.client.Close()
	a.upstream.Close()
	<-errc
	return err
}

func (a *Adapter) onBytes(direction string) func(int) {
	if a.OnBytes == nil {
		return func(int) {}
	}
	return func(n int) { a.OnBytes(direction, n) }
}

func relay(ctx context.Context, dst, src net.Conn, errc chan<- error, track func(int)) {
	buf := make([]byte, relayBufferSize)
	for {
		select {
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		default:
		}
		if deadliner, ok := src.(interface{ SetReadDeadline(time.Time) error }); ok {
			_ = deadliner.SetReadDeadline(time.Now().Add(pollInterval))
		}
		n, err := src.Read(buf)
		if n > 0 {
			track(n)
			if _, werr := dst.Write(buf[:n]); werr != nil {
				errc <- werr
				return
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if err == io.EOF {
				errc <- nil
				return
			}
			errc <- err
			return
		}
	}
}

