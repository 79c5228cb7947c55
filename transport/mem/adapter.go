// Package mem provides an in-memory socksio.Adapter pair for composing a
// client engine and a server engine synchronously in the same process,
// without a real socket.
package mem

import (
	"context"

	"github.com/latency-space/socksio/socksio"
)

// pipe is a one-directional byte queue between a Write on one side and
// a Read on the other. It buffers up to 64 writes; a further Write
// blocks until the other side reads.
type pipe struct {
	ch chan []byte
}

func newPipe() *pipe {
	return &pipe{ch: make(chan []byte, 64)}
}

func (p *pipe) send(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	p.ch <- cp
}

func (p *pipe) recv() []byte {
	return <-p.ch
}

// Adapter is one endpoint of an in-memory duplex connection. Connect is a
// no-op that always succeeds: memory fabrics have no upstream to dial,
// the caller already knows who is on the other end.
type Adapter struct {
	out *pipe
	in  *pipe
}

// NewPair builds two endpoints wired to each other: data written on one
// is read from the other.
func NewPair() (client, server *Adapter) {
	a, b := newPipe(), newPipe()
	client = &Adapter{out: a, in: b}
	server = &Adapter{out: b, in: a}
	return client, server
}

func (a *Adapter) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-a.in.ch:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Adapter) Write(ctx context.Context, data []byte) error {
	a.out.send(data)
	return nil
}

// Connect always succeeds; tests that want to simulate a failure wrap
// this Adapter in FailingConnect.
func (a *Adapter) Connect(ctx context.Context, host string, port uint16) error {
	return nil
}

// Passthrough relays nothing itself: it returns nil at once on each
// side, without waiting for the other side to reach Passthrough, leaving
// the raw pipes available for the test to exchange payload bytes
// directly if it wants to assert on them.
func (a *Adapter) Passthrough(ctx context.Context) error {
	return nil
}

// FailingConnect wraps an Adapter so Connect always fails with err,
// letting tests exercise the Connect-failure feedback path without a
// real dial.
type FailingConnect struct {
	*Adapter
	Err error
}

func (f FailingConnect) Connect(ctx context.Context, host string, port uint16) error {
	return f.Err
}

var _ socksio.Adapter = (*Adapter)(nil)
var _ socksio.Adapter = FailingConnect{}
