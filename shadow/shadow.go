// Package shadow wraps a socksio.Adapter with a trivial byte-shift
// codec on reads and writes, the same toy "shadowsocks-like" obfuscation
// the siosocks examples wrap around their IO classes.
package shadow

import (
	"context"

	"github.com/latency-space/socksio/socksio"
)

func encode(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b + 1
	}
	return out
}

func decode(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b - 1
	}
	return out
}

// Adapter decodes bytes coming off the wrapped Adapter's Read and
// encodes bytes going out through its Write, leaving Connect and
// Passthrough untouched.
type Adapter struct {
	socksio.Adapter
}

func Wrap(a socksio.Adapter) *Adapter {
	return &Adapter{Adapter: a}
}

func (a *Adapter) Read(ctx context.Context) ([]byte, error) {
	data, err := a.Adapter.Read(ctx)
	if err != nil {
		return nil, err
	}
	return decode(data), nil
}

func (a *Adapter) Write(ctx context.Context, data []byte) error {
	return a.Adapter.Write(ctx, encode(data))
}
