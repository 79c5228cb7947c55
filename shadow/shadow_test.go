package shadow

import (
	"context"
	"testing"

	"github.com/latency-space/socksio/transport/mem"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	client, server := mem.NewPair()
	w := Wrap(client)
	r := Wrap(server)

	payload := []byte{0x00, 0x01, 0xFE, 0xFF, 'h', 'i'}
	if err := w.Write(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %v, want %v", got, payload)
	}
}
