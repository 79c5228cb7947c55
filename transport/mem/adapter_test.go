package mem

import (
	"context"
	"testing"

	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/socks4"
	"github.com/latency-space/socksio/socks5"
)

func TestClientServerComposeOverMemoryFabric(t *testing.T) {
	clientAdapter, serverAdapter := NewPair()

	client := socks4.NewClient("93.184.216.34", 80, "anon")
	server := socks4.NewServer(socksio.Policy{})

	clientDone := make(chan error, 1)
	serverDone := make(chan error, 1)

	go func() {
		clientDone <- socksio.Run(context.Background(), client, clientAdapter, nil)
	}()
	go func() {
		serverDone <- socksio.Run(context.Background(), server, serverAdapter, nil)
	}()

	if err := <-clientDone; err != nil {
		t.Fatalf("client engine error: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server engine error: %v", err)
	}
}

func TestSocks5ClientServerComposeWithAuth(t *testing.T) {
	clientAdapter, serverAdapter := NewPair()

	client := socks5.NewClient("example.com", 443, "alice", "secret")
	server := socks5.NewServer(socksio.Policy{Username: "alice", Password: "secret"})

	clientDone := make(chan error, 1)
	serverDone := make(chan error, 1)

	go func() {
		clientDone <- socksio.Run(context.Background(), client, clientAdapter, nil)
	}()
	go func() {
		serverDone <- socksio.Run(context.Background(), server, serverAdapter, nil)
	}()

	if err := <-clientDone; err != nil {
		t.Fatalf("client engine error: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server engine error: %v", err)
	}
}
