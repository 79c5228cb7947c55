package socksio

import "context"

// Kind tags the one operation an Intent asks the engine to perform.
type Kind int

const (
	// Read requests more bytes from the inbound peer. Carries no
	// fields.
	Read Kind = iota
	// Write delivers Bytes to the inbound peer.
	Write
	// Connect opens an outbound connection to Host:Port.
	Connect
	// Passthrough relays bidirectionally between inbound and outbound
	// until either side closes. The engine never re-enters the state
	// machine after issuing this intent: success or failure, it is
	// terminal.
	Passthrough
)

// Intent is the value a StateMachine emits when it needs the engine to
// perform I/O on its behalf. It carries exactly the fields its Kind
// needs; the others are zero.
type Intent struct {
	Kind  Kind
	Bytes []byte // Write
	Host  string // Connect
	Port  uint16 // Connect
}

// StepInput is what the engine feeds back into a StateMachine after
// fulfilling the previous Intent.
type StepInput struct {
	// Bytes holds the data read, for a just-fulfilled Read intent.
	Bytes []byte
	// Err holds the transport failure, if any, from a just-fulfilled
	// Connect intent (always delivered, success or failure) or from an
	// end-of-stream condition on a Read intent (delivered as
	// ErrUnexpectedEOF so the state machine can produce a
	// protocol-appropriate failure). Write intents never populate Err
	// here: a write failure aborts the engine immediately instead,
	// since there is nothing left to reply with (§7).
	Err error
}

// StateMachine is one running protocol role (Socks4Server,
// Socks4Client, Socks5Server, Socks5Client, or the version Dispatcher).
// Step is a pure function of the bytes received so far: it holds all
// of its state internally (an explicit phase plus a *frame.Buffer) and
// never performs I/O itself.
//
// The very first call uses the zero StepInput. Each subsequent call
// passes the StepInput produced by fulfilling the Intent the previous
// call returned. Step returns done=true exactly once, at which point
// err (nil on success) is final and the machine must not be stepped
// again.
type StateMachine interface {
	Step(in StepInput) (intent Intent, done bool, err error)
}

// Adapter is the narrow capability the engine drives a StateMachine
// against. Every backend (blocking socket, WebSocket tunnel, in-memory
// test fabric) implements it identically from the core's point of
// view (design note, spec.md §9).
type Adapter interface {
	// Read returns up to one block of bytes from the inbound stream.
	// A zero-length, nil-error return means end of stream.
	Read(ctx context.Context) ([]byte, error)
	// Write delivers data to the inbound stream, possibly batching.
	Write(ctx context.Context, data []byte) error
	// Connect opens the outbound side to host:port.
	Connect(ctx context.Context, host string, port uint16) error
	// Passthrough relays bidirectionally between inbound and outbound
	// until either side closes, then returns.
	Passthrough(ctx context.Context) error
}
