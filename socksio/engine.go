package socksio

import (
	"context"
	"fmt"
)

// Observer receives lifecycle notifications from Run, for metrics and
// logging. A nil Observer is valid: Run substitutes NopObserver. This is
// the seam internal/metrics hooks into — the engine itself has no
// dependency on Prometheus.
type Observer interface {
	OnConnect(host string, port uint16, err error)
	OnPassthroughStart()
	OnPassthroughEnd(err error)
}

// NopObserver implements Observer with no-ops.
type NopObserver struct{}

func (NopObserver) OnConnect(string, uint16, error) {}
func (NopObserver) OnPassthroughStart()             {}
func (NopObserver) OnPassthroughEnd(error)           {}

// Run steps sm to completion against adapter, translating each emitted
// Intent into one Adapter call and feeding the result back in. It
// implements the propagation policy of spec.md §7:
//
//   - Connect failures are always fed back into sm, so a server role
//     can write a protocol-appropriate failure reply before the
//     handshake ends.
//   - Read failures (other than a clean zero-byte EOF) and Write
//     failures abort the engine immediately; sm is not re-entered.
//   - A zero-byte Read is translated to ErrUnexpectedEOF and fed back
//     into sm, since the state machine — not the engine — knows
//     whether that's expected (e.g. mid-passthrough it never happens,
//     since Passthrough is terminal).
//   - Passthrough is always terminal: Run returns as soon as the
//     adapter's Passthrough call returns, without stepping sm again.
func Run(ctx context.Context, sm StateMachine, adapter Adapter, obs Observer) error {
	if obs == nil {
		obs = NopObserver{}
	}
	var in StepInput
	for {
		intent, done, err := sm.Step(in)
		if done {
			return err
		}
		switch intent.Kind {
		case Read:
			data, rerr := adapter.Read(ctx)
			if rerr != nil {
				return NewTransportError("read failed", rerr)
			}
			if len(data) == 0 {
				in = StepInput{Err: ErrUnexpectedEOF}
				continue
			}
			in = StepInput{Bytes: data}

		case Write:
			if werr := adapter.Write(ctx, intent.Bytes); werr != nil {
				return NewTransportError("write failed", werr)
			}
			in = StepInput{}

		case Connect:
			cerr := adapter.Connect(ctx, intent.Host, intent.Port)
			obs.OnConnect(intent.Host, intent.Port, cerr)
			if cerr != nil {
				in = StepInput{Err: NewTransportError(fmt.Sprintf("connect to %s:%d failed", intent.Host, intent.Port), cerr)}
			} else {
				in = StepInput{}
			}

		case Passthrough:
			obs.OnPassthroughStart()
			perr := adapter.Passthrough(ctx)
			obs.OnPassthroughEnd(perr)
			return perr

		default:
			return NewProtocolError("engine: unknown intent kind %d", intent.Kind)
		}
	}
}
