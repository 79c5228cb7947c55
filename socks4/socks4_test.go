package socks4

import (
	"testing"

	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/frame"
)

func drive(t *testing.T, sm socksio.StateMachine, script []socksio.StepInput) (writes [][]byte, reads int, final error) {
	t.Helper()
	in := socksio.StepInput{}
	for step := 0; step < 64; step++ {
		intent, done, err := sm.Step(in)
		if done {
			return writes, reads, err
		}
		switch intent.Kind {
		case socksio.Write:
			writes = append(writes, intent.Bytes)
			in = socksio.StepInput{}
		case socksio.Read:
			if reads >= len(script) {
				t.Fatalf("ran out of scripted reads at step %d", step)
			}
			in = script[reads]
			reads++
		case socksio.Connect:
			in = socksio.StepInput{}
		case socksio.Passthrough:
			return writes, reads, nil
		}
	}
	t.Fatal("state machine did not terminate")
	return nil, 0, nil
}

func TestServerConnectByIPv4Literal(t *testing.T) {
	policy := socksio.Policy{Encoding: frame.UTF8}
	sm := NewServer(policy)
	request, _ := frame.WriteStruct(nil, "BBH4s", byte(4), byte(cmdConnect), uint16(80), []byte{93, 184, 216, 34})
	request = frame.WriteCString(request, "")

	writes, _, err := drive(t, sm, []socksio.StepInput{{Bytes: request}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writes) != 1 {
		t.Fatalf("expected one reply write, got %d", len(writes))
	}
	if writes[0][1] != replySuccess {
		t.Fatalf("expected success reply, got %#x", writes[0][1])
	}
	if writes[0][2] != 0 || writes[0][3] != 0 {
		t.Fatal("reply port must always be zero")
	}
}

func TestServerConnectBySocks4ADomain(t *testing.T) {
	sm := NewServer(socksio.Policy{Encoding: frame.UTF8})
	request, _ := frame.WriteStruct(nil, "BBH4s", byte(4), byte(cmdConnect), uint16(443), []byte{0, 0, 0, 1})
	request = frame.WriteCString(request, "")
	request = frame.WriteCString(request, "example.com")

	writes, _, err := drive(t, sm, []socksio.StepInput{{Bytes: request}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writes[0][1] != replySuccess {
		t.Fatalf("expected success reply, got %#x", writes[0][1])
	}
}

func TestServerConnectFailureWritesFailReply(t *testing.T) {
	sm := NewServer(socksio.Policy{Encoding: frame.UTF8})
	request, _ := frame.WriteStruct(nil, "BBH4s", byte(4), byte(cmdConnect), uint16(80), []byte{93, 184, 216, 34})
	request = frame.WriteCString(request, "")

	in := socksio.StepInput{Bytes: request}
	var writes [][]byte
	for step := 0; step < 16; step++ {
		intent, done, err := sm.Step(in)
		if done {
			if err == nil {
				t.Fatal("expected connect failure to propagate as terminal error")
			}
			if writes[0][1] != replyFail {
				t.Fatalf("expected fail reply, got %#x", writes[0][1])
			}
			return
		}
		switch intent.Kind {
		case socksio.Write:
			writes = append(writes, intent.Bytes)
			in = socksio.StepInput{}
		case socksio.Read:
			in = socksio.StepInput{}
		case socksio.Connect:
			in = socksio.StepInput{Err: socksio.NewTransportError("dial failed", nil)}
		}
	}
	t.Fatal("state machine did not terminate")
}

func TestClientBuildsRequestAndAcceptsSuccessReply(t *testing.T) {
	client := NewClient("93.184.216.34", 80, "anon")

	intent, done, err := client.Step(socksio.StepInput{})
	if done || err != nil {
		t.Fatalf("unexpected done=%v err=%v", done, err)
	}
	if intent.Kind != socksio.Write {
		t.Fatalf("expected Write intent, got %v", intent.Kind)
	}
	wantPrefix, _ := frame.WriteStruct(nil, "BBH4s", byte(4), byte(cmdConnect), uint16(80), []byte{93, 184, 216, 34})
	if string(intent.Bytes) != string(wantPrefix) {
		t.Fatalf("got request %v, want %v", intent.Bytes, wantPrefix)
	}

	intent, done, err = client.Step(socksio.StepInput{})
	if done || err != nil {
		t.Fatalf("unexpected done=%v err=%v", done, err)
	}
	if string(intent.Bytes) != "anon\x00" {
		t.Fatalf("expected NUL-terminated userid, got %q", intent.Bytes)
	}

	reply := buildReply(replySuccess)
	intent, done, err = client.Step(socksio.StepInput{Bytes: reply})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("expected Passthrough intent before termination")
	}
	if intent.Kind != socksio.Passthrough {
		t.Fatalf("expected Passthrough, got %v", intent.Kind)
	}
}

func TestClientRejectsFailureReply(t *testing.T) {
	client := NewClient("93.184.216.34", 80, "")
	_, _, _ = client.Step(socksio.StepInput{})
	_, _, _ = client.Step(socksio.StepInput{})

	_, done, err := client.Step(socksio.StepInput{Bytes: buildReply(replyFail)})
	if !done || err == nil {
		t.Fatal("expected failure reply to terminate with an error")
	}
}
