package socks4

import (
	"net"

	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/frame"
)

type serverPhase int

const (
	phaseRequest serverPhase = iota
	phaseUserID
	phaseDomain
	phaseConnect
	phaseConnectWait
	phaseReplyFail
	phaseFailTerminal
	phaseReplySuccess
	phasePassthrough
)

// Server is the SOCKS4/4A server role. Construct with NewServer and
// drive it with socksio.Run.
type Server struct {
	buf   *frame.Buffer
	phase serverPhase

	command byte
	ipv4    []byte
	port    uint16
	userID  string
	host    string

	connectErr error
}

// NewServer builds a SOCKS4 server role. It ignores the auth fields of
// policy: SOCKS4 has no authentication channel.
func NewServer(policy socksio.Policy) socksio.StateMachine {
	return &Server{buf: frame.New(policy.Encoding)}
}

func (s *Server) Step(in socksio.StepInput) (socksio.Intent, bool, error) {
	if in.Bytes != nil {
		s.buf.Feed(in.Bytes)
	}
	if in.Err != nil && s.phase != phaseConnectWait {
		return socksio.Intent{}, true, in.Err
	}
	for {
		switch s.phase {
		case phaseRequest:
			vals, err := s.buf.ReadStruct("BBH4s", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks4: %v", err)
			}
			if v := vals[0].(byte); v != version {
				return socksio.Intent{}, true, socksio.NewProtocolError("expected socks version %d, got %d", version, v)
			}
			s.command = vals[1].(byte)
			s.port = vals[2].(uint16)
			s.ipv4 = vals[3].([]byte)
			s.phase = phaseUserID

		case phaseUserID:
			uid, err := s.buf.ReadCString(maxStringSize)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks4: reading USERID: %v", err)
			}
			s.userID = uid
			if s.command != cmdConnect {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks4 command %#x is not supported", s.command)
			}
			if isSocks4A(s.ipv4) {
				s.phase = phaseDomain
			} else {
				s.host = net.IP(s.ipv4).String()
				s.phase = phaseConnect
			}

		case phaseDomain:
			host, err := s.buf.ReadCString(maxStringSize)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks4a: reading domain: %v", err)
			}
			s.host = host
			s.phase = phaseConnect

		case phaseConnect:
			s.phase = phaseConnectWait
			return socksio.Intent{Kind: socksio.Connect, Host: s.host, Port: s.port}, false, nil

		case phaseConnectWait:
			if in.Err != nil {
				s.connectErr = in.Err
				s.phase = phaseReplyFail
			} else {
				s.phase = phaseReplySuccess
			}

		case phaseReplyFail:
			s.phase = phaseFailTerminal
			return socksio.Intent{Kind: socksio.Write, Bytes: buildReply(replyFail)}, false, nil

		case phaseFailTerminal:
			return socksio.Intent{}, true, s.connectErr

		case phaseReplySuccess:
			s.phase = phasePassthrough
			return socksio.Intent{Kind: socksio.Write, Bytes: buildReply(replySuccess)}, false, nil

		case phasePassthrough:
			return socksio.Intent{Kind: socksio.Passthrough}, false, nil
		}
	}
}
