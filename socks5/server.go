package socks5

import (
	"net"

	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/frame"
)

type serverPhase int

const (
	phaseVersion serverPhase = iota
	phaseMethodCount
	phaseMethods
	phaseAuthReply
	phaseAuthRejectTerminal
	phaseSubnegVersion
	phaseSubnegUser
	phaseSubnegPass
	phaseSubnegReply
	phaseSubnegFailTerminal
	phaseRequestHeader
	phaseRequestAddr
	phaseRequestPort
	phaseCmdNotSupported
	phaseCmdNotSupportedTerminal
	phaseConnect
	phaseConnectWait
	phaseConnectFail
	phaseConnectFailTerminal
	phaseConnectSuccess
	phasePassthrough
)

// Server is the SOCKS5 server role: method negotiation, optional
// username/password subnegotiation, then a CONNECT request/reply.
type Server struct {
	buf      *frame.Buffer
	phase    serverPhase
	username string
	password string

	numMethods  int
	authMethod  byte
	recvUser    string
	recvPass    string
	cmd         byte
	atyp        byte
	host        string
	port        uint16
	connectErr  error
}

// NewServer builds a SOCKS5 server role. When policy.Username is
// non-empty, username/password auth is required; otherwise no-auth is
// offered.
func NewServer(policy socksio.Policy) socksio.StateMachine {
	return &Server{
		buf:      frame.New(policy.Encoding),
		username: policy.Username,
		password: policy.Password,
	}
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
		case phaseVersion:
			vals, err := s.buf.ReadStruct("B", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: %v", err)
			}
			if v := vals[0].(byte); v != version {
				return socksio.Intent{}, true, socksio.NewProtocolError("expected socks version %d, got %d", version, v)
			}
			s.phase = phaseMethodCount

		case phaseMethodCount:
			vals, err := s.buf.ReadStruct("B", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading NMETHODS: %v", err)
			}
			s.numMethods = int(vals[0].(byte))
			s.phase = phaseMethods

		case phaseMethods:
			methods, err := s.buf.ReadExactly(s.numMethods, false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading METHODS: %v", err)
			}
			required := byte(authNoAuth)
			if s.username != "" {
				required = authUsernamePassword
			}
			s.authMethod = authNoAcceptable
			for _, m := range methods {
				if m == required {
					s.authMethod = required
					break
				}
			}
			s.phase = phaseAuthReply

		case phaseAuthReply:
			reply, _ := frame.WriteStruct(nil, "BB", byte(version), s.authMethod)
			if s.authMethod == authNoAcceptable {
				s.phase = phaseAuthRejectTerminal
			} else if s.authMethod == authUsernamePassword {
				s.phase = phaseSubnegVersion
			} else {
				s.phase = phaseRequestHeader
			}
			return socksio.Intent{Kind: socksio.Write, Bytes: reply}, false, nil

		case phaseAuthRejectTerminal:
			return socksio.Intent{}, true, socksio.NewAuthError("no acceptable authentication method")

		case phaseSubnegVersion:
			vals, err := s.buf.ReadStruct("B", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: subnegotiation: %v", err)
			}
			if v := vals[0].(byte); v != 1 {
				return socksio.Intent{}, true, socksio.NewProtocolError("username/password auth version %#x not supported", v)
			}
			s.phase = phaseSubnegUser

		case phaseSubnegUser:
			u, err := s.buf.ReadPascalString()
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading UNAME: %v", err)
			}
			s.recvUser = u
			s.phase = phaseSubnegPass

		case phaseSubnegPass:
			p, err := s.buf.ReadPascalString()
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading PASSWD: %v", err)
			}
			s.recvPass = p
			s.phase = phaseSubnegReply

		case phaseSubnegReply:
			ok := s.recvUser == s.username && s.recvPass == s.password
			code := byte(1)
			if ok {
				code = 0
			}
			reply, _ := frame.WriteStruct(nil, "BB", byte(1), code)
			if ok {
				s.phase = phaseRequestHeader
			} else {
				s.phase = phaseSubnegFailTerminal
			}
			return socksio.Intent{Kind: socksio.Write, Bytes: reply}, false, nil

		case phaseSubnegFailTerminal:
			return socksio.Intent{}, true, socksio.NewAuthError("wrong username or password")

		case phaseRequestHeader:
			vals, err := s.buf.ReadStruct("BBBB", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading request: %v", err)
			}
			if v := vals[0].(byte); v != version {
				return socksio.Intent{}, true, socksio.NewProtocolError("expected socks version %d, got %d", version, v)
			}
			s.cmd = vals[1].(byte)
			s.atyp = vals[3].(byte)
			s.phase = phaseRequestAddr

		case phaseRequestAddr:
			switch s.atyp {
			case atypIPv4:
				vals, err := s.buf.ReadStruct("4s", false)
				if err == frame.ErrNeedMore {
					return socksio.Intent{Kind: socksio.Read}, false, nil
				}
				if err != nil {
					return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading IPv4 address: %v", err)
				}
				s.host = net.IP(vals[0].([]byte)).String()
			case atypIPv6:
				vals, err := s.buf.ReadStruct("16s", false)
				if err == frame.ErrNeedMore {
					return socksio.Intent{Kind: socksio.Read}, false, nil
				}
				if err != nil {
					return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading IPv6 address: %v", err)
				}
				s.host = net.IP(vals[0].([]byte)).String()
			case atypDomain:
				h, err := s.buf.ReadPascalString()
				if err == frame.ErrNeedMore {
					return socksio.Intent{Kind: socksio.Read}, false, nil
				}
				if err != nil {
					return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading domain: %v", err)
				}
				s.host = h
			default:
				return socksio.Intent{}, true, socksio.NewProtocolError("unknown address type %#x", s.atyp)
			}
			s.phase = phaseRequestPort

		case phaseRequestPort:
			vals, err := s.buf.ReadStruct("H", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5: reading port: %v", err)
			}
			s.port = vals[0].(uint16)
			if s.cmd != cmdConnect {
				s.phase = phaseCmdNotSupported
			} else {
				s.phase = phaseConnect
			}

		case phaseCmdNotSupported:
			reply, _ := writeCommand(repCommandNotSupported, "0.0.0.0", 0)
			s.phase = phaseCmdNotSupportedTerminal
			return socksio.Intent{Kind: socksio.Write, Bytes: reply}, false, nil

		case phaseCmdNotSupportedTerminal:
			return socksio.Intent{}, true, socksio.NewProtocolError("socks5 command %#x is not supported", s.cmd)

		case phaseConnect:
			s.phase = phaseConnectWait
			return socksio.Intent{Kind: socksio.Connect, Host: s.host, Port: s.port}, false, nil

		case phaseConnectWait:
			if in.Err != nil {
				s.connectErr = in.Err
				s.phase = phaseConnectFail
			} else {
				s.phase = phaseConnectSuccess
			}

		case phaseConnectFail:
			reply, _ := writeCommand(repGeneralFailure, "0.0.0.0", 0)
			s.phase = phaseConnectFailTerminal
			return socksio.Intent{Kind: socksio.Write, Bytes: reply}, false, nil

		case phaseConnectFailTerminal:
			return socksio.Intent{}, true, s.connectErr

		case phaseConnectSuccess:
			reply, _ := writeCommand(repSuccess, "0.0.0.0", 0)
			s.phase = phasePassthrough
			return socksio.Intent{Kind: socksio.Write, Bytes: reply}, false, nil

		case phasePassthrough:
			return socksio.Intent{Kind: socksio.Passthrough}, false, nil
		}
	}
}
