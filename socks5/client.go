package socks5

import (
	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/frame"
)

type clientPhase int

const (
	clientWriteGreeting clientPhase = iota
	clientReadMethod
	clientWriteSubneg
	clientReadSubnegReply
	clientWriteRequest
	clientReadReplyHeader
	clientReadReplyAddr
	clientReadReplyPort
	clientPassthrough
)

// Client is the SOCKS5 client role: method negotiation, optional
// username/password subnegotiation, then a CONNECT request/reply.
// Per the bound-address handling in siosocks' Socks5Client.run, the
// ADDR/PORT fields of the reply are read and discarded, never
// validated against the request.
type Client struct {
	buf      *frame.Buffer
	phase    clientPhase
	host     string
	port     uint16
	username string
	password string

	wantAuth  bool
	replyAtyp byte
}

// NewClient builds a SOCKS5 client role targeting host:port. When
// username is non-empty, RFC1929 subnegotiation is offered.
func NewClient(host string, port uint16, username, password string) socksio.StateMachine {
	return &Client{
		buf:      frame.New(frame.UTF8),
		host:     host,
		port:     port,
		username: username,
		password: password,
		wantAuth: username != "",
	}
}

func (c *Client) Step(in socksio.StepInput) (socksio.Intent, bool, error) {
	if in.Bytes != nil {
		c.buf.Feed(in.Bytes)
	}
	if in.Err != nil {
		return socksio.Intent{}, true, in.Err
	}
	for {
		switch c.phase {
		case clientWriteGreeting:
			method := byte(authNoAuth)
			if c.wantAuth {
				method = authUsernamePassword
			}
			greeting, _ := frame.WriteStruct(nil, "BBB", byte(version), byte(1), method)
			c.phase = clientReadMethod
			return socksio.Intent{Kind: socksio.Write, Bytes: greeting}, false, nil

		case clientReadMethod:
			vals, err := c.buf.ReadStruct("BB", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: reading method selection: %v", err)
			}
			if v := vals[0].(byte); v != version {
				return socksio.Intent{}, true, socksio.NewProtocolError("expected socks version %d, got %d", version, v)
			}
			method := vals[1].(byte)
			if method == authNoAcceptable {
				return socksio.Intent{}, true, socksio.NewAuthError("server rejected all offered authentication methods")
			}
			if c.wantAuth && method != authUsernamePassword {
				return socksio.Intent{}, true, socksio.NewProtocolError("server chose method %#x, expected username/password", method)
			}
			if method == authUsernamePassword {
				c.phase = clientWriteSubneg
			} else {
				c.phase = clientWriteRequest
			}

		case clientWriteSubneg:
			out, _ := frame.WriteStruct(nil, "B", byte(1))
			out, err := frame.WritePascalString(out, c.username)
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: %v", err)
			}
			out, err = frame.WritePascalString(out, c.password)
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: %v", err)
			}
			c.phase = clientReadSubnegReply
			return socksio.Intent{Kind: socksio.Write, Bytes: out}, false, nil

		case clientReadSubnegReply:
			vals, err := c.buf.ReadStruct("BB", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: reading subnegotiation reply: %v", err)
			}
			if v := vals[0].(byte); v != 1 {
				return socksio.Intent{}, true, socksio.NewProtocolError("unexpected auth version %#x in subnegotiation reply", v)
			}
			if status := vals[1].(byte); status != 0 {
				return socksio.Intent{}, true, socksio.NewAuthError("username/password authentication failed with status %#x", status)
			}
			c.phase = clientWriteRequest

		case clientWriteRequest:
			req, err := writeCommand(cmdConnect, c.host, c.port)
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: %v", err)
			}
			c.phase = clientReadReplyHeader
			return socksio.Intent{Kind: socksio.Write, Bytes: req}, false, nil

		case clientReadReplyHeader:
			vals, err := c.buf.ReadStruct("BBBB", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: reading reply: %v", err)
			}
			if v := vals[0].(byte); v != version {
				return socksio.Intent{}, true, socksio.NewProtocolError("expected socks version %d, got %d", version, v)
			}
			code := vals[1].(byte)
			c.replyAtyp = vals[3].(byte)
			if code != repSuccess {
				return socksio.Intent{}, true, socksio.NewProtocolError("code %#x not equal to success code %#x", code, repSuccess)
			}
			c.phase = clientReadReplyAddr

		case clientReadReplyAddr:
			var err error
			switch c.replyAtyp {
			case atypIPv4:
				_, err = c.buf.ReadExactly(4, false)
			case atypIPv6:
				_, err = c.buf.ReadExactly(16, false)
			case atypDomain:
				_, err = c.buf.ReadPascalString()
			default:
				return socksio.Intent{}, true, socksio.NewProtocolError("unknown address type %#x in reply", c.replyAtyp)
			}
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: reading reply address: %v", err)
			}
			c.phase = clientReadReplyPort

		case clientReadReplyPort:
			_, err := c.buf.ReadStruct("H", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks5 client: reading reply port: %v", err)
			}
			c.phase = clientPassthrough

		case clientPassthrough:
			return socksio.Intent{Kind: socksio.Passthrough}, false, nil
		}
	}
}
