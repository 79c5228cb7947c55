package socks4

import (
	"net"

	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/frame"
)

type clientPhase int

const (
	clientWriteRequest clientPhase = iota
	clientWriteUserID
	clientWriteDomain
	clientReadReply
	clientPassthrough
)

// Client is the SOCKS4/4A client role.
type Client struct {
	buf    *frame.Buffer
	phase  clientPhase
	host   string
	port   uint16
	userID string

	ipv4      [4]byte
	isSocks4A bool
}

// NewClient builds a SOCKS4/4A client role targeting host:port. If
// host does not parse as an IPv4 literal, SOCKS4A is used and host is
// sent as a domain label. userID defaults to "" (socks4_extras.user_id
// in the original).
func NewClient(host string, port uint16, userID string) socksio.StateMachine {
	c := &Client{buf: frame.New(frame.UTF8), host: host, port: port, userID: userID}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			copy(c.ipv4[:], v4)
			return c
		}
	}
	c.isSocks4A = true
	c.ipv4 = domainFlagHigh
	return c
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
		case clientWriteRequest:
			req, err := frame.WriteStruct(nil, "BBH4s", byte(version), byte(cmdConnect), c.port, c.ipv4[:])
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks4 client: %v", err)
			}
			c.phase = clientWriteUserID
			return socksio.Intent{Kind: socksio.Write, Bytes: req}, false, nil

		case clientWriteUserID:
			if c.isSocks4A {
				c.phase = clientWriteDomain
			} else {
				c.phase = clientReadReply
			}
			return socksio.Intent{Kind: socksio.Write, Bytes: frame.WriteCString(nil, c.userID)}, false, nil

		case clientWriteDomain:
			c.phase = clientReadReply
			return socksio.Intent{Kind: socksio.Write, Bytes: frame.WriteCString(nil, c.host)}, false, nil

		case clientReadReply:
			vals, err := c.buf.ReadStruct("BBH4s", false)
			if err == frame.ErrNeedMore {
				return socksio.Intent{Kind: socksio.Read}, false, nil
			}
			if err != nil {
				return socksio.Intent{}, true, socksio.NewProtocolError("socks4 client: reading reply: %v", err)
			}
			code := vals[1].(byte)
			if code != replySuccess {
				return socksio.Intent{}, true, socksio.NewProtocolError("code %#x not equal to success code %#x", code, replySuccess)
			}
			c.phase = clientPassthrough

		case clientPassthrough:
			return socksio.Intent{Kind: socksio.Passthrough}, false, nil
		}
	}
}
