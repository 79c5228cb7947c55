// Package socks5 implements the SOCKS5 server and client roles
// (RFC 1928 CONNECT, RFC 1929 username/password auth) as sans-I/O
// socksio.StateMachine values, grounded on siosocks/protocol.py's
// BaseSocks5/Socks5Server/Socks5Client.
package socks5

import (
	"net"

	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/frame"
)

const (
	version = 5

	authNoAuth           = 0x00
	authUsernamePassword = 0x02
	authNoAcceptable     = 0xFF

	cmdConnect = 0x01

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04

	repSuccess             = 0x00
	repGeneralFailure      = 0x01
	repCommandNotSupported = 0x07

	maxDomainSize = 255
)

// resolveAddress classifies host the way the client picks an ATYP to
// send: an IPv4 literal, an IPv6 literal, or (by elimination) a
// domain label.
func resolveAddress(host string) (atyp byte, addr []byte, err error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return atypIPv4, v4, nil
		}
		return atypIPv6, ip.To16(), nil
	}
	if len(host) > maxDomainSize {
		return 0, nil, socksio.NewProtocolError("domain %q exceeds 255 bytes", host)
	}
	return atypDomain, []byte(host), nil
}

// writeCommand encodes the fixed SOCKS5 request/reply shape: VER, CMD
// (or reply code), RSV=0, ATYP, ADDR, PORT. Requests and replies share
// the same wire layout (spec.md §3).
func writeCommand(code byte, host string, port uint16) ([]byte, error) {
	atyp, addr, err := resolveAddress(host)
	if err != nil {
		return nil, err
	}
	out, err := frame.WriteStruct(nil, "BBBB", byte(version), code, byte(0), atyp)
	if err != nil {
		return nil, err
	}
	switch atyp {
	case atypIPv4:
		out, err = frame.WriteStruct(out, "4s", addr)
	case atypIPv6:
		out, err = frame.WriteStruct(out, "16s", addr)
	case atypDomain:
		out, err = frame.WritePascalString(out, host)
	}
	if err != nil {
		return nil, err
	}
	return frame.WriteStruct(out, "H", port)
}
