// Package socks4 implements the SOCKS4 and SOCKS4A server and client
// roles as sans-I/O socksio.StateMachine values, grounded on
// siosocks/protocol.py's BaseSocks4/Socks4Server/Socks4Client.
package socks4

import (
	"net"

	"github.com/latency-space/socksio/frame"
)

const (
	version    = 4
	cmdConnect = 0x01

	replySuccess = 0x5A
	replyFail    = 0x5B

	maxStringSize = 1024
)

// socks4a low/high sentinel: DSTIP in 0.0.0.1..0.0.0.255 signals a
// trailing NUL-terminated domain follows the USERID NUL.
var (
	domainFlagLow  = [4]byte{0, 0, 0, 1}
	domainFlagHigh = [4]byte{0, 0, 0, 255}
)

func isSocks4A(ip []byte) bool {
	if len(ip) != 4 || ip[0] != 0 || ip[1] != 0 || ip[2] != 0 {
		return false
	}
	return ip[3] >= domainFlagLow[3] && ip[3] <= domainFlagHigh[3]
}

// buildReply encodes the fixed 8-byte SOCKS4 reply: VN=0, CD=code,
// DSTPORT=0, DSTIP=0.0.0.0 — the bound address is never reported back
// (spec.md §3).
func buildReply(code byte) []byte {
	reply, _ := frame.WriteStruct(nil, "BBH4s", byte(0), code, uint16(0), []byte(net.IPv4zero.To4()))
	return reply
}
