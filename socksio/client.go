package socksio

import "github.com/latency-space/socksio/frame"

// ClientPolicy configures a client-side mirror of SocksClient
// (spec.md §6): which protocol version to speak, optional SOCKS5
// credentials, the text codec, and the protocol-specific extras
// (socks4_extras/socks5_extras in the original).
type ClientPolicy struct {
	Version            int // 4 or 5
	Username, Password string
	Encoding           frame.Encoding
	Socks4UserID       string
}

// ClientFactory builds the client StateMachine for one protocol
// version once NewClient has validated the policy.
type ClientFactory func(policy ClientPolicy, host string, port uint16) StateMachine

// NewClient mirrors the generic SocksClient() factory: it validates
// the argument shape before any I/O (the "socks4 + username" rejection
// of spec.md §4.3) and then delegates to the matching ClientFactory.
func NewClient(policy ClientPolicy, host string, port uint16, newV4, newV5 ClientFactory) (StateMachine, error) {
	if policy.Version == 4 && policy.Username != "" {
		return nil, NewPolicyError("socks4 does not provide auth methods, but username was given")
	}
	switch policy.Version {
	case 4:
		return newV4(policy, host, port), nil
	case 5:
		return newV5(policy, host, port), nil
	default:
		return nil, NewPolicyError("version %d is not supported", policy.Version)
	}
}
