package socksio

import "github.com/latency-space/socksio/frame"

// Policy configures the version/auth gates a server-side Dispatcher
// enforces before handing a connection to a SOCKS4 or SOCKS5 role.
type Policy struct {
	// AllowedVersions restricts which SOCKS versions are accepted.
	// Defaults to {4, 5} when empty.
	AllowedVersions map[int]bool
	// Username/Password, when Username is non-empty, require SOCKS5
	// username/password auth; with StrictSecurityPolicy set they also
	// make NewDispatcher reject a policy that allows SOCKS4.
	Username, Password string
	// StrictSecurityPolicy, when true, rejects a Dispatcher configured
	// with both SOCKS4 allowed and credentials set, since SOCKS4 has no
	// auth channel to carry them over. The zero value is false: a Policy
	// that leaves it unset does not apply this check.
	StrictSecurityPolicy bool
	// Encoding selects the text codec used for SOCKS4 USERID, SOCKS5
	// domain labels, and username/password fields.
	Encoding frame.Encoding
}

// DefaultAllowedVersions is used when Policy.AllowedVersions is empty.
func DefaultAllowedVersions() map[int]bool {
	return map[int]bool{4: true, 5: true}
}

func (p Policy) allowedVersions() map[int]bool {
	if len(p.AllowedVersions) == 0 {
		return DefaultAllowedVersions()
	}
	return p.AllowedVersions
}

func (p Policy) authRequired() bool {
	return p.Username != ""
}

// RoleFactory builds the StateMachine that should handle a connection
// once the wire version has been identified.
type RoleFactory func(policy Policy) StateMachine

// Dispatcher peeks the first byte of an inbound connection (without
// consuming it) to decide whether SOCKS4 or SOCKS5 is speaking, then
// delegates every subsequent Step call to the matching role. It is
// itself a StateMachine, so it plugs directly into Run.
type Dispatcher struct {
	policy   Policy
	buf      *frame.Buffer
	newV4    RoleFactory
	newV5    RoleFactory
	delegate StateMachine
}

// NewDispatcher builds a server-side version dispatcher. newV4/newV5
// construct the Socks4Server/Socks5Server roles; they are taken as
// factories (rather than socks4/socks5 being imported here) so this
// package has no dependency on either protocol package, avoiding an
// import cycle since socks4/socks5 both depend on socksio.
func NewDispatcher(policy Policy, newV4, newV5 RoleFactory) (*Dispatcher, error) {
	if policy.authRequired() && policy.allowedVersions()[4] && policy.StrictSecurityPolicy {
		return nil, NewPolicyError("SOCKS4 cannot carry auth under strict policy")
	}
	return &Dispatcher{
		policy: policy,
		buf:    frame.New(policy.Encoding),
		newV4:  newV4,
		newV5:  newV5,
	}, nil
}

func (d *Dispatcher) Step(in StepInput) (Intent, bool, error) {
	if d.delegate != nil {
		return d.delegate.Step(in)
	}
	if in.Bytes != nil {
		d.buf.Feed(in.Bytes)
	}
	if in.Err != nil {
		return Intent{}, true, in.Err
	}
	vals, err := d.buf.ReadStruct("B", true)
	if err == frame.ErrNeedMore {
		return Intent{Kind: Read}, false, nil
	}
	if err != nil {
		return Intent{}, true, NewProtocolError("dispatcher: %v", err)
	}
	version := int(vals[0].(byte))
	if !d.policy.allowedVersions()[version] {
		return Intent{}, true, NewPolicyError("version %d is not in allowed set", version)
	}
	switch version {
	case 4:
		d.delegate = d.newV4(d.policy)
	case 5:
		d.delegate = d.newV5(d.policy)
	default:
		return Intent{}, true, NewProtocolError("version %d is not supported", version)
	}
	// Hand off every byte we peeked (including the version byte, left
	// unconsumed above) to the delegate's own Buffer.
	return d.delegate.Step(StepInput{Bytes: d.buf.Drain()})
}
