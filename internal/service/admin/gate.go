// Package admin guards the aggregated transcript views.
package admin

import (
	"crypto/subtle"
)

// Mode is how the gate was configured at startup.
type Mode int

const (
	// ModeInsecureDev lets every caller through because no secret is configured.
	ModeInsecureDev Mode = iota
	// ModeSharedSecret requires callers to present the configured secret.
	ModeSharedSecret
)

func (m Mode) String() string {
	if m == ModeSharedSecret {
		return "shared_secret"
	}
	return "insecure_dev"
}

// Result distinguishes an authenticated pass from a development bypass.
type Result int

const (
	Denied Result = iota
	Authenticated
	Bypassed
)

func (r Result) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case Bypassed:
		return "bypassed"
	default:
		return "denied"
	}
}

// Gate compares a caller-supplied key against the configured secret.
type Gate struct {
	mode   Mode
	secret []byte
}

// NewGate returns a gate in ModeInsecureDev when secret is empty.
func NewGate(secret string) *Gate {
	if secret == "" {
		return &Gate{mode: ModeInsecureDev}
	}
	return &Gate{mode: ModeSharedSecret, secret: []byte(secret)}
}

// Mode reports the configured mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// Check classifies one candidate key. It keeps no state between calls.
func (g *Gate) Check(candidate string) Result {
	if g.mode == ModeInsecureDev {
		return Bypassed
	}
	if subtle.ConstantTimeCompare([]byte(candidate), g.secret) == 1 {
		return Authenticated
	}
	return Denied
}

// Authorize reports whether the candidate may access admin views.
func (g *Gate) Authorize(candidate string) bool {
	return g.Check(candidate) != Denied
}
