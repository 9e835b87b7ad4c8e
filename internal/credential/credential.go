// Package credential carries the operator's API secret to the collaborators
// that need it. A Credential is passed explicitly; nothing is written to the
// process environment.
package credential

import (
	"errors"
	"os"
	"strings"
)

// ErrMissing is returned for an empty secret. It gates the pipeline rather than failing it.
var ErrMissing = errors.New("credential is empty")

// Credential is an API secret. The zero value is the absent credential.
type Credential struct {
	secret string
}

// New trims secret and rejects it when nothing is left.
func New(secret string) (Credential, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Credential{}, ErrMissing
	}
	return Credential{secret: secret}, nil
}

// FromEnv reads the secret from the named environment variable.
func FromEnv(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

// Secret returns the raw value for handing to a client library.
func (c Credential) Secret() string { return c.secret }

// IsZero reports whether no secret is held.
func (c Credential) IsZero() bool { return c.secret == "" }

// Equal reports whether both credentials hold the same secret.
func (c Credential) Equal(other Credential) bool { return c.secret == other.secret }

// Masked shows at most the last four characters of the secret.
func (c Credential) Masked() string {
	if c.secret == "" {
		return "<none>"
	}
	runes := []rune(c.secret)
	if len(runes) <= 8 {
		return strings.Repeat("•", len(runes))
	}
	prefix := ""
	if strings.HasPrefix(c.secret, "sk-") {
		prefix = "sk-"
	}
	return prefix + "…" + string(runes[len(runes)-4:])
}

// String implements fmt.Stringer with the masked form so credentials are safe to log.
func (c Credential) String() string { return c.Masked() }

// GoString keeps %#v from printing the secret.
func (c Credential) GoString() string { return "credential.Credential{" + c.Masked() + "}" }
