package domain

import (
	"fmt"
	"strings"
)

const maxIdentityLength = 256

// Identity names an account: a campaign manager, contributor or recipient.
// Identities compare case-insensitively, so they are stored lower-cased.
type Identity string

// ParseIdentity normalizes raw and rejects blank or oversized values.
func ParseIdentity(raw string) (Identity, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "", fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}
	if len(v) > maxIdentityLength {
		return "", fmt.Errorf("%w: identity exceeds %d characters", ErrInvalidInput, maxIdentityLength)
	}
	return Identity(v), nil
}

func (i Identity) String() string { return string(i) }
