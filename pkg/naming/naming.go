// Package naming resolves resource-name conflicts and generates
// provisioning credentials. All functions are pure and side-effect
// free; callers re-check resolved names against their stores.
package naming

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// Policy selects how a name collision is handled.
type Policy string

const (
	// PolicyFail rejects the name outright when it already exists.
	PolicyFail Policy = "fail"

	// PolicySuffix appends a short random suffix to make the name
	// unique.
	PolicySuffix Policy = "suffix"
)

// suffixLen is the number of lowercase hex characters appended under
// PolicySuffix. The randomness space (16^6) is large enough that
// collisions are treated as negligible rather than handled.
const suffixLen = 6

// separator joins the original name and the random suffix.
const separator = "-"

// ErrNameTaken signals that a name already exists and the fail policy
// forbids mutating it.
var ErrNameTaken = errors.New("name already exists")

// Resolve applies the conflict policy to a name that is known to
// collide. Under PolicyFail it returns the name unchanged together
// with ErrNameTaken; under PolicySuffix it returns the name with a
// random lowercase hex suffix appended. Resolve does not verify the
// result against any store; callers must re-check.
func Resolve(name string, policy Policy) (string, error) {
	switch policy {
	case PolicyFail:
		return name, fmt.Errorf("%q: %w (use the suffix conflict policy or pick another name)", name, ErrNameTaken)
	case PolicySuffix:
		suffix, err := randomHex(suffixLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate name suffix: %w", err)
		}
		return name + separator + suffix, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", policy)
	}
}

// ValidPolicy reports whether the given string names a known conflict
// policy.
func ValidPolicy(policy Policy) bool {
	return policy == PolicyFail || policy == PolicySuffix
}

// passwordAlphabet is the symbol set for generated credentials.
var passwordAlphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// GeneratePassword produces a fixed-length random alphanumeric string
// for provisioning database credentials. Each output symbol is mapped
// from a 16-bit random value, keeping the modulo bias below 2^-15 per
// symbol; no rejection loop.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("password length must be positive")
	}

	buf := make([]byte, 2*length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	out := make([]byte, length)
	for i := range out {
		v := binary.BigEndian.Uint16(buf[2*i:])
		out[i] = passwordAlphabet[int(v)%len(passwordAlphabet)]
	}
	return string(out), nil
}

// randomHex returns n lowercase hexadecimal characters from a
// cryptographically strong source.
func randomHex(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:n], nil
}
