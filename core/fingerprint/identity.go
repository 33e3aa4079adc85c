// Package fingerprint derives stable identities for conflict hunks.
//
// An identity is a SHA-256 over the normalized sides of a hunk. Labels and
// marker decoration never participate, so the same conflict produced by two
// different rebases maps to the same identity. Repeats within one file are told
// apart by an occurrence index that is assigned per scan and never persisted.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HashSize is the byte length of the content hash.
const HashSize = sha256.Size

// ErrInvalidIdentity is returned when an identity string cannot be parsed.
var ErrInvalidIdentity = errors.New("invalid identity")

// Identity names one store slot: a content hash plus the occurrence index of
// that hash within the file it was found in.
type Identity struct {
	Hash       string
	Occurrence int
}

// String renders the identity as "<hash>" or "<hash>.<occurrence>".
func (id Identity) String() string {
	if id.Occurrence == 0 {
		return id.Hash
	}
	return id.Hash + "." + strconv.Itoa(id.Occurrence)
}

// Short returns an abbreviated form for log output.
func (id Identity) Short() string {
	short := id.Hash
	if len(short) > 12 {
		short = short[:12]
	}
	if id.Occurrence == 0 {
		return short
	}
	return short + "." + strconv.Itoa(id.Occurrence)
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Hash == ""
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseIdentity parses the output of Identity.String.
func ParseIdentity(s string) (Identity, error) {
	hash, occ, found := strings.Cut(s, ".")
	if !ValidHash(hash) {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	if !found {
		return Identity{Hash: hash}, nil
	}

	n, err := strconv.Atoi(occ)
	if err != nil || n <= 0 {
		return Identity{}, fmt.Errorf("%w: bad occurrence in %q", ErrInvalidIdentity, s)
	}
	return Identity{Hash: hash, Occurrence: n}, nil
}

// ValidHash reports whether s is a lowercase hex content hash.
func ValidHash(s string) bool {
	if len(s) != hex.EncodedLen(HashSize) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
