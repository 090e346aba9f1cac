// Package roomcode generates and validates the short human-typeable codes
// that identify rooms. Codes are four decimal digits so they can be read
// out loud or typed on a phone; uniqueness among concurrently active rooms
// is enforced by the registry, which collision-checks against the store.
package roomcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

// ErrInvalidCode is returned for input that is not a well-formed room code.
var ErrInvalidCode = errors.New("roomcode: invalid room code format")

// codeRegex matches a 4-digit code with a non-zero leading digit.
var codeRegex = regexp.MustCompile(`^[1-9][0-9]{3}$`)

// codeSpace is the number of distinct codes (1000–9999).
const codeSpace = 9000

// Generate returns a random 4-digit room code in [1000, 9999].
// Uses crypto/rand so concurrent room creation cannot share a seed.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("roomcode: generate: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

// Validate checks that a caller-supplied code is well formed.
// It says nothing about whether a room with that code exists.
func Validate(code string) error {
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("%w: %q (expected 4 digits)", ErrInvalidCode, code)
	}
	return nil
}
