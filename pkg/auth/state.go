package auth

import (
	"crypto/rand"
	"fmt"
)

// StateLength is the number of characters in a generated state value.
// 32 characters over a 62 symbol alphabet carry about 190 bits.
const StateLength = 32

const stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateState returns a random alphanumeric string of StateLength
// characters read from crypto/rand. It is safe for concurrent use.
func GenerateState() (string, error) {
	return randomAlphanumeric(StateLength)
}

// randomAlphanumeric draws bytes from crypto/rand and keeps those below the
// largest multiple of the alphabet size, so every symbol is equally likely.
func randomAlphanumeric(n int) (string, error) {
	const limit = 256 - 256%len(stateAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, stateAlphabet[int(b)%len(stateAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
