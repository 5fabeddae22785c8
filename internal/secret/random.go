package secret

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomToken returns a url-safe token generated from n bytes of
// cryptographically secure random data. Session ids, CSRF states, and
// exchange codes all come from here; 32 bytes gives 256 bits of entropy,
// well past the 128-bit floor the broker requires.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
