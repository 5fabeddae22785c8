package secret

import "golang.org/x/crypto/bcrypt"

// HashSecret returns a bcrypt hash of the given secret using the given cost.
func HashSecret(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifySecret compares a bcrypt hash against a plain secret. bcrypt's
// comparison is constant-time, so the check leaks no timing signal.
func VerifySecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
