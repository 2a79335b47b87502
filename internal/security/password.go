package security

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plain text password with bcrypt. The salt is
// generated per call and stored inside the hash.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password. A mismatch
// is an expected outcome, not a fault; callers translate it into their own
// error wording.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
