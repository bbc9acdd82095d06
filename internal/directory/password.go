package directory

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashCredential hashes a plaintext credential using bcrypt.
func HashCredential(credential string) (string, error) {
	if len(credential) == 0 {
		return "", errors.New("credential is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyCredential compares a plaintext credential with the stored hash.
func VerifyCredential(hash, credential string) error {
	if hash == "" {
		return errors.New("credential hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential))
}
