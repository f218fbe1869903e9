package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain password string
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plain password with a hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// passwordHash accepts either a plain password or an existing bcrypt hash,
// so ADMIN_PASSWORD can be stored pre-hashed.
func passwordHash(configured string) (string, error) {
	if isBcryptHash(configured) {
		if _, err := bcrypt.Cost([]byte(configured)); err != nil {
			return "", err
		}
		return configured, nil
	}
	return HashPassword(configured)
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
