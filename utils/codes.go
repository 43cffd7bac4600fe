package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// GenerateMarkerCode returns a new globally unique marker code.
func GenerateMarkerCode() string {
	return uuid.New().String()
}

// GeneratePIN returns a random numeric PIN of the given length (4-6 digits).
func GeneratePIN(length int) (string, error) {
	if length < 4 || length > 6 {
		return "", fmt.Errorf("pin length must be between 4 and 6, got %d", length)
	}
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate pin digit: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

// HashPIN hashes an access PIN for storage.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hash), nil
}

// CheckPIN reports whether the given PIN matches the stored hash.
func CheckPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// ClientURL builds the URL encoded into a session's QR code. The marker
// resolver later extracts the code from the /client/ path segment.
func ClientURL(baseURL, code, pin string) string {
	return fmt.Sprintf("%s/client/%s?pin=%s", strings.TrimRight(baseURL, "/"), code, pin)
}
